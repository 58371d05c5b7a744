package vmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/cpu"
	"talonkernel/kernel/mm"
)

var (
	// activePDTFn returns the frame currently loaded into CR3. switchPDTFn
	// loads a new frame into CR3. Both are overridden by tests; inlined by
	// the compiler when building the kernel.
	activePDTFn = cpu.ActivePDT
	switchPDTFn = cpu.SwitchPDT
)

// recursiveSlot is the P4 index that self-maps the active table (see
// pdtVirtualAddr).
const recursiveSlot = mm.EntryCount - 1

// ActivePageTable is the page table hierarchy currently loaded into CR3. Its
// entries are reachable through the fixed recursive mapping at
// pdtVirtualAddr; it carries no other state of its own.
type ActivePageTable struct{}

// With temporarily repoints the active P4's recursive slot at inactive's P4
// frame and runs fn. While fn runs, walk (and therefore Map/Unmap/Translate)
// resolves pdtVirtualAddr to `inactive` instead of the real active table,
// so fn can populate an inactive table using the ordinary mapping API. The
// original recursive slot is restored before With returns.
func (ActivePageTable) With(inactive InactivePageTable, fn func()) *kernel.Error {
	recursiveEntryAddr := p4EntryAddr(recursiveSlot)
	recursiveEntry := (*pageTableEntry)(ptePtrFn(recursiveEntryAddr))

	savedEntry := *recursiveEntry

	*recursiveEntry = 0
	recursiveEntry.SetFrame(inactive.P4Frame)
	recursiveEntry.SetFlags(FlagPresent | FlagRW)
	flushTLBEntryFn(pdtVirtualAddr)

	fn()

	*recursiveEntry = savedEntry
	flushTLBEntryFn(pdtVirtualAddr)

	return nil
}

// Switch loads newTable's P4 frame into CR3, making it the active table, and
// returns an InactivePageTable describing the table that was active before
// the switch.
func (ActivePageTable) Switch(newTable InactivePageTable) InactivePageTable {
	prev := InactivePageTable{P4Frame: mm.FrameFromAddress(activePDTFn())}
	switchPDTFn(newTable.P4Frame.Address())
	return prev
}

// p4EntryAddr is the virtual address, via the recursive mapping, of the
// slot-th entry of the currently active P4 table.
func p4EntryAddr(slot uintptr) uintptr {
	return pdtVirtualAddr + (slot << mm.PointerShift)
}
