package vmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/mm"
)

// InactivePageTable is a P4 table that has been allocated and recursively
// self-mapped but is not the one currently loaded into CR3. It can only be
// edited through a TemporaryPage (see ActivePageTable.With) or by switching
// it in via ActivePageTable.Switch.
type InactivePageTable struct {
	// P4Frame is the physical frame backing this table's P4.
	P4Frame mm.Frame
}

// NewInactivePageTable allocates frame as a fresh P4 table: it maps frame
// into the scratch page, zeroes it, installs frame's own recursive mapping
// in the last slot, then unmaps the scratch page.
func NewInactivePageTable(frame mm.Frame, tempPage *TemporaryPage) (InactivePageTable, *kernel.Error) {
	tableAddr, err := tempPage.MapTo(frame)
	if err != nil {
		return InactivePageTable{}, err
	}

	kernel.Memset(tableAddr, 0, mm.PageSize)

	lastEntry := (*pageTableEntry)(ptePtrFn(tableAddr + ((mm.EntryCount - 1) << mm.PointerShift)))
	*lastEntry = 0
	lastEntry.SetFlags(FlagPresent | FlagRW)
	lastEntry.SetFrame(frame)

	if err := tempPage.Unmap(); err != nil {
		return InactivePageTable{}, err
	}

	return InactivePageTable{P4Frame: frame}, nil
}
