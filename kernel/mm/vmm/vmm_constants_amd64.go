package vmm

import "math"

const (
	// pageLevels indicates the number of page table levels used by the
	// amd64 architecture (P4, P3, P2, P1).
	pageLevels = 4

	// ptePhysPageMask extracts the physical frame address encoded in a
	// page table entry. Bits 12-51 hold the address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// tempMappingAddr is a reserved virtual page used for the
	// always-available temporary mapping slot (table indices 510, 511,
	// 511, 511).
	tempMappingAddr = uintptr(0xffffff7ffffff000)
)

var (
	// pdtVirtualAddr exploits the recursive mapping installed in the last
	// P4 entry: setting every page-level index bit to 1 makes the MMU
	// keep following that entry at every level, landing back on the P4
	// table itself.
	pdtVirtualAddr = uintptr(math.MaxUint64 &^ ((1 << 12) - 1))

	// pageLevelBits is the number of virtual address bits consumed by
	// each page level; 9 bits per level yields 512 entries per table.
	pageLevelBits = [pageLevels]uint8{9, 9, 9, 9}

	// pageLevelShifts is the bit shift needed to extract each level's
	// index from a virtual address.
	pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}
)

const (
	// FlagPresent is set when the page is resident in memory.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is read or written.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is written to.
	FlagDirty

	// FlagHugePage marks a 2MB (P2) or 1GB (P3) page.
	FlagHugePage

	// FlagGlobal prevents the TLB entry for this page from being flushed
	// on a CR3 reload.
	FlagGlobal

	// FlagCopyOnWrite marks a read-only page for copy-on-write handling
	// by the page fault handler. Mutually exclusive with FlagRW.
	FlagCopyOnWrite = 1 << 9

	// FlagNoExecute marks a page as non-executable.
	FlagNoExecute = 1 << 63
)
