package vmm

import (
	"unsafe"

	"talonkernel/kernel"
	"talonkernel/kernel/mm"
)

var (
	// ptePtrFn returns a pointer to the page table entry at the given
	// virtual address. Tests override this to fake a page table
	// hierarchy entirely in process memory.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}
)

// pageTableWalker is invoked by walk with the current page level (0 == P4)
// and the page table entry that corresponds to it. Returning false aborts
// the walk.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for virtAddr using the recursive P4
// mapping: dereferencing pdtVirtualAddr (every index bit set to 1) lands on
// the P4 table itself, and shifting in one more level of indirection at
// each step walks down to P3, P2 and finally P1.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level                            uint8
		tableAddr, entryAddr, entryIndex uintptr
	)

	for level, tableAddr = uint8(0), pdtVirtualAddr; level < pageLevels; level, tableAddr = level+1, entryAddr {
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr = tableAddr + (entryIndex << mm.PointerShift)

		if !walkFn(level, (*pageTableEntry)(ptePtrFn(entryAddr))) {
			return
		}

		entryAddr <<= pageLevelBits[level]
	}
}

// p3Level and p2Level name the walk levels at which a huge-page entry can
// terminate the walk early: a present P3 entry with FlagHugePage set maps a
// 1GB page directly, and a present P2 entry with FlagHugePage set maps a
// 2MB page directly, in both cases without ever reaching a P1 table.
const (
	p3Level = 1
	p2Level = 2
)

// pteForAddress walks the page table hierarchy down to the final entry for
// virtAddr, returning ErrInvalidMapping if any level along the way is not
// present. Huge mappings (1GB at P3, 2MB at P2) are resolved in place: the
// returned entry's frame is adjusted by the lower-level indices virtAddr
// would otherwise have walked through, so that Frame().Address() always
// names the 4K-granular frame virtAddr actually falls in, regardless of
// what page size maps it.
func pteForAddress(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
		huge  pageTableEntry
	)

	page := mm.PageFromAddress(virtAddr)

	walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			entry = nil
			err = ErrInvalidMapping
			return false
		}

		if pteLevel == p3Level && pte.HasFlags(FlagHugePage) {
			huge = *pte
			huge.SetFrame(pte.Frame() + mm.Frame(page.P2Index()*mm.EntryCount+page.P1Index()))
			entry = &huge
			return false
		}

		if pteLevel == p2Level && pte.HasFlags(FlagHugePage) {
			huge = *pte
			huge.SetFrame(pte.Frame() + mm.Frame(page.P1Index()))
			entry = &huge
			return false
		}

		entry = pte
		return true
	})

	return entry, err
}

// noEscape hides a pointer from escape analysis, mirroring the trick used
// by the kfmt package to keep pre-heap code allocation-free.
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
