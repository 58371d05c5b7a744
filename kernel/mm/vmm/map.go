package vmm

import (
	"unsafe"

	"talonkernel/kernel"
	"talonkernel/kernel/cpu"
	"talonkernel/kernel/mm"
)

var (
	// flushTLBEntryFn invalidates a single TLB entry. Overridden by
	// tests; inlined by the compiler when building the kernel.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// mapFn is the indirection IdentityMapRegion and MapTemporary call
	// through, so tests can observe or stub individual Map calls without
	// faking an entire page table hierarchy.
	mapFn = Map

	// nextAddrFn computes the virtual address of a newly allocated child
	// page table from the pointer ptePtrFn returned for its parent entry.
	// In production ptePtrFn is the identity function, so shifting the
	// entry's own virtual address by another level's worth of index bits
	// reproduces the recursive-mapping address of the table it now
	// points to; tests override this since their ptePtrFn returns real
	// Go heap pointers that the same shift would not resolve correctly.
	nextAddrFn = func(entryAddr uintptr) uintptr {
		return entryAddr
	}

	// errNoHugePageSupport is returned by Map and Unmap when the walk
	// crosses an existing huge entry: creating or tearing down huge
	// mappings is out of scope. Translate has no such restriction — it
	// resolves huge mappings directly, see pteForAddress.
	errNoHugePageSupport           = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errAttemptToRWMapReservedFrame = &kernel.Error{Module: "vmm", Message: "reserved blank frame cannot be mapped with a RW flag"}
)

// ReservedZeroedFrame is a zero-cleared frame allocated once the vmm is
// initialized, used together with FlagCopyOnWrite to back on-demand
// allocations: a page mapped to this frame traps on the first write and is
// replaced with a private copy by the page fault handler.
var ReservedZeroedFrame mm.Frame

// protectReservedZeroedPage is set once ReservedZeroedFrame has been
// initialized, preventing it from ever being mapped writable.
var protectReservedZeroedPage bool

// Map establishes a mapping between a virtual page and a physical frame in
// the currently active page table, allocating and clearing any missing
// intermediate page tables along the way.
//
// If the final entry is already present and points at the same frame, Map
// merges the new flags into the existing entry instead of failing; this is
// what lets two overlapping ELF sections (a common occurrence when the
// linker packs .rodata and .text into the same final page) both be mapped
// without the second call rejecting an "already in use" page. A present
// final entry that points at a different frame is not rejected either: Map
// overwrites it with the new frame and flags.
func Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	if protectReservedZeroedPage && frame == ReservedZeroedFrame && (flags&FlagRW) != 0 {
		return errAttemptToRWMapReservedFrame
	}

	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) && pte.Frame() == frame {
				pte.SetFlags(flags | FlagPresent)
				flushTLBEntryFn(page.Address())
				return true
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags | FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		if !pte.HasFlags(FlagPresent) {
			var newTableFrame mm.Frame
			newTableFrame, err = mm.AllocFrame()
			if err != nil {
				return false
			}

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)

			nextTableAddr := uintptr(unsafe.Pointer(pte)) << pageLevelBits[pteLevel+1]
			kernel.Memset(nextAddrFn(nextTableAddr), 0, mm.PageSize)
		}

		return true
	})

	return err
}

// IdentityMapRegion establishes an identity mapping (virtual address ==
// physical address) for the physical region [startFrame, startFrame +
// pages(size)).
func IdentityMapRegion(startFrame mm.Frame, size uintptr, flags PageTableEntryFlag) *kernel.Error {
	pageCount := mm.Frame(((size + (mm.PageSize - 1)) & ^(mm.PageSize - 1)) >> mm.PageShift)

	for f := startFrame; f < startFrame+pageCount; f++ {
		if err := mapFn(mm.Page(f), f, flags); err != nil {
			return err
		}
	}

	return nil
}

// MapTemporary establishes a temporary RW mapping of a physical frame at a
// fixed, always-available virtual address, overwriting whatever was mapped
// there previously. Used to reach into inactive page tables.
func MapTemporary(frame mm.Frame) (mm.Page, *kernel.Error) {
	if protectReservedZeroedPage && frame == ReservedZeroedFrame {
		return 0, errAttemptToRWMapReservedFrame
	}

	if err := Map(mm.PageFromAddress(tempMappingAddr), frame, FlagPresent|FlagRW); err != nil {
		return 0, err
	}

	return mm.PageFromAddress(tempMappingAddr), nil
}

// Unmap removes a mapping previously installed via Map, IdentityMapRegion or
// MapTemporary and flushes its TLB entry.
func Unmap(page mm.Page) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return err
}

// Translate returns the physical address that virtAddr currently maps to,
// or ErrInvalidMapping if it is unmapped.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}

	return pte.Frame().Address() + PageOffset(virtAddr), nil
}

// PageOffset returns the offset of virtAddr within its containing page.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1)
}
