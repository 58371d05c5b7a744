package vmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/kfmt"
	"talonkernel/kernel/mm"
	"talonkernel/kernel/multiboot"
)

// remapScratchPageAddr is the virtual page RemapKernel reserves as its
// private TemporaryPage while building the new table; it is never otherwise
// used so any fixed, canonical, page-aligned address works. A var rather
// than a const so tests can point it at a real backing buffer instead of an
// arbitrary address no page table actually backs.
var remapScratchPageAddr uintptr = 0xcafeb000

// vgaBufferPhysAddr is the physical address of the VGA text-mode buffer,
// identity-mapped so early panic output keeps working after the remap.
const vgaBufferPhysAddr = 0xb8000

// visitElfSectionsFn is the indirection RemapKernel calls through, so tests
// can feed it a synthetic section list without building a multiboot info
// blob.
var visitElfSectionsFn = multiboot.VisitElfSections

// entryFlagsForElfSection translates the permission bits the bootloader
// reports for an ELF section into the page table entry flags that should
// back its mapping: PRESENT if the section occupies memory at runtime,
// RW if writable, and NoExecute unless the section is executable.
func entryFlagsForElfSection(flags multiboot.ElfSectionFlag) PageTableEntryFlag {
	var out PageTableEntryFlag

	if flags&multiboot.ElfSectionAllocated != 0 {
		out |= FlagPresent
	}
	if flags&multiboot.ElfSectionWritable != 0 {
		out |= FlagRW
	}
	if flags&multiboot.ElfSectionExecutable == 0 {
		out |= FlagNoExecute
	}

	return out
}

// RemapKernel builds a fresh, granular address space for the kernel and
// switches to it: each allocated ELF section of the running kernel image is
// identity-mapped with exactly the permissions the linker assigned it
// (sections that share a final page, e.g. the tail of .text and the head of
// .rodata, have their flags merged into that page's single entry rather than
// rejecting the second mapping), the multiboot info structure and the VGA
// buffer are identity-mapped so boot code and early panic output keep
// working, and the page at the previously active P4 table's address is
// unmapped in the new address space so it acts as a guard page that traps
// any stale access through it.
func RemapKernel() *kernel.Error {
	tempPage := NewTemporaryPage(remapScratchPageAddr)

	newTableFrame, err := mm.AllocFrame()
	if err != nil {
		return err
	}

	newTable, err := NewInactivePageTable(newTableFrame, &tempPage)
	if err != nil {
		return err
	}

	var active ActivePageTable
	var mapErr *kernel.Error

	mapErrFn := func() {
		visitElfSectionsFn(func(section *multiboot.ElfSection) bool {
			flags := entryFlagsForElfSection(section.Flags)
			if flags&FlagPresent == 0 {
				return true
			}

			startFrame := mm.FrameFromAddress(uintptr(section.StartAddress))
			endFrame := mm.FrameFromAddress(uintptr(section.StartAddress+section.Size) - 1)

			kfmt.Printf("vmm: identity-mapping %x - %x flags %x\n", startFrame.Address(), endFrame.Address()+mm.PageSize-1, uintptr(flags))

			for _, frame := range mm.FrameRange(startFrame, endFrame) {
				if mapErr = mapFn(mm.Page(frame), frame, flags); mapErr != nil {
					return false
				}
			}

			return true
		})
		if mapErr != nil {
			return
		}

		if infoPtr := multiboot.InfoPtr(); infoPtr != 0 {
			mbStart := mm.FrameFromAddress(infoPtr)
			mbEnd := mm.FrameFromAddress(infoPtr + uintptr(multiboot.InfoSize()) - 1)
			for _, frame := range mm.FrameRange(mbStart, mbEnd) {
				if mapErr = mapFn(mm.Page(frame), frame, FlagPresent); mapErr != nil {
					return
				}
			}
		}

		vgaFrame := mm.FrameFromAddress(vgaBufferPhysAddr)
		mapErr = mapFn(mm.Page(vgaFrame), vgaFrame, FlagPresent|FlagRW)
	}

	if err := active.With(newTable, mapErrFn); err != nil {
		return err
	}
	if mapErr != nil {
		return mapErr
	}

	oldTable := active.Switch(newTable)

	oldP4Page := mm.PageFromAddress(oldTable.P4Frame.Address())
	if err := unmapFn(oldP4Page); err != nil {
		return err
	}

	kfmt.Printf("vmm: stack guard page at %x\n", oldP4Page.Address())

	return nil
}
