package kernel

import (
	"math"

	"talonkernel/device/vga"
	"talonkernel/kernel/cpu"
	"talonkernel/kernel/gate"
	"talonkernel/kernel/kfmt"
	"talonkernel/kernel/mm"
	"talonkernel/kernel/mm/heap"
	"talonkernel/kernel/mm/memctl"
	"talonkernel/kernel/mm/pmm"
	"talonkernel/kernel/mm/stack"
	"talonkernel/kernel/mm/vmm"
	"talonkernel/kernel/multiboot"
)

// irqStackPages is the number of pages reserved for each interrupt-stack
// -table stack carved by the stack allocator, once the memory controller
// is up.
const irqStackPages = 16

// stackRangePages is how many pages (guard pages included) are reserved for
// the kernel stack allocator, directly following the heap.
const stackRangePages = 128

var consoleWriter vga.Writer

// Kmain is the Go-side kernel entry point, invoked by the boot trampoline
// with the physical address of the Multiboot2 info block. The trampoline
// guarantees the CPU is already in 64-bit long mode with identity paging
// over the kernel image and the boot-info region, and that interrupts are
// disabled. Kmain never returns; if its final loop is ever left, the
// trampoline halts the CPU.
func Kmain(multibootInfoPtr uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	consoleWriter.Init()
	kfmt.SetOutputSink(&consoleWriter)
	kfmt.Printf("booting\n")

	kernelStart, kernelEnd := kernelImageBounds()
	mbStart := multiboot.InfoPtr()
	mbEnd := mbStart + uintptr(multiboot.InfoSize()) - 1

	if err := pmm.Init(kernelStart, kernelEnd, mbStart, mbEnd); err != nil {
		kfmt.Panic(err)
	}

	// CR0.WP so the CPU also enforces read-only pages against
	// supervisor-mode writes, and EFER.NXE so FlagNoExecute mappings are
	// honored; both must be set before the first NX/read-only mapping
	// the remap below installs.
	cpu.EnableWriteProtect()
	cpu.EnableNXE()

	if err := vmm.Init(); err != nil {
		kfmt.Panic(err)
	}

	gate.Init()

	mapHeapRange()
	heap.Kernel.Init(heap.KernelHeapStart, heap.KernelHeapSize)

	stackRangeStart := mm.PageFromAddress(heap.KernelHeapStart + heap.KernelHeapSize)
	stackRangeEnd := stackRangeStart + mm.Page(stackRangePages-1)
	controller := memctl.New(stack.NewAllocator(mm.PageRange(stackRangeStart, stackRangeEnd)))

	if _, err := controller.AllocStack(irqStackPages); err != nil {
		kfmt.Panic(err)
	}

	kfmt.Printf("memory subsystem ready\n")

	for {
		cpu.Halt()
	}
}

// mapHeapRange installs fresh, writable, non-executable mappings for every
// page in the kernel heap's reserved virtual range.
func mapHeapRange() {
	start := mm.PageFromAddress(heap.KernelHeapStart)
	end := mm.PageFromAddress(heap.KernelHeapStart + heap.KernelHeapSize - 1)

	for _, page := range mm.PageRange(start, end) {
		frame, err := mm.AllocFrame()
		if err != nil {
			kfmt.Panic(err)
		}

		if err := vmm.Map(page, frame, vmm.FlagPresent|vmm.FlagRW|vmm.FlagNoExecute); err != nil {
			kfmt.Panic(err)
		}
	}
}

// kernelImageBounds returns the lowest address and the address one past the
// highest byte spanned by any allocated ELF section of the running kernel
// image ([start, end)), exactly as the area
// frame allocator needs them to exclude the kernel's own footprint.
func kernelImageBounds() (start, end uintptr) {
	start = uintptr(math.MaxUint64)

	multiboot.VisitElfSections(func(section *multiboot.ElfSection) bool {
		if section.Flags&multiboot.ElfSectionAllocated == 0 {
			return true
		}

		sectionStart := uintptr(section.StartAddress)
		sectionEnd := sectionStart + uintptr(section.Size)

		if sectionStart < start {
			start = sectionStart
		}
		if sectionEnd > end {
			end = sectionEnd
		}

		return true
	})

	return start, end
}
