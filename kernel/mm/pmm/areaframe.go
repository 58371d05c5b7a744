// Package pmm implements the kernel's physical frame allocator.
package pmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/kfmt"
	"talonkernel/kernel/mm"
	"talonkernel/kernel/multiboot"
)

// ErrOutOfFrames is returned once every area reported by the bootloader has
// been exhausted.
var ErrOutOfFrames = &kernel.Error{Module: "pmm", Message: "out of physical frames"}

// areaFrameAllocator is a bump allocator over the usable memory areas
// reported by the bootloader. It excludes the frame ranges occupied by the
// kernel image and by the multiboot info structure itself, and it never
// reclaims a frame once handed out.
type areaFrameAllocator struct {
	initialized bool

	nextFrame mm.Frame

	haveArea             bool
	currentAreaLastFrame mm.Frame

	kernelStart, kernelEnd       mm.Frame
	multibootStart, multibootEnd mm.Frame
}

// allocator is the single package-level instance wired into mm via
// SetFrameAllocator.
var allocator areaFrameAllocator

// Init configures the area frame allocator with the physical extents of the
// kernel image and the multiboot info structure, prints the system memory
// map, and registers the allocator with the mm package.
func Init(kernelStart, kernelEnd, multibootStart, multibootEnd uintptr) *kernel.Error {
	allocator = areaFrameAllocator{
		kernelStart:    mm.FrameFromAddress(kernelStart),
		kernelEnd:      mm.FrameFromAddress(kernelEnd),
		multibootStart: mm.FrameFromAddress(multibootStart),
		multibootEnd:   mm.FrameFromAddress(multibootEnd),
	}

	allocator.printMemoryMap()
	allocator.chooseNextArea()
	allocator.initialized = true

	mm.SetFrameAllocator(allocator.AllocFrame)

	return nil
}

func (a *areaFrameAllocator) printMemoryMap() {
	kfmt.Printf("[pmm] system memory map:\n")
	var totalFree uint64
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Printf("  [0x%10x - 0x%10x] size %10d type %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())
		if region.Type == multiboot.MemAvailable {
			totalFree += region.Length
		}
		return true
	})
	kfmt.Printf("[pmm] free memory: %dKb\n", totalFree/1024)
}

// chooseNextArea scans every usable area reported by the bootloader and
// selects the one with the lowest start address whose last frame is still
// >= nextFrame. If nextFrame falls below the chosen area's first frame
// (i.e. we just finished the previous area), nextFrame is advanced to that
// first frame.
func (a *areaFrameAllocator) chooseNextArea() {
	var (
		found          bool
		bestStartFrame mm.Frame
		bestStartAddr  uint64
		bestLastFrame  mm.Frame
	)

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable || region.Length == 0 {
			return true
		}

		lastFrame := mm.FrameFromAddress(uintptr(region.PhysAddress + region.Length - 1))
		if lastFrame < a.nextFrame {
			return true
		}

		if !found || region.PhysAddress < bestStartAddr {
			found = true
			bestStartAddr = region.PhysAddress
			bestStartFrame = mm.FrameFromAddress(uintptr(region.PhysAddress))
			bestLastFrame = lastFrame
		}

		return true
	})

	a.haveArea = found
	if !found {
		return
	}

	a.currentAreaLastFrame = bestLastFrame
	if a.nextFrame < bestStartFrame {
		a.nextFrame = bestStartFrame
	}
}

// AllocFrame reserves and returns the next available physical frame. It
// implements mm.FrameAllocatorFn.
func (a *areaFrameAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	if !a.initialized {
		a.chooseNextArea()
		a.initialized = true
	}

	for {
		if !a.haveArea {
			return mm.InvalidFrame, ErrOutOfFrames
		}

		frame := a.nextFrame

		if frame > a.currentAreaLastFrame {
			a.chooseNextArea()
			continue
		}

		if frame >= a.kernelStart && frame <= a.kernelEnd {
			a.nextFrame = frame + 1
			continue
		}

		if frame >= a.multibootStart && frame <= a.multibootEnd {
			a.nextFrame = frame + 1
			continue
		}

		a.nextFrame = frame + 1
		return frame, nil
	}
}

// ReleaseFrame is a permanent no-op: the area frame allocator is a bump
// allocator and never reclaims a frame once handed out.
func ReleaseFrame(_ mm.Frame) {}
