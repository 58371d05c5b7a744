// Package mm defines the address types and allocator plumbing shared by the
// kernel's physical and virtual memory managers.
package mm

import (
	"math"

	"talonkernel/kernel"
	"talonkernel/kernel/kfmt"
)

// ErrInvalidAddress is returned when a virtual address falls inside the
// non-canonical hole of 48-bit addressing.
var ErrInvalidAddress = &kernel.Error{Module: "mm", Message: "address is not canonical"}

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by page allocators when they fail to reserve the
// requested frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Both page-aligned and unaligned addresses are accepted; an
// unaligned address is rounded down to the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}

// FrameRange returns the (inclusive) list of frames spanning [start, end].
func FrameRange(start, end Frame) []Frame {
	if end < start {
		return nil
	}

	frames := make([]Frame, 0, end-start+1)
	for f := start; f <= end; f++ {
		frames = append(frames, f)
	}

	return frames
}

var (
	// frameAllocator points to a frame allocator function registered via
	// SetFrameAllocator.
	frameAllocator FrameAllocatorFn
)

// FrameAllocatorFn is a function that can allocate or release physical
// frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// SetFrameAllocator registers the frame allocator function used whenever
// the vmm package needs to allocate a new physical frame to back a page
// table.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// AllocFrame allocates a new physical frame using the currently active
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) { return frameAllocator() }

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// P4Index returns the index of this page's entry in the level-4 page table.
func (p Page) P4Index() uintptr {
	return (uintptr(p) >> 27) & (EntryCount - 1)
}

// P3Index returns the index of this page's entry in the level-3 page table.
func (p Page) P3Index() uintptr {
	return (uintptr(p) >> 18) & (EntryCount - 1)
}

// P2Index returns the index of this page's entry in the level-2 page table.
func (p Page) P2Index() uintptr {
	return (uintptr(p) >> 9) & (EntryCount - 1)
}

// P1Index returns the index of this page's entry in the level-1 page table.
func (p Page) P1Index() uintptr {
	return uintptr(p) & (EntryCount - 1)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Both page-aligned and unaligned addresses are accepted; an unaligned
// address is rounded down to the page that contains it. PageFromAddress
// panics if addr is not a canonical 48-bit address, mirroring the
// bootstrap-time assumption that no caller ever constructs a Page for an
// address a real x86_64 CPU would refuse to translate.
func PageFromAddress(virtAddr uintptr) Page {
	if !IsCanonicalAddress(virtAddr) {
		kfmt.Panic(ErrInvalidAddress)
	}

	return Page((virtAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}

// PageRange returns the (inclusive) list of pages spanning [start, end].
func PageRange(start, end Page) []Page {
	if end < start {
		return nil
	}

	pages := make([]Page, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}

	return pages
}
