// Package stack carves guard-page-separated kernel stacks out of a
// reserved virtual page range.
package stack

import (
	"talonkernel/kernel"
	"talonkernel/kernel/mm"
	"talonkernel/kernel/mm/vmm"
)

// ErrZeroSizeStack is returned when Alloc is asked for a zero-page stack.
var ErrZeroSizeStack = &kernel.Error{Module: "stack", Message: "stack size must be at least one page"}

// ErrRangeExhausted is returned when the allocator's backing page range
// cannot satisfy a guard page plus the requested number of body pages.
var ErrRangeExhausted = &kernel.Error{Module: "stack", Message: "page range exhausted"}

// stackPageFlags are the flags every stack body page is mapped with: never
// executable, since a kernel stack is pure data.
const stackPageFlags = vmm.FlagPresent | vmm.FlagRW | vmm.FlagNoExecute

// mapFn is the indirection Alloc calls through to back each stack page with
// a fresh frame. Overridden by tests; inlined by the compiler otherwise.
var mapFn = vmm.Map

// Stack describes a mapped kernel stack by its top (highest address, one
// past the last byte) and bottom (lowest mapped address).
type Stack struct {
	top    uintptr
	bottom uintptr
}

// Top returns the address one past the stack's highest byte; this is the
// value loaded into RSP (or an IST slot) before the stack is first used.
func (s Stack) Top() uintptr { return s.top }

// Bottom returns the stack's lowest mapped address. The page immediately
// below Bottom is the unmapped guard page.
func (s Stack) Bottom() uintptr { return s.bottom }

// Allocator carves stacks out of a fixed, ascending range of virtual
// pages. Each call to Alloc consumes one guard page (left unmapped) plus
// the requested number of body pages from the front of the range; a failed
// call never advances it.
type Allocator struct {
	pages []mm.Page
}

// NewAllocator returns an Allocator that serves stacks from pages, in
// order.
func NewAllocator(pages []mm.Page) *Allocator {
	return &Allocator{pages: pages}
}

// Alloc reserves a guard page followed by sizeInPages mapped, writable,
// non-executable pages, returning the resulting Stack. The guard page is
// deliberately left unmapped so a stack overflow page-faults immediately
// instead of corrupting whatever follows it in memory.
func (a *Allocator) Alloc(sizeInPages uintptr) (Stack, *kernel.Error) {
	if sizeInPages == 0 {
		return Stack{}, ErrZeroSizeStack
	}

	needed := uintptr(1) + sizeInPages
	if uintptr(len(a.pages)) < needed {
		return Stack{}, ErrRangeExhausted
	}

	body := a.pages[1:needed]
	for _, page := range body {
		frame, err := mm.AllocFrame()
		if err != nil {
			return Stack{}, err
		}

		if err := mapFn(page, frame, stackPageFlags); err != nil {
			return Stack{}, err
		}
	}

	a.pages = a.pages[needed:]

	last := body[len(body)-1]
	return Stack{
		top:    last.Address() + mm.PageSize,
		bottom: body[0].Address(),
	}, nil
}
