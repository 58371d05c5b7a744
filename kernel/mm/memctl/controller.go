// Package memctl provides the Memory Controller facade: the single handle
// threaded into the interrupt subsystem so that handlers can obtain IST
// stacks without reaching into the frame allocator, the active page table
// and the stack allocator individually.
package memctl

import (
	"talonkernel/kernel"
	"talonkernel/kernel/mm/stack"
)

// Controller owns the kernel's stack allocator. The active page table and
// the physical frame allocator are process-wide singletons reached through
// the vmm and pmm packages directly, so the only per-instance state left to
// own here is the stack range.
type Controller struct {
	stacks *stack.Allocator
}

// New wraps stacks, a stack.Allocator already carved from the reserved
// kernel stack page range, into a Controller.
func New(stacks *stack.Allocator) *Controller {
	return &Controller{stacks: stacks}
}

// AllocStack reserves a guard-paged kernel stack sizeInPages pages long.
func (c *Controller) AllocStack(sizeInPages uintptr) (stack.Stack, *kernel.Error) {
	return c.stacks.Alloc(sizeInPages)
}
