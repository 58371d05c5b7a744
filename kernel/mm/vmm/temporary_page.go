package vmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/mm"
)

var (
	// translateFn and unmapFn are the indirections TemporaryPage calls
	// through, overridden by tests so a scratch mapping can be faked
	// without a real page table hierarchy.
	translateFn = Translate
	unmapFn     = Unmap

	errTemporaryPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "temporary page is already mapped"}
)

// TemporaryPage maps a fixed scratch virtual page to an arbitrary physical
// frame, allowing the kernel to read or write an inactive page table as if
// it were ordinary memory.
type TemporaryPage struct {
	page mm.Page
}

// NewTemporaryPage reserves pageAddr as a scratch page usable by Map/Unmap.
func NewTemporaryPage(pageAddr uintptr) TemporaryPage {
	return TemporaryPage{page: mm.PageFromAddress(pageAddr)}
}

// MapTo maps the scratch page to frame and returns its virtual address.
func (tp *TemporaryPage) MapTo(frame mm.Frame) (uintptr, *kernel.Error) {
	if _, err := translateFn(tp.page.Address()); err == nil {
		return 0, errTemporaryPageAlreadyMapped
	}

	if err := mapFn(tp.page, frame, FlagPresent|FlagRW); err != nil {
		return 0, err
	}

	return tp.page.Address(), nil
}

// Unmap removes the scratch page's mapping.
func (tp *TemporaryPage) Unmap() *kernel.Error {
	return unmapFn(tp.page)
}
