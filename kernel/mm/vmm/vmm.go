package vmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/mm"
)

var errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "page/gpf fault"}

// Init remaps the running kernel onto a fresh, granular address space,
// installs the page-fault and general-protection-fault handlers, and
// reserves the zeroed frame FlagCopyOnWrite mappings fault against.
func Init() *kernel.Error {
	if err := RemapKernel(); err != nil {
		return err
	}

	installFaultHandlers()

	return reserveZeroedFrame()
}

// reserveZeroedFrame allocates and zeroes ReservedZeroedFrame, then locks
// it against ever being mapped RW: from this point on only
// FlagCopyOnWrite|FlagPresent (never +FlagRW) mappings to it are allowed,
// so the first write to such a mapping always page-faults into
// pageFaultHandler's copy path instead of corrupting the shared frame.
func reserveZeroedFrame() *kernel.Error {
	var (
		err      *kernel.Error
		tempPage mm.Page
	)

	if ReservedZeroedFrame, err = mm.AllocFrame(); err != nil {
		return err
	} else if tempPage, err = mapTemporaryFn(ReservedZeroedFrame); err != nil {
		return err
	}

	kernel.Memset(tempPage.Address(), 0, mm.PageSize)
	_ = unmapFn(tempPage)

	protectReservedZeroedPage = true
	return nil
}
