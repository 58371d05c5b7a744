package vmm

import (
	"talonkernel/kernel"
	"talonkernel/kernel/cpu"
	"talonkernel/kernel/gate"
	"talonkernel/kernel/kfmt"
	"talonkernel/kernel/mm"
)

var (
	// handleInterruptFn is the indirection installFaultHandlers calls
	// through; overridden by tests so registering handlers doesn't
	// require gate's real IDT machinery.
	handleInterruptFn = gate.HandleInterrupt

	// readCR2Fn returns the faulting linear address recorded by the CPU.
	// Overridden by tests.
	readCR2Fn = cpu.ReadCR2

	// mapTemporaryFn is the indirection pageFaultHandler calls through to
	// reach the copy-on-write target frame. Overridden by tests.
	mapTemporaryFn = MapTemporary
)

// installFaultHandlers wires the page-fault and general-protection-fault
// vectors to the handlers below. Called once from Init, which kernel.Kmain
// runs before gate.Init.
func installFaultHandlers() {
	handleInterruptFn(gate.PageFaultException, 0, pageFaultHandler)
	handleInterruptFn(gate.GPFException, 0, generalProtectionFaultHandler)
}

// pageFaultHandler is invoked when a page table entry is not present or a
// protection check fails. A fault on a page carrying FlagCopyOnWrite is
// resolved by giving the faulting mapping its own private frame; every
// other fault is unrecoverable.
func pageFaultHandler(regs *gate.Registers) {
	var (
		faultAddress = uintptr(readCR2Fn())
		faultPage    = mm.PageFromAddress(faultAddress)
		pageEntry    *pageTableEntry
	)

	walk(faultPage.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		nextIsPresent := pte.HasFlags(FlagPresent)

		if pteLevel == pageLevels-1 && nextIsPresent {
			pageEntry = pte
		}

		return nextIsPresent
	})

	if pageEntry != nil && !pageEntry.HasFlags(FlagRW) && pageEntry.HasFlags(FlagCopyOnWrite) {
		var (
			copyFrame mm.Frame
			tmpPage   mm.Page
			err       *kernel.Error
		)

		if copyFrame, err = mm.AllocFrame(); err != nil {
			nonRecoverablePageFault(faultAddress, regs, err)
		} else if tmpPage, err = mapTemporaryFn(copyFrame); err != nil {
			nonRecoverablePageFault(faultAddress, regs, err)
		} else {
			kernel.Memcopy(faultPage.Address(), tmpPage.Address(), mm.PageSize)
			_ = unmapFn(tmpPage)

			pageEntry.ClearFlags(FlagCopyOnWrite)
			pageEntry.SetFlags(FlagPresent | FlagRW)
			pageEntry.SetFrame(copyFrame)
			flushTLBEntryFn(faultPage.Address())

			// Fault recovered; the interrupted instruction will be retried.
			return
		}
	}

	nonRecoverablePageFault(faultAddress, regs, errUnrecoverableFault)
}

// generalProtectionFaultHandler is invoked for segment violations,
// privilege violations and accesses to reserved or unimplemented
// registers. There is no recovery path for this module.
func generalProtectionFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nGeneral protection fault while accessing address: 0x%x\n", readCR2Fn())
	kfmt.Printf("Registers:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	panic(errUnrecoverableFault)
}

func nonRecoverablePageFault(faultAddress uintptr, regs *gate.Registers, err *kernel.Error) {
	kfmt.Printf("\nPage fault while accessing address: 0x%16x\nReason: ", faultAddress)
	switch {
	case regs.Info == 0:
		kfmt.Printf("read from non-present page")
	case regs.Info == 1:
		kfmt.Printf("page protection violation (read)")
	case regs.Info == 2:
		kfmt.Printf("write to non-present page")
	case regs.Info == 3:
		kfmt.Printf("page protection violation (write)")
	case regs.Info == 4:
		kfmt.Printf("page-fault in user-mode")
	case regs.Info == 8:
		kfmt.Printf("page table has reserved bit set")
	case regs.Info == 16:
		kfmt.Printf("instruction fetch")
	default:
		kfmt.Printf("unknown")
	}

	kfmt.Printf("\n\nRegisters:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	panic(err)
}
