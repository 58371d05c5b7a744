package kfmt

import (
	"talonkernel/kernel"
	"talonkernel/kernel/cpu"
)

var (
	// cpuHaltFn is swapped out by tests; the compiler inlines it when
	// building the kernel.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic prints the supplied error (if any) and halts the CPU. Panic never
// returns. Every fatal condition named in spec.md section 7 — OutOfFrames
// surfacing as a nil Option, OutOfHeap, InvalidMapping, InvalidAddress,
// UninitializedHeap, BadAlignment — funnels into a call to Panic, directly
// or via the standard library panic() builtin once runtime.gopanic is
// redirected here.
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// panicString serves as a redirect target for runtime.throw.
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
