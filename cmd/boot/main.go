package main

import "talonkernel/kernel"

// multibootInfoPtr is populated by the rt0 assembly trampoline before main
// is called, with the physical address of the Multiboot2 info block passed
// by the bootloader in EBX/RBX.
var multibootInfoPtr uintptr

// main is the only Go symbol visible to the rt0 assembly code. It exists to
// stop the compiler from inlining and discarding the real entrypoint: a
// direct call from assembly into kernel.Kmain would otherwise be eligible
// for dead-code elimination since nothing in the Go build graph appears to
// reach it.
//
// main is not expected to return. If it does, the rt0 code halts the CPU.
func main() {
	kernel.Kmain(multibootInfoPtr)
}
