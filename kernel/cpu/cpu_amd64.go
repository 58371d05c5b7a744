// Package cpu exposes the small set of amd64 register operations the memory
// subsystem needs: reading/switching the page table root (CR3), reading the
// faulting address (CR2), flushing single TLB entries, toggling interrupts,
// halting, and the EFER/CR0 feature bits spec.md section 6 calls out.
//
// Every exported function below except IsIntel has no Go body; its
// implementation lives in cpu_amd64.s. Tests never call these
// directly — they replace the package-level function variables in the
// packages that consume them (vmm, sync) with fakes.
package cpu

var cpuidFn = ID

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt.
func Halt()

// FlushTLBEntry flushes the TLB entry for a particular virtual address via
// INVLPG. Required after every unmap and after any partial edit of the
// active P4 that a reader might otherwise observe mid-update (spec.md
// section 5).
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT loads pdtPhysAddr into CR3, making it the active top-level page
// table, and implicitly flushes the entire TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active top-level
// page table (the contents of CR3 with the low flag bits masked off).
func ActivePDT() uintptr

// ReadCR2 returns the faulting linear address recorded by the CPU for the
// most recent page fault.
func ReadCR2() uint64

// ID executes CPUID with EAX=leaf and returns the resulting EAX, EBX, ECX
// and EDX values.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// EnableWriteProtect sets CR0.WP so the CPU honors the RW bit of page table
// entries while running in ring 0. Without this, kernel code can write to
// pages mapped read-only, which would silently defeat the CopyOnWrite
// mapping scheme.
func EnableWriteProtect()

// EnableNXE sets EFER.NXE (bit 11) and EFER.SCE (bit 0), enabling the
// NOEXEC page table flag and the SYSCALL/SYSRET instruction pair
// respectively. spec.md section 6 lists both bits as part of the fixed
// register surface the bootstrap must configure.
func EnableNXE()
