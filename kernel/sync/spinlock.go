// Package sync provides synchronization primitives for use by the memory
// subsystem once interrupts are enabled. spec.md section 5 requires the
// global buddy heap's mutating operations to run under mutual exclusion;
// Spinlock is what backs that requirement.
package sync

import "sync/atomic"

var (
	// yieldFn is not invoked by anything: Acquire's busy-wait loop in
	// spinlock_amd64.s spins with PAUSE and never yields. No task
	// scheduler exists in this kernel (spec.md's scheduling model is single-threaded
	// bare-metal, so contention can only come from an interrupt handler
	// re-entering a held lock, which Acquire cannot resolve — callers
	// must disable interrupts around the critical section instead, per
	// spec.md section 5).
	yieldFn func()
)

// Spinlock is a lock where a caller trying to acquire it busy-waits until
// the lock becomes available. Re-acquiring a lock already held by the
// current execution context deadlocks, exactly as a real spinlock would.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired.
func (l *Spinlock) Acquire() {
	archAcquireSpinlock(&l.state, 1)
}

// TryToAcquire attempts to acquire the lock without blocking, returning
// true if it succeeded.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock. Calling Release on a free lock has no
// effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// archAcquireSpinlock is the arch-specific busy-wait loop for acquiring the
// lock; its body lives in spinlock_amd64.s. attemptsBeforeYielding is not
// read by that loop.
func archAcquireSpinlock(state *uint32, attemptsBeforeYielding uint32)
