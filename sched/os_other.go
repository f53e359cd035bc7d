//go:build !linux

package sched

import (
	"runtime"
	"time"
)

// LockContext wires the calling goroutine to its current thread. Thread IDs
// are not available on this platform.
func LockContext() ExecContext {
	runtime.LockOSThread()

	return ExecContext{}
}

type unsupportedApplier struct{}

// NewApplier returns the applier for the host platform.
func NewApplier() Applier {
	return unsupportedApplier{}
}

func (unsupportedApplier) SetFixedPriority(int, int) error {
	return ErrUnsupportedPlatform
}

func (unsupportedApplier) SetDeadline(int, time.Duration, time.Duration, time.Duration) error {
	return ErrDeadlineUnsupported
}

func (unsupportedApplier) Pin(int, int) error {
	return ErrUnsupportedPlatform
}

// NewProbe returns the preemption probe for the host platform. Thread
// context switch counts are not available here.
func NewProbe() Probe {
	return ProbeFunc(func() int64 { return -1 })
}
