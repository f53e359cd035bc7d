//go:build linux

package sched

import (
	"errors"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// LockContext wires the calling goroutine to its current thread and returns
// the thread's context. The goroutine must not unlock the thread; when it
// exits, the thread exits with it and the policy does not leak.
func LockContext() ExecContext {
	runtime.LockOSThread()

	return ExecContext{TID: unix.Gettid()}
}

// LinuxApplier applies scheduling with sched_setattr and sched_setaffinity.
type LinuxApplier struct{}

// NewApplier returns the applier for the host platform.
func NewApplier() Applier {
	return LinuxApplier{}
}

// SetFixedPriority moves the thread to SCHED_FIFO.
func (LinuxApplier) SetFixedPriority(tid int, priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}

	return classify(unix.SchedSetAttr(tid, &attr, 0), false)
}

// SetDeadline moves the thread to SCHED_DEADLINE.
func (LinuxApplier) SetDeadline(
	tid int,
	budget, deadline, period time.Duration,
) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_DEADLINE,
		Runtime:  uint64(budget.Nanoseconds()),
		Deadline: uint64(deadline.Nanoseconds()),
		Period:   uint64(period.Nanoseconds()),
	}

	return classify(unix.SchedSetAttr(tid, &attr, 0), true)
}

// Pin restricts the thread to cpu.
func (LinuxApplier) Pin(tid int, cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	return classify(unix.SchedSetaffinity(tid, &set), false)
}

func classify(err error, deadline bool) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return errors.Join(ErrInsufficientPrivilege, err)
	}

	if deadline && (errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EOPNOTSUPP) ||
		errors.Is(err, unix.EBUSY)) {
		return errors.Join(ErrDeadlineUnsupported, err)
	}

	return err
}

// ThreadProbe reads the involuntary context switches of the calling thread
// from getrusage(RUSAGE_THREAD).
type ThreadProbe struct{}

// NewProbe returns the preemption probe for the host platform.
func NewProbe() Probe {
	return ThreadProbe{}
}

// Preemptions returns the involuntary context switch count of the calling
// thread, or -1 if it cannot be read.
func (ThreadProbe) Preemptions() int64 {
	var usage unix.Rusage

	err := unix.Getrusage(unix.RUSAGE_THREAD, &usage)
	if err != nil {
		return -1
	}

	return int64(usage.Nivcsw)
}
