package sched

import "time"

// ExecContext identifies the operating-system thread a task runs on.
type ExecContext struct {
	TID int
}

// An Applier changes the scheduling of an operating-system thread.
type Applier interface {
	// SetFixedPriority moves the thread to the FIFO real-time class.
	SetFixedPriority(tid int, priority int) error

	// SetDeadline moves the thread to the deadline class.
	SetDeadline(tid int, budget, deadline, period time.Duration) error

	// Pin restricts the thread to a single CPU.
	Pin(tid int, cpu int) error
}

// A Probe reports the number of involuntary context switches the calling
// thread has suffered. It must be called from the thread being measured.
type Probe interface {
	Preemptions() int64
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() int64

// Preemptions calls f.
func (f ProbeFunc) Preemptions() int64 {
	return f()
}
