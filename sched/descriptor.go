// Package sched maps task descriptors onto operating-system scheduling
// policies and measures how the scheduler treats each task.
package sched

import (
	"fmt"
	"time"
)

// Class is the timing class of a task.
type Class int

// Task classes.
const (
	Periodic Class = iota
	Aperiodic
	Sporadic
)

func (c Class) String() string {
	switch c {
	case Periodic:
		return "periodic"
	case Aperiodic:
		return "aperiodic"
	case Sporadic:
		return "sporadic"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// TaskDescriptor is the fixed timing configuration of a task. It is created
// before any task starts and never changes afterwards.
type TaskDescriptor struct {
	Name  string
	Class Class

	// Priority is the requested priority. It only orders tasks of the same
	// class; the plan decides the applied priority.
	Priority int

	Period           time.Duration
	Budget           time.Duration
	RelativeDeadline time.Duration

	// CPU pins the task to one CPU. A negative value leaves it unpinned.
	CPU int
}

// Deadline returns the relative deadline, defaulting to the period.
func (d TaskDescriptor) Deadline() time.Duration {
	if d.RelativeDeadline > 0 {
		return d.RelativeDeadline
	}

	return d.Period
}

// JobDeadline returns the absolute deadline of a job released at release.
func (d TaskDescriptor) JobDeadline(release time.Time) time.Time {
	return release.Add(d.Deadline())
}

// Validate checks that the descriptor is consistent with its class.
func (d TaskDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("task descriptor must have a name")
	}

	if d.Class == Periodic && d.Period <= 0 {
		return fmt.Errorf("periodic task %s must have a positive period", d.Name)
	}

	if d.Budget < 0 || d.RelativeDeadline < 0 {
		return fmt.Errorf("task %s has a negative budget or deadline", d.Name)
	}

	if d.Class == Periodic && d.Deadline() > d.Period {
		return fmt.Errorf(
			"task %s has deadline %s longer than its period %s",
			d.Name, d.Deadline(), d.Period)
	}

	return nil
}
