package task

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rtflight/hooking"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

// ErrTaskFault is returned by a task whose work loop panicked.
var ErrTaskFault = errors.New("task fault")

// A Task is a unit of work that runs on its own operating-system thread.
type Task interface {
	hooking.NamedHookable

	// Descriptor returns the timing configuration of the task.
	Descriptor() sched.TaskDescriptor

	// Recorder returns the metrics recorder owned by the task.
	Recorder() *metrics.Recorder

	// Run runs the work loop until stop is raised. It must be called from
	// the thread the task's scheduling was applied to.
	Run(stop *Signal) error
}

// Base holds what every task has: a descriptor, a recorder, a preemption
// probe and hooks.
type Base struct {
	*hooking.HookableBase

	desc     sched.TaskDescriptor
	recorder *metrics.Recorder
	probe    sched.Probe
	clock    Clock

	lastPreemptions int64
}

func newBase(
	desc sched.TaskDescriptor,
	recorder *metrics.Recorder,
	probe sched.Probe,
	clock Clock,
) Base {
	if desc.Name == "" {
		panic("task must have a name")
	}

	if clock == nil {
		clock = RealClock{}
	}

	return Base{
		HookableBase:    hooking.NewHookableBase(),
		desc:            desc,
		recorder:        recorder,
		probe:           probe,
		clock:           clock,
		lastPreemptions: -1,
	}
}

// Name returns the name of the task.
func (b *Base) Name() string {
	return b.desc.Name
}

// Descriptor returns the timing configuration of the task.
func (b *Base) Descriptor() sched.TaskDescriptor {
	return b.desc
}

// Recorder returns the metrics recorder of the task.
func (b *Base) Recorder() *metrics.Recorder {
	return b.recorder
}

// preemptions reads the probe and emits a PREEMPTED event when the count grew
// since the last reading.
func (b *Base) preemptions() int64 {
	p := b.probe.Preemptions()

	if b.lastPreemptions >= 0 && p > b.lastPreemptions {
		b.emit(timeline.Preempted, p)
	}

	b.lastPreemptions = p

	return p
}

// emit raises a timeline event. It must not be called with a lock held.
func (b *Base) emit(kind timeline.Kind, preemptions int64) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    timeline.HookPosEvent,
		Item: timeline.Event{
			Time:        b.clock.Now(),
			Task:        b.desc.Name,
			Kind:        kind,
			Preemptions: preemptions,
		},
	})
}

var (
	_ Task = (*FlightTask)(nil)
	_ Task = (*CommandTask)(nil)
	_ Task = (*LoadTask)(nil)
	_ Task = (*EmergencyTask)(nil)
)

// recoverFault turns a panic in a work loop into ErrTaskFault and raises stop.
// Run must defer it directly.
func (b *Base) recoverFault(stop *Signal, err *error) {
	if r := recover(); r != nil {
		stop.Raise()
		*err = fmt.Errorf("%w: %s: %v", ErrTaskFault, b.Name(), r)
	}
}
