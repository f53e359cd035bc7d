package task

import (
	"time"

	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/load"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

// FlightTask is the periodic control loop. Every iteration applies the
// emergency override and advances the physics model under the state lock.
type FlightTask struct {
	Base

	state    *flight.State
	model    flight.Model
	workCost int
	sink     float64
}

// NewFlightTask creates the control loop. desc must be periodic.
func NewFlightTask(
	desc sched.TaskDescriptor,
	state *flight.State,
	model flight.Model,
	recorder *metrics.Recorder,
	probe sched.Probe,
	clock Clock,
) *FlightTask {
	if desc.Class != sched.Periodic || desc.Period <= 0 {
		panic("flight task must be periodic")
	}

	return &FlightTask{
		Base:  newBase(desc, recorder, probe, clock),
		state: state,
		model: model,
	}
}

// WithWorkCost sets how many iterations of synthetic computation each control
// iteration performs after the state update.
func (t *FlightTask) WithWorkCost(n int) *FlightTask {
	t.workCost = n
	return t
}

// Run releases one job per period until stop is raised. Releases are
// accumulated from the first one, so jitter never shifts later releases. A
// panic inside an iteration raises stop and is returned as ErrTaskFault.
func (t *FlightTask) Run(stop *Signal) (err error) {
	defer t.recoverFault(stop, &err)

	freq := sched.FreqOf(t.desc.Period)
	phase := t.clock.Now()

	for n := uint64(0); !stop.Raised(); n++ {
		t.Iterate(freq.Release(phase, n))
		t.clock.SleepUntil(freq.Release(phase, n+1), stop.Done())
	}

	return nil
}

// Iterate runs the job released at release. It reports whether the job
// started after its deadline.
func (t *FlightTask) Iterate(release time.Time) (missed bool) {
	start := t.clock.Now()

	if start.After(t.desc.JobDeadline(release)) {
		missed = true
		t.recorder.DeadlineMiss()
		t.emit(timeline.DeadlineMiss, t.lastPreemptions)
	}

	t.emit(timeline.Start, t.lastPreemptions)

	t.state.Mutate(func(s *flight.Snapshot) {
		if s.Emergency {
			s.ZeroActuators()
		}

		*s = t.model.Step(*s)
	})

	if t.workCost > 0 {
		t.sink = load.Spin(t.workCost, t.sink)
	}

	exec := t.clock.Now().Sub(start)
	p := t.preemptions()
	t.recorder.Iteration(exec, p)

	t.emit(timeline.End, p)

	return missed
}
