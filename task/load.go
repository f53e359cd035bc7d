package task

import (
	"sync/atomic"
	"time"

	"github.com/sarchlab/rtflight/load"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

// DefaultYield is the pause between two load units.
const DefaultYield = 100 * time.Microsecond

// LoadTask runs a load unit as fast as it is scheduled. It never touches the
// flight state.
type LoadTask struct {
	Base

	unit     load.Unit
	yield    time.Duration
	produced atomic.Int64
}

// NewLoadTask creates a task that runs unit.
func NewLoadTask(
	desc sched.TaskDescriptor,
	unit load.Unit,
	recorder *metrics.Recorder,
	probe sched.Probe,
	clock Clock,
) *LoadTask {
	return &LoadTask{
		Base:  newBase(desc, recorder, probe, clock),
		unit:  unit,
		yield: DefaultYield,
	}
}

// WithYield sets the pause between units. Zero disables it.
func (t *LoadTask) WithYield(d time.Duration) *LoadTask {
	t.yield = d
	return t
}

// Produced returns the sum of what the units returned.
func (t *LoadTask) Produced() int64 {
	return t.produced.Load()
}

// Run runs units until stop is raised. A panicking unit raises stop and is
// returned as ErrTaskFault.
func (t *LoadTask) Run(stop *Signal) (err error) {
	defer t.recoverFault(stop, &err)

	t.emit(timeline.Start, t.preemptions())
	defer func() { t.emit(timeline.End, t.lastPreemptions) }()

	for !stop.Raised() {
		t.Step()

		if t.yield > 0 {
			t.clock.SleepUntil(t.clock.Now().Add(t.yield), stop.Done())
		}
	}

	return nil
}

// Step runs one unit and records it.
func (t *LoadTask) Step() {
	n := t.unit.Run()
	t.produced.Add(int64(n))

	p := t.preemptions()
	t.recorder.Throughput(1, p)
}
