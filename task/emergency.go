package task

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

// EmergencyState is the progress of the emergency task.
type EmergencyState int32

// Emergency task states. They only move forward.
const (
	Idle EmergencyState = iota
	Waiting
	Triggered
	ShuttingDown
	Terminated
)

func (s EmergencyState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Waiting:
		return "WAITING"
	case Triggered:
		return "TRIGGERED"
	case ShuttingDown:
		return "SHUTTING_DOWN"
	case Terminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("EmergencyState(%d)", int32(s))
	}
}

// Shutdown reasons.
const (
	ReasonEmergency = "emergency latch"
	ReasonStop      = "stop requested"
	ReasonFault     = "task fault"
)

// EmergencyTask sleeps until the emergency latch is set or the run is
// stopped, then runs the shutdown protocol.
type EmergencyTask struct {
	Base

	state    *flight.State
	shutdown *Shutdown

	progress atomic.Int32
	wokeAt   atomic.Int64
}

// NewEmergencyTask creates the failsafe task.
func NewEmergencyTask(
	desc sched.TaskDescriptor,
	state *flight.State,
	shutdown *Shutdown,
	recorder *metrics.Recorder,
	probe sched.Probe,
	clock Clock,
) *EmergencyTask {
	return &EmergencyTask{
		Base:     newBase(desc, recorder, probe, clock),
		state:    state,
		shutdown: shutdown,
	}
}

// State returns the current state of the task.
func (t *EmergencyTask) State() EmergencyState {
	return EmergencyState(t.progress.Load())
}

// WokeAt returns when the task observed the latch, or the zero time.
func (t *EmergencyTask) WokeAt() time.Time {
	ns := t.wokeAt.Load()
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}

// Run waits for the latch or the stop signal and then ends the run. It
// returns once the shutdown protocol has completed, whichever path ran it. If
// the task itself panics, the protocol still runs and ErrTaskFault is
// returned.
func (t *EmergencyTask) Run(stop *Signal) (err error) {
	defer func() {
		if p := recover(); p != nil {
			stop.Raise()
			err = fmt.Errorf("%w: %s: %v", ErrTaskFault, t.Name(), p)

			t.shutdown.Run(ReasonFault)
			<-t.shutdown.Terminated()
			t.progress.Store(int32(Terminated))
		}
	}()

	t.emit(timeline.Waiting, t.preemptions())
	t.progress.Store(int32(Waiting))

	reason := ReasonStop

	if t.state.WaitEmergency(stop.Done()) {
		t.wokeAt.Store(t.clock.Now().UnixNano())
		p := t.preemptions()
		t.recorder.Preemptions(p)
		t.progress.Store(int32(Triggered))
		t.emit(timeline.Triggered, p)

		reason = ReasonEmergency
	}

	stop.Raise()

	t.state.Mutate(func(s *flight.Snapshot) {
		s.ZeroActuators()
		s.Yaw = 0
	})

	if reason == ReasonEmergency {
		t.state.AdvanceStatus(flight.StatusActive)
	}

	t.progress.Store(int32(ShuttingDown))
	t.emit(timeline.Shutdown, t.lastPreemptions)

	t.shutdown.Run(reason)
	<-t.shutdown.Terminated()

	t.progress.Store(int32(Terminated))

	return nil
}
