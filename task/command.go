package task

import (
	"github.com/sarchlab/rtflight/command"
	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

// CommandTask applies inbound commands to the flight state.
type CommandTask struct {
	Base

	state *flight.State
	queue <-chan command.Command
}

// NewCommandTask creates a task that drains queue.
func NewCommandTask(
	desc sched.TaskDescriptor,
	state *flight.State,
	queue <-chan command.Command,
	recorder *metrics.Recorder,
	probe sched.Probe,
	clock Clock,
) *CommandTask {
	return &CommandTask{
		Base:  newBase(desc, recorder, probe, clock),
		state: state,
		queue: queue,
	}
}

// Run handles commands until stop is raised or the queue is closed.
func (t *CommandTask) Run(stop *Signal) (err error) {
	defer t.recoverFault(stop, &err)

	t.emit(timeline.Start, t.preemptions())
	defer func() { t.emit(timeline.End, t.lastPreemptions) }()

	for {
		select {
		case <-stop.Done():
			return nil
		case cmd, ok := <-t.queue:
			if !ok {
				return nil
			}

			if stop.Raised() {
				return nil
			}

			t.Handle(cmd)
		}
	}
}

// Handle applies a single command. The state lock is only held for the state
// transition itself. Unrecognized verbs are counted and dropped.
func (t *CommandTask) Handle(cmd command.Command) {
	p := t.preemptions()
	t.recorder.Throughput(1, p)
	t.emit(timeline.PacketRx, p)

	switch {
	case !cmd.Verb.Valid():
		t.recorder.Rejected()
	case cmd.Verb == command.VerbPanic:
		if t.state.LatchEmergency() {
			t.emit(timeline.Emergency, p)
		}
	default:
		t.state.Mutate(func(s *flight.Snapshot) {
			command.Apply(cmd.Verb, s)
		})
	}
}
