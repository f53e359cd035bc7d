package task

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sarchlab/rtflight/sched"
)

// Report notes attached to measurements.
const (
	NotePriorityUnenforced  = "priority unenforced"
	NoteDeadlineUnavailable = "deadline-mode unavailable"
	NoteAffinityFailed      = "affinity failed"
	NotePolicyRejected      = "policy rejected"
)

// A Runner starts each task on its own locked operating-system thread and
// applies the task's scheduling there first.
type Runner struct {
	configurator *sched.Configurator
	logger       *log.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewRunner creates a runner. A nil configurator leaves every task on the
// default policy.
func NewRunner(configurator *sched.Configurator, logger *log.Logger) *Runner {
	return &Runner{
		configurator: configurator,
		logger:       logger,
	}
}

// Go starts t. A task that fails or panics raises stop, so the run ends
// through the shutdown protocol.
func (r *Runner) Go(t Task, stop *Signal) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.fail(stop, fmt.Errorf("%w: %s: %v", ErrTaskFault, t.Name(), p))
			}
		}()

		ec := sched.LockContext()
		r.apply(t, ec)

		err := t.Run(stop)
		if err != nil {
			r.fail(stop, err)
		}
	}()
}

func (r *Runner) fail(stop *Signal, err error) {
	stop.Raise()

	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// Wait blocks until every task has returned and reports their errors.
func (r *Runner) Wait() error {
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	return errors.Join(r.errs...)
}

func (r *Runner) apply(t Task, ec sched.ExecContext) {
	if r.configurator == nil {
		return
	}

	applied, err := r.configurator.Apply(t.Descriptor(), ec)
	note := Note(applied, err)
	t.Recorder().Applied(applied, note)

	if err != nil && r.logger != nil {
		r.logger.Printf("warning: %v; task %s runs with %s policy (%s)",
			err, t.Name(), applied.Policy, note)
	}
}

// Note describes how the scheduling of a task differs from what was asked.
func Note(applied sched.Applied, err error) string {
	var notes []string

	var setupErr *sched.SetupError
	if errors.As(err, &setupErr) {
		switch setupErr.Kind {
		case sched.InsufficientPrivilege:
			notes = append(notes, NotePriorityUnenforced)
		case sched.AffinityFailed:
			notes = append(notes, NoteAffinityFailed)
		default:
			notes = append(notes, NotePolicyRejected)
		}
	}

	if !applied.Enforced() && len(notes) == 0 {
		notes = append(notes, NotePriorityUnenforced)
	}

	if applied.DeadlineModeUnavailable {
		notes = append(notes, NoteDeadlineUnavailable)
	}

	return strings.Join(notes, ", ")
}
