package metrics

import (
	"time"

	"github.com/sarchlab/rtflight/sched"
)

// A Recorder writes the entry of a single task. It must only be used by the
// task that registered it.
type Recorder struct {
	store *Store
	slot  int
}

// Iteration records one completed iteration that took exec, together with
// the preemption count observed after it.
func (r *Recorder) Iteration(exec time.Duration, preemptions int64) {
	alpha := r.store.smoothing

	r.store.update(r.slot, func(e *TaskEntry) {
		if e.Iterations == 0 {
			e.ExecTime = exec
		} else {
			e.ExecTime = time.Duration(
				alpha*float64(exec) + (1-alpha)*float64(e.ExecTime))
		}

		e.Iterations++
		e.Preemptions = preemptions
	})
}

// DeadlineMiss records one iteration that started after its deadline.
func (r *Recorder) DeadlineMiss() {
	r.store.update(r.slot, func(e *TaskEntry) {
		e.DeadlineMisses++
	})
}

// Throughput adds n completed units of work to the current interval.
func (r *Recorder) Throughput(n int64, preemptions int64) {
	r.store.update(r.slot, func(e *TaskEntry) {
		e.Iterations += n
		e.Throughput += n
		e.Preemptions = preemptions
	})
}

// Rejected counts one discarded input.
func (r *Recorder) Rejected() {
	r.store.update(r.slot, func(e *TaskEntry) {
		e.Rejected++
	})
}

// Preemptions records the latest preemption count.
func (r *Recorder) Preemptions(n int64) {
	r.store.update(r.slot, func(e *TaskEntry) {
		e.Preemptions = n
	})
}

// Applied records the scheduling the task ended up with. A task without a
// real-time policy is marked unenforced.
func (r *Recorder) Applied(applied sched.Applied, note string) {
	r.store.update(r.slot, func(e *TaskEntry) {
		e.Policy = applied.Policy
		e.Priority = applied.Priority
		e.CPU = applied.CPU
		e.Unenforced = !applied.Enforced()
		e.Note = note
	})
}
