// Package metrics keeps per-task scheduling measurements. Each task owns the
// Recorder of its entry and is the only writer; the profiler and the monitor
// read snapshots.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/rtflight/sched"
)

// DefaultSmoothing is the weight of the newest sample in the execution-time
// average.
const DefaultSmoothing = 0.5

// TaskEntry is a copy of the measurements of one task.
type TaskEntry struct {
	Task  string
	Class sched.Class

	Iterations     int64
	ExecTime       time.Duration // exponentially smoothed
	Preemptions    int64         // last observed involuntary switch count
	DeadlineMisses int64

	// Throughput and Rejected count per reporting interval; Collect resets
	// them.
	Throughput int64
	Rejected   int64

	Policy   sched.Policy
	Priority int
	CPU      int

	// Unenforced is set when the task could not get its real-time policy,
	// so its numbers do not reflect the requested scheduling.
	Unenforced bool
	Note       string
}

// Store holds the entries of every task behind one lock. This lock is never
// held together with the flight state lock.
type Store struct {
	mu        sync.Mutex
	smoothing float64
	entries   []*TaskEntry
	index     map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		smoothing: DefaultSmoothing,
		index:     make(map[string]int),
	}
}

// WithSmoothing sets the weight of the newest execution-time sample.
func (s *Store) WithSmoothing(alpha float64) *Store {
	if alpha <= 0 || alpha > 1 {
		panic(fmt.Sprintf("smoothing factor %f is not in (0, 1]", alpha))
	}

	s.smoothing = alpha

	return s
}

// Register creates the entry of a task and returns its recorder. Registering
// the same task twice panics.
func (s *Store) Register(desc sched.TaskDescriptor) *Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[desc.Name]; exists {
		panic("task " + desc.Name + " already registered")
	}

	s.entries = append(s.entries, &TaskEntry{
		Task:  desc.Name,
		Class: desc.Class,
		CPU:   -1,
	})
	s.index[desc.Name] = len(s.entries) - 1

	return &Recorder{store: s, slot: len(s.entries) - 1}
}

// Snapshot copies every entry in registration order.
func (s *Store) Snapshot() []TaskEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyEntries()
}

// Collect copies every entry and resets the per-interval counters.
func (s *Store) Collect() []TaskEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.copyEntries()
	for _, e := range s.entries {
		e.Throughput = 0
		e.Rejected = 0
	}

	return out
}

// Lookup copies the entry of one task.
func (s *Store) Lookup(task string) (TaskEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[task]
	if !ok {
		return TaskEntry{}, false
	}

	return *s.entries[i], true
}

func (s *Store) copyEntries() []TaskEntry {
	out := make([]TaskEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}

	return out
}

func (s *Store) update(slot int, fn func(e *TaskEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.entries[slot])
}
