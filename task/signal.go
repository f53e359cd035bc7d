// Package task implements the control tasks of the flight testbed and the
// protocol that stops them.
package task

import (
	"sync"
	"sync/atomic"
)

// Signal is the process-wide stop signal. Raising it is safe from any
// context, including a signal relay, because it takes no lock that a task
// could be holding.
type Signal struct {
	raised atomic.Bool
	once   sync.Once
	done   chan struct{}
}

// NewSignal creates a signal that is not raised.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Raise raises the signal. Only the first call has an effect; it returns
// whether this call raised the signal.
func (s *Signal) Raise() bool {
	if !s.raised.CompareAndSwap(false, true) {
		return false
	}

	s.once.Do(func() { close(s.done) })

	return true
}

// Raised reports whether the signal is raised.
func (s *Signal) Raised() bool {
	return s.raised.Load()
}

// Done returns a channel that is closed when the signal is raised.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
