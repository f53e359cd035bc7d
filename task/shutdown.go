package task

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// A Resource is something external that must be released when the run ends.
type Resource interface {
	Close() error
}

// ResourceFunc adapts a function to the Resource interface.
type ResourceFunc func() error

// Close calls f.
func (f ResourceFunc) Close() error {
	return f()
}

type namedResource struct {
	name string
	r    Resource
}

// Shutdown is the one-shot protocol that ends a run. Every path that stops
// the run converges on Run; only the first call does anything.
type Shutdown struct {
	stop   *Signal
	logger *log.Logger

	mu        sync.Mutex
	resources []namedResource
	finals    []func(reason string)

	started    atomic.Bool
	reason     string
	err        error
	terminated chan struct{}
}

// NewShutdown creates the protocol for the run controlled by stop.
func NewShutdown(stop *Signal, logger *log.Logger) *Shutdown {
	return &Shutdown{
		stop:       stop,
		logger:     logger,
		terminated: make(chan struct{}),
	}
}

// Register adds a resource. Resources are released in the reverse order of
// registration.
func (s *Shutdown) Register(name string, r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources = append(s.resources, namedResource{name: name, r: r})
}

// OnFinal adds a function that runs with the shutdown reason after the
// resources are released.
func (s *Shutdown) OnFinal(f func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finals = append(s.finals, f)
}

// Run stops every task loop, releases the resources, emits the final results
// and terminates the run. It returns false, doing nothing, if the protocol
// already ran or is running. It must not be called while holding the flight
// state lock.
func (s *Shutdown) Run(reason string) bool {
	if !s.started.CompareAndSwap(false, true) {
		return false
	}

	s.stop.Raise()
	s.logf("shutdown: %s", reason)

	s.mu.Lock()
	resources := s.resources
	finals := s.finals
	s.mu.Unlock()

	var errs []error

	for i := len(resources) - 1; i >= 0; i-- {
		res := resources[i]

		err := release(res.r)
		if err != nil {
			errs = append(errs, fmt.Errorf("releasing %s: %w", res.name, err))
			s.logf("releasing %s failed: %v", res.name, err)

			continue
		}

		s.logf("%s stopped", res.name)
	}

	for _, f := range finals {
		if err := runFinal(f, reason); err != nil {
			errs = append(errs, err)
		}
	}

	s.reason = reason
	s.err = errors.Join(errs...)
	close(s.terminated)

	return true
}

// Terminated returns a channel that is closed once the protocol has
// completed.
func (s *Shutdown) Terminated() <-chan struct{} {
	return s.terminated
}

// Reason returns why the run ended. It is valid after Terminated is closed.
func (s *Shutdown) Reason() string {
	<-s.terminated
	return s.reason
}

// Err returns the errors met while releasing resources. It is valid after
// Terminated is closed.
func (s *Shutdown) Err() error {
	<-s.terminated
	return s.err
}

func (s *Shutdown) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}

	s.logger.Printf(format, args...)
}

// release closes r. A panic is returned as an error so that the protocol
// always terminates.
func release(r Resource) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return r.Close()
}

func runFinal(f func(string), reason string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("final: panic: %v", p)
		}
	}()

	f(reason)

	return nil
}
