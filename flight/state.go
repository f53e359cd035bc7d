// Package flight holds the shared flight state of the vehicle and the
// physics model that advances it.
package flight

import (
	"sync"
	"time"
)

// Bounds of the control surfaces.
const (
	MinThrottle = 0.0
	MaxThrottle = 100.0
	MinAltitude = 0.0
)

// Snapshot is a copy of every field guarded by the state lock. Any Snapshot
// handed out by State was produced by exactly one complete critical section.
type Snapshot struct {
	Throttle  float64 // percent, [0, 100]
	Pitch     float64 // degrees
	Roll      float64 // degrees
	Yaw       float64 // degrees
	Altitude  float64 // meters, >= 0
	Velocity  float64 // meters per second, positive is up
	Emergency bool
}

// ZeroActuators cuts throttle and levels the attitude.
func (s *Snapshot) ZeroActuators() {
	s.Throttle = 0
	s.Pitch = 0
	s.Roll = 0
}

func (s *Snapshot) clamp() {
	if s.Throttle < MinThrottle {
		s.Throttle = MinThrottle
	}

	if s.Throttle > MaxThrottle {
		s.Throttle = MaxThrottle
	}

	if s.Altitude < MinAltitude {
		s.Altitude = MinAltitude
		if s.Velocity < 0 {
			s.Velocity = 0
		}
	}
}

// State is the control and physical state shared by the tasks. A single lock
// guards all fields jointly, together with the emergency latch and its wait
// channel.
type State struct {
	mu   sync.Mutex
	cond *sync.Cond

	snap      Snapshot
	status    EmergencyStatus
	latchedAt time.Time
	waiters   int
}

// NewState creates a state at rest on the ground.
func NewState() *State {
	s := &State{}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// Read runs view with a consistent copy of the state while holding the lock.
// view must not block.
func (s *State) Read(view func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view(s.snap)
}

// Snapshot returns a consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	var snap Snapshot

	s.Read(func(v Snapshot) { snap = v })

	return snap
}

// Mutate runs update on the state while holding the lock. Bounds are enforced
// before the lock is released, and the emergency flag cannot be changed
// through Mutate. update must not block.
func (s *State) Mutate(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latched := s.snap.Emergency
	update(&s.snap)
	s.snap.Emergency = latched
	s.snap.clamp()
}

// LatchEmergency sets the emergency flag and wakes the waiters. Only the first
// call has any effect; it returns whether this call performed the latch.
func (s *State) LatchEmergency() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Emergency {
		return false
	}

	s.snap.Emergency = true
	s.latchedAt = time.Now()
	s.advanceStatus(StatusTriggered)
	s.cond.Broadcast()

	return true
}

// Latched reports whether the emergency latch is set.
func (s *State) Latched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snap.Emergency
}

// LatchedAt returns the time at which the latch was set, or the zero time.
func (s *State) LatchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latchedAt
}

// WaitEmergency blocks until the emergency latch is set or done is closed. It
// returns true if the latch is set. The predicate is re-checked after every
// wake, so spurious wakeups are harmless and a latch set before the call is
// never missed.
func (s *State) WaitEmergency(done <-chan struct{}) bool {
	watcherExit := make(chan struct{})
	defer close(watcherExit)

	go func() {
		select {
		case <-done:
			// Taking the lock orders this broadcast after the waiter parks.
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-watcherExit:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.snap.Emergency {
		select {
		case <-done:
			return false
		default:
		}

		s.waiters++
		s.cond.Wait()
		s.waiters--
	}

	return true
}

// Waiters returns how many callers of WaitEmergency are parked on the latch.
func (s *State) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waiters
}

// Status returns the current emergency status.
func (s *State) Status() EmergencyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// AdvanceStatus moves the emergency status forward. Moving backwards is
// ignored.
func (s *State) AdvanceStatus(to EmergencyStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceStatus(to)
}

func (s *State) advanceStatus(to EmergencyStatus) {
	if to > s.status {
		s.status = to
	}
}
