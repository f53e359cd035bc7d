package flight

import "math"

// Model advances a snapshot by one fixed timestep.
type Model interface {
	Step(s Snapshot) Snapshot
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(s Snapshot) Snapshot

// Step calls f.
func (f ModelFunc) Step(s Snapshot) Snapshot {
	return f(s)
}

// RigidBody is a vertical-only point mass. Lift grows linearly with throttle
// and is derated by the tilt of the vehicle.
type RigidBody struct {
	LiftGain float64 // m/s^2 per percent of throttle
	TiltGain float64 // lift fraction lost per degree of |pitch|+|roll|
	Gravity  float64 // m/s^2
	Timestep float64 // seconds
}

// DefaultRigidBody returns the model tuned for a 100 Hz control loop.
func DefaultRigidBody() RigidBody {
	return RigidBody{
		LiftGain: 0.25,
		TiltGain: 0.005,
		Gravity:  9.81,
		Timestep: 0.01,
	}
}

// Acceleration returns the net vertical acceleration for the snapshot.
func (m RigidBody) Acceleration(s Snapshot) float64 {
	lift := s.Throttle * m.LiftGain

	penalty := (math.Abs(s.Pitch) + math.Abs(s.Roll)) * m.TiltGain
	penalty = math.Min(math.Max(penalty, 0), 1)

	return lift*(1-penalty) - m.Gravity
}

// Step integrates velocity, then altitude, over one timestep. The vehicle
// cannot sink below the ground; touching it stops the vertical motion.
func (m RigidBody) Step(s Snapshot) Snapshot {
	s.Velocity += m.Acceleration(s) * m.Timestep
	s.Altitude += s.Velocity * m.Timestep

	if s.Altitude <= MinAltitude {
		s.Altitude = MinAltitude
		s.Velocity = 0
	}

	return s
}
