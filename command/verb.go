// Package command defines the inbound command vocabulary, the state
// transition each command causes, and the datagram transport that carries
// commands to the vehicle.
package command

import (
	"strings"
	"time"

	"github.com/sarchlab/rtflight/flight"
)

// Verb is a command word as it appears on the wire. Verbs are ASCII and case
// sensitive.
type Verb string

// The recognized verbs.
const (
	VerbPanic Verb = "PANIC"
	VerbUp    Verb = "UP"
	VerbDown  Verb = "DOWN"
	VerbFront Verb = "FRONT"
	VerbBack  Verb = "BACK"
	VerbLeft  Verb = "LEFT"
	VerbRight Verb = "RIGHT"
	VerbStop  Verb = "STOP"
)

// Verbs lists the recognized verbs.
var Verbs = []Verb{
	VerbPanic, VerbUp, VerbDown, VerbFront, VerbBack, VerbLeft, VerbRight, VerbStop,
}

// Control deltas and levels.
const (
	ThrottleStep = 10.0
	TiltAngle    = 15.0
)

// Valid reports whether v is one of the recognized verbs.
func (v Verb) Valid() bool {
	switch v {
	case VerbPanic, VerbUp, VerbDown, VerbFront, VerbBack, VerbLeft, VerbRight, VerbStop:
		return true
	default:
		return false
	}
}

// A Command is one parsed inbound message.
type Command struct {
	Verb       Verb
	ReceivedAt time.Time
}

// Parse turns a datagram payload into a command. Trailing line terminators
// and NUL padding are dropped; anything else is kept, so an unrecognized
// payload yields a command whose verb is not Valid.
func Parse(payload []byte, at time.Time) Command {
	text := strings.TrimRight(string(payload), "\r\n\x00")

	return Command{Verb: Verb(text), ReceivedAt: at}
}

// Apply performs the state transition of v on s. Every transition is either a
// clamped relative delta or an absolute level, so duplicated or reordered
// datagrams cannot corrupt the state. PANIC does not touch s; the caller
// latches the emergency instead. Apply reports whether v was recognized.
func Apply(v Verb, s *flight.Snapshot) bool {
	switch v {
	case VerbUp:
		s.Throttle = clampThrottle(s.Throttle + ThrottleStep)
	case VerbDown:
		s.Throttle = clampThrottle(s.Throttle - ThrottleStep)
	case VerbFront:
		s.Pitch = TiltAngle
	case VerbBack:
		s.Pitch = -TiltAngle
	case VerbLeft:
		s.Roll = -TiltAngle
	case VerbRight:
		s.Roll = TiltAngle
	case VerbStop:
		s.Pitch = 0
		s.Roll = 0
	case VerbPanic:
	default:
		return false
	}

	return true
}

func clampThrottle(t float64) float64 {
	if t < flight.MinThrottle {
		return flight.MinThrottle
	}

	if t > flight.MaxThrottle {
		return flight.MaxThrottle
	}

	return t
}
