// Package timeline records what every task does and when, so that a run can
// be replayed on a time axis after it ends.
package timeline

import (
	"time"

	"github.com/sarchlab/rtflight/hooking"
)

// Kind is the type of a timeline event.
type Kind string

// Event kinds.
const (
	Start        Kind = "START"
	End          Kind = "END"
	Preempted    Kind = "PREEMPTED"
	DeadlineMiss Kind = "DEADLINE_MISS"
	PacketRx     Kind = "PACKET_RX"
	Emergency    Kind = "EMERGENCY"
	Waiting      Kind = "WAITING"
	Triggered    Kind = "TRIGGERED"
	Shutdown     Kind = "SHUTDOWN"
)

// HookPosEvent is the position tasks use when they raise a timeline event.
// The hook item is an Event.
var HookPosEvent = &hooking.HookPos{Name: "TimelineEvent"}

// Event is something a task did at a point in time.
type Event struct {
	Time        time.Time
	Task        string
	Kind        Kind
	Preemptions int64
}

// A Writer persists events.
type Writer interface {
	// Init prepares the storage. It is called before the first Write.
	Init()

	// Write buffers an event.
	Write(e Event)

	// Flush moves buffered events to storage.
	Flush()
}
