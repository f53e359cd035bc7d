// Package profiler periodically reports the task metrics and the emergency
// status of a run.
package profiler

import (
	"time"

	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
)

// TaskRow is the report of one task for one interval.
type TaskRow struct {
	Task  string
	Class sched.Class

	Iterations     int64
	ExecTime       time.Duration
	DeadlineMisses int64
	Preemptions    int64
	Throughput     int64
	Rejected       int64

	Policy     sched.Policy
	Priority   int
	Unenforced bool
	Note       string
}

func taskRow(e metrics.TaskEntry) TaskRow {
	return TaskRow{
		Task:           e.Task,
		Class:          e.Class,
		Iterations:     e.Iterations,
		ExecTime:       e.ExecTime,
		DeadlineMisses: e.DeadlineMisses,
		Preemptions:    e.Preemptions,
		Throughput:     e.Throughput,
		Rejected:       e.Rejected,
		Policy:         e.Policy,
		Priority:       e.Priority,
		Unenforced:     e.Unenforced,
		Note:           e.Note,
	}
}

// ProcessStats describes the whole process.
type ProcessStats struct {
	CPUPercent  float64
	RSS         uint64
	Voluntary   int64
	Involuntary int64
	Unavailable bool
}

// Row is one report. Rows are emitted in Seq order.
type Row struct {
	Seq   uint64
	Time  time.Time
	RunID string
	Mode  sched.Mode
	Final bool

	Tasks     []TaskRow
	Emergency flight.EmergencyStatus
	Process   ProcessStats

	// Unenforced is set when any task ran without its real-time policy.
	Unenforced              bool
	DeadlineModeUnavailable bool
}

// UnenforcedTasks returns the names of the tasks that ran without their
// real-time policy.
func (r Row) UnenforcedTasks() []string {
	var names []string

	for _, t := range r.Tasks {
		if t.Unenforced {
			names = append(names, t.Task)
		}
	}

	return names
}

// A RowReporter emits rows.
type RowReporter interface {
	Report(row Row)
}
