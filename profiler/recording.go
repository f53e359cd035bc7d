package profiler

import (
	"github.com/sarchlab/rtflight/datarecording"
)

// Table is the table RecordingReporter fills.
const Table = "profile"

type profileEntry struct {
	Seq                     uint64
	TimeNS                  int64
	RunID                   string
	Final                   bool
	Emergency               string
	Task                    string
	Class                   string
	Iterations              int64
	ExecTimeNS              int64
	DeadlineMisses          int64
	Preemptions             int64
	Throughput              int64
	Rejected                int64
	Policy                  string
	Priority                int
	Unenforced              bool
	Note                    string
	DeadlineModeUnavailable bool
}

// RecordingReporter stores one database row per task per report.
type RecordingReporter struct {
	recorder datarecording.DataRecorder
}

// NewRecordingReporter creates the profile table in recorder.
func NewRecordingReporter(recorder datarecording.DataRecorder) *RecordingReporter {
	recorder.CreateTable(Table, profileEntry{})

	return &RecordingReporter{recorder: recorder}
}

// Report stores the row.
func (r *RecordingReporter) Report(row Row) {
	for _, t := range row.Tasks {
		r.recorder.InsertData(Table, profileEntry{
			Seq:                     row.Seq,
			TimeNS:                  row.Time.UnixNano(),
			RunID:                   row.RunID,
			Final:                   row.Final,
			Emergency:               row.Emergency.String(),
			Task:                    t.Task,
			Class:                   t.Class.String(),
			Iterations:              t.Iterations,
			ExecTimeNS:              int64(t.ExecTime),
			DeadlineMisses:          t.DeadlineMisses,
			Preemptions:             t.Preemptions,
			Throughput:              t.Throughput,
			Rejected:                t.Rejected,
			Policy:                  t.Policy.String(),
			Priority:                t.Priority,
			Unenforced:              t.Unenforced,
			Note:                    t.Note,
			DeadlineModeUnavailable: row.DeadlineModeUnavailable,
		})
	}

	if row.Final {
		r.recorder.Flush()
	}
}
