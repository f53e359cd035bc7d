package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunInfo is one property of a run.
type RunInfo struct {
	Property string
	Value    string
}

// RunInfoTable is the table that holds run properties.
const RunInfoTable = "run_info"

// RunRecorder records how a run was started and when it ended.
type RunRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

// NewRunRecorder creates the run info table in recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	return &RunRecorder{recorder: recorder}
}

// Start notes the start time and the command line, plus any extra
// properties.
func (e *RunRecorder) Start(extra ...RunInfo) {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.entries = append(e.entries, RunInfo{"Start Time", startTime})
	e.entries = append(e.entries, RunInfo{"Command", strings.Join(os.Args, " ")})

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, RunInfo{"Working Directory", cwd})
	}

	e.entries = append(e.entries, extra...)
}

// Note adds a property discovered while running.
func (e *RunRecorder) Note(property, value string) {
	e.entries = append(e.entries, RunInfo{property, value})
}

// End writes the properties along with the end time.
func (e *RunRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(RunInfoTable, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.recorder.InsertData(RunInfoTable, RunInfo{"End Time", endTime})

	e.entries = nil

	e.recorder.Flush()
}
