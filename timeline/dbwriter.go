package timeline

import (
	"github.com/sarchlab/rtflight/datarecording"
)

// Table is the name of the table that DBWriter fills.
const Table = "timeline"

type eventRow struct {
	TimeNS      int64
	Task        string
	Kind        string
	Preemptions int64
}

// DBWriter stores events in a table of a data recorder.
type DBWriter struct {
	recorder datarecording.DataRecorder
}

// NewDBWriter creates a DBWriter.
func NewDBWriter(recorder datarecording.DataRecorder) *DBWriter {
	return &DBWriter{recorder: recorder}
}

// Init creates the timeline table.
func (w *DBWriter) Init() {
	w.recorder.CreateTable(Table, eventRow{})
}

// Write buffers an event in the recorder.
func (w *DBWriter) Write(e Event) {
	w.recorder.InsertData(Table, eventRow{
		TimeNS:      e.Time.UnixNano(),
		Task:        e.Task,
		Kind:        string(e.Kind),
		Preemptions: e.Preemptions,
	})
}

// Flush flushes the recorder.
func (w *DBWriter) Flush() {
	w.recorder.Flush()
}
