package timeline

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVWriter stores events in a CSV file with one row per event. Timestamps
// are milliseconds since the writer was initialized.
type CSVWriter struct {
	path string
	file *os.File

	mu         sync.Mutex
	base       time.Time
	events     []Event
	bufferSize int
	closed     bool
}

// NewCSVWriter creates a new CSVWriter that writes to path + ".csv".
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Path returns the name of the CSV file.
func (t *CSVWriter) Path() string {
	return t.path + ".csv"
}

// Init creates the CSV file. It panics if the file already exists.
func (t *CSVWriter) Init() {
	if t.path == "" {
		t.path = "rtflight_timeline_" + xid.New().String()
	}

	filename := t.Path()
	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	t.file = file
	t.base = time.Now()

	fmt.Fprintf(file, "timestamp_ms,thread,event,preempt_count\n")

	atexit.Register(func() {
		err := t.Close()
		if err != nil {
			panic(err)
		}
	})
}

// Write buffers an event.
func (t *CSVWriter) Write(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.events = append(t.events, e)
	if len(t.events) >= t.bufferSize {
		t.flush()
	}
}

// Flush writes the buffered events to the file.
func (t *CSVWriter) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flush()
}

// Close flushes and closes the file.
func (t *CSVWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.flush()
	t.closed = true

	return t.file.Close()
}

func (t *CSVWriter) flush() {
	if t.closed {
		return
	}

	for _, e := range t.events {
		fmt.Fprintf(t.file, "%d,%s,%s,%d\n",
			e.Time.Sub(t.base).Milliseconds(),
			e.Task,
			e.Kind,
			e.Preemptions,
		)
	}

	t.events = nil
}
