package profiler

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
)

// DefaultPeriod is the reporting interval.
const DefaultPeriod = time.Second

// Profiler snapshots the metrics store and the emergency status once per
// period. It only reads; the per-interval counters of the store are reset by
// each snapshot.
type Profiler struct {
	store        *metrics.Store
	state        *flight.State
	configurator *sched.Configurator
	process      *ProcessProbe
	reporters    []RowReporter

	period time.Duration
	runID  string

	mu  sync.Mutex
	seq uint64
}

// Builder can build profilers.
type Builder struct {
	period       time.Duration
	runID        string
	configurator *sched.Configurator
	process      *ProcessProbe
	reporters    []RowReporter
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{period: DefaultPeriod}
}

// WithPeriod sets the reporting interval.
func (b Builder) WithPeriod(period time.Duration) Builder {
	b.period = period
	return b
}

// WithRunID sets the identifier printed on every row.
func (b Builder) WithRunID(id string) Builder {
	b.runID = id
	return b
}

// WithConfigurator lets the rows tell which mode was in effect.
func (b Builder) WithConfigurator(c *sched.Configurator) Builder {
	b.configurator = c
	return b
}

// WithProcessProbe adds process-wide statistics to the rows.
func (b Builder) WithProcessProbe(p *ProcessProbe) Builder {
	b.process = p
	return b
}

// WithReporter adds a reporter.
func (b Builder) WithReporter(r RowReporter) Builder {
	b.reporters = append(b.reporters, r)
	return b
}

// Build creates a profiler that reads store and state.
func (b Builder) Build(store *metrics.Store, state *flight.State) *Profiler {
	if b.period <= 0 {
		panic("profiler period must be positive")
	}

	runID := b.runID
	if runID == "" {
		runID = xid.New().String()
	}

	return &Profiler{
		store:        store,
		state:        state,
		configurator: b.configurator,
		process:      b.process,
		reporters:    b.reporters,
		period:       b.period,
		runID:        runID,
	}
}

// RunID returns the identifier of the run.
func (p *Profiler) RunID() string {
	return p.runID
}

// Run emits a row every period until done is closed.
func (p *Profiler) Run(done <-chan struct{}) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick emits the row of the interval that just ended.
func (p *Profiler) Tick() Row {
	return p.emit(p.store.Collect(), false)
}

// Final emits the totals of the run without resetting anything.
func (p *Profiler) Final() Row {
	return p.emit(p.store.Snapshot(), true)
}

func (p *Profiler) emit(entries []metrics.TaskEntry, final bool) Row {
	status := p.state.Status()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	row := Row{
		Seq:       p.seq,
		Time:      time.Now(),
		RunID:     p.runID,
		Final:     final,
		Emergency: status,
	}

	for _, e := range entries {
		t := taskRow(e)
		row.Tasks = append(row.Tasks, t)
		row.Unenforced = row.Unenforced || t.Unenforced
	}

	if p.configurator != nil {
		row.Mode = p.configurator.Mode()
		row.DeadlineModeUnavailable = p.configurator.DeadlineModeUnavailable()
	}

	if p.process != nil {
		row.Process = p.process.Stats()
	}

	for _, r := range p.reporters {
		r.Report(row)
	}

	return row
}
