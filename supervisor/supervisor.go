// Package supervisor wires the flight tasks together and runs them until the
// run is stopped.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/rtflight/command"
	"github.com/sarchlab/rtflight/config"
	"github.com/sarchlab/rtflight/datarecording"
	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/load"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/monitoring"
	"github.com/sarchlab/rtflight/profiler"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/task"
	"github.com/sarchlab/rtflight/timeline"
)

// Supervisor owns everything a run shares: the flight state, the metrics
// store, the stop signal and the shutdown protocol.
type Supervisor struct {
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	runID  string

	applier      sched.Applier
	probe        sched.Probe
	model        flight.Model
	unit         load.Unit
	listener     *command.Listener
	reporters    []profiler.RowReporter
	relaySignals bool

	state    *flight.State
	store    *metrics.Store
	stop     *task.Signal
	shutdown *task.Shutdown

	ran bool

	recorder  datarecording.DataRecorder
	runInfo   *datarecording.RunRecorder
	timeline  timeline.Writer
	csv       *timeline.CSVWriter
	emergency *task.EmergencyTask
	loadTask  *task.LoadTask
}

// RunID returns the identifier of the run.
func (s *Supervisor) RunID() string {
	return s.runID
}

// State returns the flight state of the run.
func (s *Supervisor) State() *flight.State {
	return s.state
}

// Store returns the metrics store of the run.
func (s *Supervisor) Store() *metrics.Store {
	return s.store
}

// Stop returns the stop signal of the run. Raising it ends the run through
// the shutdown protocol.
func (s *Supervisor) Stop() *task.Signal {
	return s.stop
}

// Shutdown returns the shutdown protocol of the run.
func (s *Supervisor) Shutdown() *task.Shutdown {
	return s.shutdown
}

// Run starts every task and blocks until the shutdown protocol has completed
// and all tasks have returned. It fails at once if the command channel cannot
// be opened, and reports any task fault. Run may only be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.ran {
		panic("supervisor already ran")
	}
	s.ran = true

	descs := Descriptors(s.cfg)
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	if s.listener == nil {
		l, err := command.Listen(s.cfg.Command.Listen, s.cfg.Command.QueueDepth)
		if err != nil {
			return err
		}
		s.listener = l
	}

	configurator := sched.NewConfigurator(s.applier, s.cfg.Mode(), descs, s.cfg.Band())

	tasks, err := s.buildTasks(ctx, descs)
	if err != nil {
		_ = s.listener.Close()
		return err
	}

	s.openOutputs()
	s.attachHooks(tasks)

	prof := s.buildProfiler(configurator)

	if s.cfg.Monitor.Enabled {
		s.startMonitor()
	}

	s.relay(ctx)

	go func() {
		err := s.listener.Serve()
		if err != nil {
			s.logger.Printf("command listener stopped: %v", err)
		}
	}()

	runner := task.NewRunner(configurator, s.logger)
	for _, t := range tasks {
		runner.Go(t, s.stop)
	}

	profDone := make(chan struct{})
	go func() {
		defer close(profDone)
		prof.Run(s.stop.Done())
	}()

	<-s.shutdown.Terminated()
	err = runner.Wait()
	<-profDone

	// Every task has returned, so the final row holds the totals.
	s.final(prof)
	s.closeOutputs(configurator)

	if shutdownErr := s.shutdown.Err(); shutdownErr != nil {
		s.logger.Printf("warning: %v", shutdownErr)
	}

	return err
}

func (s *Supervisor) buildTasks(
	ctx context.Context,
	descs []sched.TaskDescriptor,
) ([]task.Task, error) {
	byName := make(map[string]sched.TaskDescriptor)
	for _, d := range descs {
		byName[d.Name] = d
	}

	record := func(name string) *metrics.Recorder {
		return s.store.Register(byName[name])
	}

	// Released last; the emergency task has already cut the actuators, this
	// keeps them cut against a late command.
	s.shutdown.Register("motors", task.ResourceFunc(func() error {
		s.state.Mutate(func(fs *flight.Snapshot) { fs.ZeroActuators() })
		return nil
	}))
	s.shutdown.Register("command listener", s.listener)

	unit, err := s.buildUnit(ctx)
	if err != nil {
		return nil, err
	}

	flightTask := task.NewFlightTask(byName[TaskFlight], s.state, s.model,
		record(TaskFlight), s.probe, nil).
		WithWorkCost(s.cfg.Flight.WorkCost)
	commandTask := task.NewCommandTask(byName[TaskNetwork], s.state,
		s.listener.Queue(), record(TaskNetwork), s.probe, nil)
	s.loadTask = task.NewLoadTask(byName[TaskVision], unit,
		record(TaskVision), s.probe, nil).
		WithYield(s.cfg.Load.Yield)
	s.emergency = task.NewEmergencyTask(byName[TaskEmergency], s.state,
		s.shutdown, record(TaskEmergency), s.probe, nil)

	return []task.Task{s.emergency, flightTask, commandTask, s.loadTask}, nil
}

func (s *Supervisor) attachHooks(tasks []task.Task) {
	for _, t := range tasks {
		if s.timeline != nil {
			timeline.Collect(t, s.timeline)
		}

		if s.cfg.Output.Verbose {
			t.AcceptHook(timeline.NewLogHook(s.logger))
		}
	}
}

func (s *Supervisor) buildUnit(ctx context.Context) (load.Unit, error) {
	unit := s.unit
	if unit == nil {
		switch s.cfg.Load.Unit {
		case "spin":
			unit = &load.SpinUnit{Iterations: s.cfg.Load.SpinIterations}
		default:
			unit = load.NewEncodeUnit(s.cfg.Load.Width, s.cfg.Load.Height,
				s.cfg.Load.Quality, time.Now().UnixNano())
		}
	}

	if s.cfg.Load.CaptureCmd == "" {
		return unit, nil
	}

	capture := load.NewCaptureUnit(unit, load.NewHelper("sh", "-c", s.cfg.Load.CaptureCmd))
	if err := capture.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting capture helper: %w", err)
	}

	s.shutdown.Register("capture helper", capture)

	return capture, nil
}

func (s *Supervisor) buildProfiler(configurator *sched.Configurator) *profiler.Profiler {
	b := profiler.MakeBuilder().
		WithPeriod(s.cfg.Profiler.Period).
		WithRunID(s.runID).
		WithConfigurator(configurator)

	if probe, err := profiler.NewProcessProbe(); err == nil {
		b = b.WithProcessProbe(probe)
	}

	if !s.cfg.Profiler.Quiet {
		b = b.WithReporter(profiler.NewConsoleReporter(s.out))
	}

	if s.recorder != nil {
		b = b.WithReporter(profiler.NewRecordingReporter(s.recorder))
	}

	for _, r := range s.reporters {
		b = b.WithReporter(r)
	}

	return b.Build(s.store, s.state)
}

func (s *Supervisor) openOutputs() {
	out := s.cfg.Output

	recordPath := out.RecordPath
	if recordPath != "" || out.Timeline == "sqlite" {
		if recordPath == "" && out.TimelinePath != "" {
			recordPath = out.TimelinePath
		}

		s.recorder = datarecording.New(recordPath)
		s.runInfo = datarecording.NewRunRecorder(s.recorder)
		s.runInfo.Start(
			datarecording.RunInfo{Property: "Run ID", Value: s.runID},
			datarecording.RunInfo{Property: "Mode", Value: s.cfg.Mode().String()},
			datarecording.RunInfo{Property: "Single Core",
				Value: fmt.Sprint(s.cfg.Scheduling.SingleCore)},
		)
		s.shutdown.OnFinal(func(reason string) {
			s.runInfo.Note("Shutdown Reason", reason)
		})
	}

	switch out.Timeline {
	case "csv":
		s.csv = timeline.NewCSVWriter(out.TimelinePath)
		s.timeline = s.csv
	case "sqlite":
		s.timeline = timeline.NewDBWriter(s.recorder)
	}

	if s.timeline != nil {
		s.timeline.Init()
	}
}

func (s *Supervisor) closeOutputs(configurator *sched.Configurator) {
	if s.timeline != nil {
		s.timeline.Flush()
	}

	if s.csv != nil {
		if err := s.csv.Close(); err != nil {
			s.logger.Printf("warning: closing timeline: %v", err)
		}

		fmt.Fprintf(os.Stderr, "Timeline written to %s\n", s.csv.Path())
	}

	if s.recorder == nil {
		return
	}

	s.runInfo.Note("Deadline Mode Unavailable",
		fmt.Sprint(configurator.DeadlineModeUnavailable()))
	s.runInfo.End()

	if err := s.recorder.Close(); err != nil {
		s.logger.Printf("warning: closing recording: %v", err)
	}
}

func (s *Supervisor) startMonitor() {
	m := monitoring.NewMonitor().WithPortNumber(s.cfg.Monitor.Port)
	m.RegisterRun(s.runID, s.cfg.Mode().String())
	m.RegisterStore(s.store)
	m.RegisterState(s.state)

	if err := m.StartServer(); err != nil {
		s.logger.Printf("warning: monitor not started: %v", err)
		return
	}

	s.shutdown.Register("monitor", m)

	if s.cfg.Monitor.Open {
		if err := m.OpenInBrowser(); err != nil {
			s.logger.Printf("warning: %v", err)
		}
	}
}

// relay converts the ways a run can be stopped from outside into the stop
// signal. It never touches the flight state or any resource; the emergency
// task notices the signal and runs the shutdown protocol.
func (s *Supervisor) relay(ctx context.Context) {
	var sigs chan os.Signal
	if s.relaySignals {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	}

	var deadline *time.Timer
	if s.cfg.Duration > 0 {
		deadline = time.NewTimer(s.cfg.Duration)
	}

	go func() {
		var expired <-chan time.Time
		if deadline != nil {
			expired = deadline.C
			defer deadline.Stop()
		}

		if sigs != nil {
			defer signal.Stop(sigs)
		}

		select {
		case <-sigs:
		case <-ctx.Done():
		case <-expired:
		case <-s.stop.Done():
			return
		}

		s.stop.Raise()
	}()
}

func (s *Supervisor) final(prof *profiler.Profiler) {
	prof.Final()

	e, _ := s.store.Lookup(TaskFlight)
	s.logger.Printf("final: %d flight loops, %d deadline misses, %d load units, %d dropped datagrams",
		e.Iterations, e.DeadlineMisses, s.loadUnits(), s.listener.Dropped())
}

func (s *Supervisor) loadUnits() int64 {
	e, _ := s.store.Lookup(TaskVision)
	return e.Iterations
}

// ErrNoConfig is returned by Build when no configuration was given.
var ErrNoConfig = errors.New("supervisor needs a configuration")

// Builder can build supervisors.
type Builder struct {
	cfg          *config.Config
	logger       *log.Logger
	out          io.Writer
	applier      sched.Applier
	probe        sched.Probe
	model        flight.Model
	unit         load.Unit
	listener     *command.Listener
	reporters    []profiler.RowReporter
	relaySignals bool
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger for warnings and shutdown progress.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithOutput sets where periodic reports are printed.
func (b Builder) WithOutput(w io.Writer) Builder {
	b.out = w
	return b
}

// WithApplier sets how scheduling is applied to threads.
func (b Builder) WithApplier(a sched.Applier) Builder {
	b.applier = a
	return b
}

// WithProbe sets the preemption probe shared by the tasks.
func (b Builder) WithProbe(p sched.Probe) Builder {
	b.probe = p
	return b
}

// WithModel replaces the physics model.
func (b Builder) WithModel(m flight.Model) Builder {
	b.model = m
	return b
}

// WithLoadUnit replaces the configured load unit.
func (b Builder) WithLoadUnit(u load.Unit) Builder {
	b.unit = u
	return b
}

// WithListener uses an already open command listener.
func (b Builder) WithListener(l *command.Listener) Builder {
	b.listener = l
	return b
}

// WithReporter adds a profiler reporter.
func (b Builder) WithReporter(r profiler.RowReporter) Builder {
	b.reporters = append(b.reporters, r)
	return b
}

// WithSignalRelay makes interrupt and termination signals stop the run.
func (b Builder) WithSignalRelay() Builder {
	b.relaySignals = true
	return b
}

// Build creates the supervisor and the shared state of the run.
func (b Builder) Build() (*Supervisor, error) {
	if b.cfg == nil {
		return nil, ErrNoConfig
	}

	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:          b.cfg,
		logger:       b.logger,
		out:          b.out,
		runID:        xid.New().String(),
		applier:      b.applier,
		probe:        b.probe,
		model:        b.model,
		unit:         b.unit,
		listener:     b.listener,
		reporters:    b.reporters,
		relaySignals: b.relaySignals,
		state:        flight.NewState(),
		store:        metrics.NewStore(),
		stop:         task.NewSignal(),
	}

	if s.logger == nil {
		s.logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	}

	if s.out == nil {
		s.out = os.Stdout
	}

	if s.applier == nil {
		s.applier = sched.NewApplier()
	}

	if s.probe == nil {
		s.probe = sched.NewProbe()
	}

	if s.model == nil {
		s.model = flight.RigidBody{
			LiftGain: b.cfg.Flight.LiftGain,
			TiltGain: b.cfg.Flight.TiltGain,
			Gravity:  b.cfg.Flight.Gravity,
			Timestep: b.cfg.Flight.Timestep,
		}
	}

	s.shutdown = task.NewShutdown(s.stop, s.logger)

	return s, nil
}
