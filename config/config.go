// Package config holds the settings of a flight run. Values are layered from
// defaults, a .env file, an optional config file, RTFLIGHT_* environment
// variables and command-line flags, later layers winning.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/rtflight/sched"
)

// Config is the complete configuration of a run.
type Config struct {
	// Duration ends the run after the given time. Zero runs until PANIC or
	// an interrupt.
	Duration time.Duration `mapstructure:"duration"`

	Flight     FlightConfig     `mapstructure:"flight"`
	Command    CommandConfig    `mapstructure:"command"`
	Load       LoadConfig       `mapstructure:"load"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Profiler   ProfilerConfig   `mapstructure:"profiler"`
	Output     OutputConfig     `mapstructure:"output"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
}

// FlightConfig controls the control loop and its physics.
type FlightConfig struct {
	Period           time.Duration `mapstructure:"period"`
	RelativeDeadline time.Duration `mapstructure:"relative_deadline"`
	Budget           time.Duration `mapstructure:"budget"`
	WorkCost         int           `mapstructure:"work_cost"`
	LiftGain         float64       `mapstructure:"lift_gain"`
	TiltGain         float64       `mapstructure:"tilt_gain"`
	Gravity          float64       `mapstructure:"gravity"`
	Timestep         float64       `mapstructure:"timestep"`
}

// CommandConfig controls the inbound command channel.
type CommandConfig struct {
	Listen     string `mapstructure:"listen"`
	QueueDepth int    `mapstructure:"queue_depth"`
	Priority   int    `mapstructure:"priority"`
}

// LoadConfig controls the synthetic load.
type LoadConfig struct {
	// Unit is "encode" or "spin".
	Unit           string        `mapstructure:"unit"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Quality        int           `mapstructure:"quality"`
	SpinIterations int           `mapstructure:"spin_iterations"`
	Yield          time.Duration `mapstructure:"yield"`
	Priority       int           `mapstructure:"priority"`

	// CaptureCmd is an external helper started next to the load, such as a
	// camera capture process. Empty disables it.
	CaptureCmd string `mapstructure:"capture_cmd"`
}

// SchedulingConfig controls the policies applied to the tasks.
type SchedulingConfig struct {
	// Mode is "fixed" or "deadline".
	Mode        string `mapstructure:"mode"`
	SingleCore  bool   `mapstructure:"single_core"`
	MinPriority int    `mapstructure:"min_priority"`
	MaxPriority int    `mapstructure:"max_priority"`
}

// ProfilerConfig controls the periodic report.
type ProfilerConfig struct {
	Period time.Duration `mapstructure:"period"`
	Quiet  bool          `mapstructure:"quiet"`
}

// OutputConfig controls what is written to disk.
type OutputConfig struct {
	// Timeline is "", "csv" or "sqlite".
	Timeline     string `mapstructure:"timeline"`
	TimelinePath string `mapstructure:"timeline_path"`

	// RecordPath enables the SQLite recording of reports when set. With an
	// sqlite timeline and no path, a generated name is used.
	RecordPath string `mapstructure:"record_path"`

	// Verbose prints every timeline event.
	Verbose bool `mapstructure:"verbose"`
}

// MonitorConfig controls the HTTP monitor.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	Open    bool `mapstructure:"open"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Flight: FlightConfig{
			Period:   10 * time.Millisecond,
			WorkCost: 2000,
			LiftGain: 0.25,
			TiltGain: 0.005,
			Gravity:  9.81,
			Timestep: 0.01,
		},
		Command: CommandConfig{
			Listen:     ":8080",
			QueueDepth: 128,
			Priority:   30,
		},
		Load: LoadConfig{
			Unit:           "encode",
			Width:          640,
			Height:         480,
			Quality:        50,
			SpinIterations: 1000000,
			Yield:          100 * time.Microsecond,
			Priority:       10,
		},
		Scheduling: SchedulingConfig{
			Mode:        "fixed",
			MinPriority: sched.DefaultBand().Min,
			MaxPriority: sched.DefaultBand().Max,
		},
		Profiler: ProfilerConfig{
			Period: time.Second,
		},
	}
}

// Mode returns the parsed scheduling mode.
func (c *Config) Mode() sched.Mode {
	m, _ := sched.ParseMode(c.Scheduling.Mode)
	return m
}

// Band returns the priority band.
func (c *Config) Band() sched.Band {
	return sched.Band{Min: c.Scheduling.MinPriority, Max: c.Scheduling.MaxPriority}
}

// CPU returns the CPU control tasks are pinned to, or -1.
func (c *Config) CPU() int {
	if c.Scheduling.SingleCore {
		return 0
	}

	return -1
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Duration < 0 {
		add("duration must not be negative")
	}

	if c.Flight.Period <= 0 {
		add("flight.period must be positive")
	}

	if c.Flight.RelativeDeadline < 0 || c.Flight.RelativeDeadline > c.Flight.Period {
		add("flight.relative_deadline must be within [0, flight.period]")
	}

	if c.Flight.Budget < 0 {
		add("flight.budget must not be negative")
	}

	if c.Flight.WorkCost < 0 {
		add("flight.work_cost must not be negative")
	}

	if c.Flight.Timestep <= 0 {
		add("flight.timestep must be positive")
	}

	if c.Command.Listen == "" {
		add("command.listen must be set")
	}

	if c.Command.QueueDepth <= 0 {
		add("command.queue_depth must be positive")
	}

	switch c.Load.Unit {
	case "encode":
		if c.Load.Width <= 0 || c.Load.Height <= 0 {
			add("load.width and load.height must be positive")
		}

		if c.Load.Quality < 1 || c.Load.Quality > 100 {
			add("load.quality must be within [1, 100]")
		}
	case "spin":
		if c.Load.SpinIterations <= 0 {
			add("load.spin_iterations must be positive")
		}
	default:
		add("load.unit %q is not one of encode, spin", c.Load.Unit)
	}

	if c.Load.Yield < 0 {
		add("load.yield must not be negative")
	}

	if _, err := sched.ParseMode(c.Scheduling.Mode); err != nil {
		add("scheduling.mode: %w", err)
	}

	if c.Scheduling.MinPriority < 1 || c.Scheduling.MaxPriority > 99 ||
		c.Scheduling.MinPriority >= c.Scheduling.MaxPriority {
		add("scheduling priorities must satisfy 1 <= min < max <= 99")
	}

	if c.Profiler.Period <= 0 {
		add("profiler.period must be positive")
	}

	switch c.Output.Timeline {
	case "", "csv", "sqlite":
	default:
		add("output.timeline %q is not one of csv, sqlite", c.Output.Timeline)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		add("monitor.port must be a valid port")
	}

	return errors.Join(errs...)
}
