package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "RTFLIGHT"

// LoadDotEnv reads the given .env files into the environment. Missing files
// are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// NewViper creates a viper instance with every default set and the
// environment bound.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// SetDefaults registers the values of Defaults in v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("duration", d.Duration)

	v.SetDefault("flight.period", d.Flight.Period)
	v.SetDefault("flight.relative_deadline", d.Flight.RelativeDeadline)
	v.SetDefault("flight.budget", d.Flight.Budget)
	v.SetDefault("flight.work_cost", d.Flight.WorkCost)
	v.SetDefault("flight.lift_gain", d.Flight.LiftGain)
	v.SetDefault("flight.tilt_gain", d.Flight.TiltGain)
	v.SetDefault("flight.gravity", d.Flight.Gravity)
	v.SetDefault("flight.timestep", d.Flight.Timestep)

	v.SetDefault("command.listen", d.Command.Listen)
	v.SetDefault("command.queue_depth", d.Command.QueueDepth)
	v.SetDefault("command.priority", d.Command.Priority)

	v.SetDefault("load.unit", d.Load.Unit)
	v.SetDefault("load.width", d.Load.Width)
	v.SetDefault("load.height", d.Load.Height)
	v.SetDefault("load.quality", d.Load.Quality)
	v.SetDefault("load.spin_iterations", d.Load.SpinIterations)
	v.SetDefault("load.yield", d.Load.Yield)
	v.SetDefault("load.priority", d.Load.Priority)
	v.SetDefault("load.capture_cmd", d.Load.CaptureCmd)

	v.SetDefault("scheduling.mode", d.Scheduling.Mode)
	v.SetDefault("scheduling.single_core", d.Scheduling.SingleCore)
	v.SetDefault("scheduling.min_priority", d.Scheduling.MinPriority)
	v.SetDefault("scheduling.max_priority", d.Scheduling.MaxPriority)

	v.SetDefault("profiler.period", d.Profiler.Period)
	v.SetDefault("profiler.quiet", d.Profiler.Quiet)

	v.SetDefault("output.timeline", d.Output.Timeline)
	v.SetDefault("output.timeline_path", d.Output.TimelinePath)
	v.SetDefault("output.record_path", d.Output.RecordPath)
	v.SetDefault("output.verbose", d.Output.Verbose)

	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.port", d.Monitor.Port)
	v.SetDefault("monitor.open", d.Monitor.Open)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"duration":      "duration",
	"period":        "flight.period",
	"deadline":      "flight.relative_deadline",
	"budget":        "flight.budget",
	"work-cost":     "flight.work_cost",
	"listen":        "command.listen",
	"queue-depth":   "command.queue_depth",
	"load-unit":     "load.unit",
	"load-yield":    "load.yield",
	"capture-cmd":   "load.capture_cmd",
	"mode":          "scheduling.mode",
	"single-core":   "scheduling.single_core",
	"report-period": "profiler.period",
	"quiet":         "profiler.quiet",
	"timeline":      "output.timeline",
	"timeline-path": "output.timeline_path",
	"record":        "output.record_path",
	"verbose":       "output.verbose",
	"monitor":       "monitor.enabled",
	"monitor-port":  "monitor.port",
	"open-monitor":  "monitor.open",
}

// RegisterFlags defines the command-line flags of a run.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()

	fs.Duration("duration", d.Duration, "stop the run after this long (0 runs until stopped)")
	fs.Duration("period", d.Flight.Period, "period of the flight control loop")
	fs.Duration("deadline", d.Flight.RelativeDeadline, "relative deadline of the control loop (0 uses the period)")
	fs.Duration("budget", d.Flight.Budget, "runtime budget in deadline mode (0 uses half the deadline)")
	fs.Int("work-cost", d.Flight.WorkCost, "synthetic iterations per control loop")
	fs.String("listen", d.Command.Listen, "UDP address for commands")
	fs.Int("queue-depth", d.Command.QueueDepth, "commands buffered before dropping")
	fs.String("load-unit", d.Load.Unit, "synthetic load: encode or spin")
	fs.Duration("load-yield", d.Load.Yield, "pause between load units")
	fs.String("capture-cmd", d.Load.CaptureCmd, "external capture helper to supervise")
	fs.String("mode", d.Scheduling.Mode, "scheduling mode: fixed or deadline")
	fs.Bool("single-core", d.Scheduling.SingleCore, "pin every control task to CPU 0")
	fs.Duration("report-period", d.Profiler.Period, "interval between reports")
	fs.Bool("quiet", d.Profiler.Quiet, "do not print periodic reports")
	fs.String("timeline", d.Output.Timeline, "timeline output: csv or sqlite")
	fs.String("timeline-path", d.Output.TimelinePath, "timeline file name without extension")
	fs.String("record", d.Output.RecordPath, "SQLite file name for reports, without extension")
	fs.Bool("verbose", d.Output.Verbose, "print every timeline event")
	fs.Bool("monitor", d.Monitor.Enabled, "serve the HTTP monitor")
	fs.Int("monitor-port", d.Monitor.Port, "port of the HTTP monitor (0 picks one)")
	fs.Bool("open-monitor", d.Monitor.Open, "open the monitor in a browser")
}

// BindFlags makes the flags in fs override the other layers in v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

// Load reads the configuration from v, merging file when it is not empty,
// and validates it.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
