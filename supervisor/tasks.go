package supervisor

import (
	"github.com/sarchlab/rtflight/config"
	"github.com/sarchlab/rtflight/sched"
)

// Task names.
const (
	TaskFlight    = "Flight"
	TaskNetwork   = "Network"
	TaskVision    = "Vision"
	TaskEmergency = "Emergency"
)

// Descriptors returns the timing configuration of the four control tasks.
func Descriptors(cfg *config.Config) []sched.TaskDescriptor {
	cpu := cfg.CPU()

	return []sched.TaskDescriptor{
		{
			Name:             TaskFlight,
			Class:            sched.Periodic,
			Period:           cfg.Flight.Period,
			Budget:           cfg.Flight.Budget,
			RelativeDeadline: cfg.Flight.RelativeDeadline,
			CPU:              cpu,
		},
		{
			Name:     TaskNetwork,
			Class:    sched.Aperiodic,
			Priority: cfg.Command.Priority,
			CPU:      cpu,
		},
		{
			Name:     TaskVision,
			Class:    sched.Aperiodic,
			Priority: cfg.Load.Priority,
			CPU:      cpu,
		},
		{
			Name:  TaskEmergency,
			Class: sched.Sporadic,
			CPU:   cpu,
		},
	}
}
