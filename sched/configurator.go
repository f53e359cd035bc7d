package sched

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode selects how periodic tasks are scheduled.
type Mode int

// Scheduling modes.
const (
	// FixedPriority gives every task a rate-monotonic FIFO priority.
	FixedPriority Mode = iota

	// DeadlineAware puts periodic tasks in the deadline class, so the kernel
	// dispatches the job with the nearest absolute deadline first. Other
	// tasks keep their fixed priorities.
	DeadlineAware
)

func (m Mode) String() string {
	switch m {
	case FixedPriority:
		return "fixed"
	case DeadlineAware:
		return "deadline"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses the name of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "fixed", "rm", "fifo":
		return FixedPriority, nil
	case "deadline", "edf":
		return DeadlineAware, nil
	default:
		return FixedPriority, fmt.Errorf("unknown scheduling mode %q", s)
	}
}

// Policy is the policy actually in effect for a task.
type Policy int

// Policies.
const (
	PolicyDefault Policy = iota
	PolicyFIFO
	PolicyDeadline
)

func (p Policy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyFIFO:
		return "fifo"
	case PolicyDeadline:
		return "deadline"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Applied describes the scheduling that was put in place for a task.
type Applied struct {
	Task     string
	Policy   Policy
	Priority int

	// CPU is the CPU the task is pinned to, or -1.
	CPU int

	// DeadlineModeUnavailable is set when deadline-aware mode was requested
	// but the run had to fall back to fixed priorities.
	DeadlineModeUnavailable bool
}

// Enforced reports whether a real-time policy is in effect.
func (a Applied) Enforced() bool {
	return a.Policy != PolicyDefault
}

// A Configurator decides the scheduling of each task and applies it to the
// thread the task runs on.
type Configurator struct {
	applier Applier
	mode    Mode
	plan    map[string]int

	deadlineUnavailable atomic.Bool
}

// NewConfigurator plans priorities for descs and returns a configurator that
// applies them through applier.
func NewConfigurator(
	applier Applier,
	mode Mode,
	descs []TaskDescriptor,
	band Band,
) *Configurator {
	return &Configurator{
		applier: applier,
		mode:    mode,
		plan:    Plan(descs, band),
	}
}

// Mode returns the requested mode.
func (c *Configurator) Mode() Mode {
	return c.mode
}

// Priority returns the planned priority of a task.
func (c *Configurator) Priority(task string) (int, bool) {
	p, ok := c.plan[task]
	return p, ok
}

// DeadlineModeUnavailable reports whether deadline-aware mode was requested
// but could not be used.
func (c *Configurator) DeadlineModeUnavailable() bool {
	return c.mode == DeadlineAware && c.deadlineUnavailable.Load()
}

// Apply puts the planned scheduling of desc in place on ec. When the process
// lacks privilege, the returned error satisfies IsInsufficientPrivilege and
// the thread keeps the default policy; the caller must flag the task's
// measurements as unenforced.
func (c *Configurator) Apply(desc TaskDescriptor, ec ExecContext) (Applied, error) {
	applied := Applied{Task: desc.Name, Policy: PolicyDefault, CPU: -1}

	priority, ok := c.plan[desc.Name]
	if !ok {
		return applied, &SetupError{
			Kind: PolicyRejected,
			Task: desc.Name,
			Err:  errors.New("task is not part of the plan"),
		}
	}

	pinErr := c.pin(desc, ec, &applied)

	if c.mode == DeadlineAware && desc.Class == Periodic {
		err := c.applyDeadline(desc, ec, &applied)
		if err != nil {
			return applied, err
		}
	}

	if applied.Policy == PolicyDefault {
		err := c.applier.SetFixedPriority(ec.TID, priority)
		if err != nil {
			return applied, c.setupError(desc, err)
		}

		applied.Policy = PolicyFIFO
		applied.Priority = priority
	}

	applied.DeadlineModeUnavailable = c.DeadlineModeUnavailable()

	return applied, pinErr
}

func (c *Configurator) pin(
	desc TaskDescriptor,
	ec ExecContext,
	applied *Applied,
) error {
	if desc.CPU < 0 {
		return nil
	}

	err := c.applier.Pin(ec.TID, desc.CPU)
	if err != nil {
		return &SetupError{Kind: AffinityFailed, Task: desc.Name, Err: err}
	}

	applied.CPU = desc.CPU

	return nil
}

func (c *Configurator) applyDeadline(
	desc TaskDescriptor,
	ec ExecContext,
	applied *Applied,
) error {
	if c.deadlineUnavailable.Load() {
		return nil
	}

	budget := desc.Budget
	if budget <= 0 {
		budget = desc.Deadline() / 2
	}

	err := c.applier.SetDeadline(ec.TID, budget, desc.Deadline(), desc.Period)
	switch {
	case err == nil:
		applied.Policy = PolicyDeadline
		return nil
	case errors.Is(err, ErrInsufficientPrivilege):
		return c.setupError(desc, err)
	default:
		c.deadlineUnavailable.Store(true)
		return nil
	}
}

func (c *Configurator) setupError(desc TaskDescriptor, err error) error {
	kind := PolicyRejected
	if errors.Is(err, ErrInsufficientPrivilege) {
		kind = InsufficientPrivilege
	}

	return &SetupError{Kind: kind, Task: desc.Name, Err: err}
}
