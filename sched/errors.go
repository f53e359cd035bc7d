package sched

import (
	"errors"
	"fmt"
)

// Errors reported by an Applier.
var (
	// ErrInsufficientPrivilege means the process may not use real-time
	// scheduling.
	ErrInsufficientPrivilege = errors.New("insufficient privilege for real-time scheduling")

	// ErrDeadlineUnsupported means the kernel refused deadline-class
	// scheduling for reasons other than privilege.
	ErrDeadlineUnsupported = errors.New("deadline scheduling unsupported")

	// ErrUnsupportedPlatform means the platform has no way to apply the
	// request at all.
	ErrUnsupportedPlatform = errors.New("scheduling control unsupported on this platform")
)

// SetupErrorKind classifies a SetupError.
type SetupErrorKind int

// Setup error kinds.
const (
	InsufficientPrivilege SetupErrorKind = iota
	AffinityFailed
	PolicyRejected
)

func (k SetupErrorKind) String() string {
	switch k {
	case InsufficientPrivilege:
		return "InsufficientPrivilege"
	case AffinityFailed:
		return "AffinityFailed"
	case PolicyRejected:
		return "PolicyRejected"
	default:
		return fmt.Sprintf("SetupErrorKind(%d)", int(k))
	}
}

// SetupError is returned by Configurator.Apply when the requested scheduling
// could not be put in place for a task.
type SetupError struct {
	Kind SetupErrorKind
	Task string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("scheduling setup for task %s failed (%s): %v",
		e.Task, e.Kind, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsInsufficientPrivilege reports whether err is a SetupError caused by a
// lack of privilege.
func IsInsufficientPrivilege(err error) bool {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Kind == InsufficientPrivilege
	}

	return errors.Is(err, ErrInsufficientPrivilege)
}
