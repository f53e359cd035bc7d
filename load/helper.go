package load

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Errors returned by Helper.
var (
	// ErrAlreadyRunning is returned when Start is called on a running helper.
	ErrAlreadyRunning = errors.New("helper already running")

	// ErrNotRunning is returned when the helper is expected to run but does
	// not.
	ErrNotRunning = errors.New("helper not running")
)

// Helper supervises an external process, such as a camera capture server,
// that the load unit depends on.
type Helper struct {
	name string
	args []string

	// StopTimeout is how long Stop waits after SIGTERM before killing.
	StopTimeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error
	stops   int
}

// NewHelper creates a helper that runs name with args.
func NewHelper(name string, args ...string) *Helper {
	return &Helper{
		name:        name,
		args:        args,
		StopTimeout: 2 * time.Second,
	}
}

// Start launches the process in its own process group.
func (h *Helper) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd != nil {
		return ErrAlreadyRunning
	}

	cmd := exec.CommandContext(ctx, h.name, h.args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("start helper %s: %w", h.name, err)
	}

	h.cmd = cmd
	h.exited = make(chan struct{})

	go func(exited chan struct{}) {
		err := cmd.Wait()

		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()

		close(exited)
	}(h.exited)

	return nil
}

// Healthy returns nil while the process is running.
func (h *Helper) Healthy() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil {
		return ErrNotRunning
	}

	select {
	case <-h.exited:
		return fmt.Errorf("%w: exited: %v", ErrNotRunning, h.exitErr)
	default:
		return nil
	}
}

// Stop terminates the process. Only the first call after Start has an
// effect.
func (h *Helper) Stop() error {
	h.mu.Lock()
	cmd, exited := h.cmd, h.exited
	h.cmd = nil
	if cmd != nil {
		h.stops++
	}
	h.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-exited:
		return nil
	default:
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)

	select {
	case <-exited:
		return nil
	case <-time.After(h.StopTimeout):
	}

	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err != nil && !errors.Is(err, os.ErrProcessDone) &&
		!errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill helper %s: %w", h.name, err)
	}

	<-exited

	return nil
}

// Stops returns how many times a running helper was stopped.
func (h *Helper) Stops() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stops
}
