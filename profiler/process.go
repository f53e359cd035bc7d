package profiler

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// ProcessProbe reads process-wide resource usage.
type ProcessProbe struct {
	proc *process.Process
}

// NewProcessProbe creates a probe of the current process.
func NewProcessProbe() (*ProcessProbe, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &ProcessProbe{proc: proc}, nil
}

// Stats returns the current usage. Fields that cannot be read are left zero
// and the result is marked unavailable.
func (p *ProcessProbe) Stats() ProcessStats {
	var s ProcessStats

	cpu, err := p.proc.CPUPercent()
	if err != nil {
		s.Unavailable = true
	}
	s.CPUPercent = cpu

	mem, err := p.proc.MemoryInfo()
	if err != nil {
		s.Unavailable = true
	} else {
		s.RSS = mem.RSS
	}

	switches, err := p.proc.NumCtxSwitches()
	if err != nil {
		s.Unavailable = true
	} else {
		s.Voluntary = switches.Voluntary
		s.Involuntary = switches.Involuntary
	}

	return s
}
