package profiler

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sarchlab/rtflight/sched"
)

// ConsoleReporter prints rows as a text block.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleReporter creates a reporter that writes to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

// Report prints the row.
func (r *ConsoleReporter) Report(row Row) {
	var b strings.Builder

	title := "REPORT"
	if row.Final {
		title = "FINAL"
	}

	fmt.Fprintf(&b, "--- %s #%d %s run=%s mode=%s emergency=%s ---\n",
		title, row.Seq, row.Time.Format("15:04:05.000"),
		row.RunID, row.Mode, row.Emergency)

	for _, t := range row.Tasks {
		fmt.Fprintf(&b, "%-10s %-9s ", t.Task, t.Class)

		switch t.Class {
		case sched.Periodic:
			fmt.Fprintf(&b, "loops=%-8d exec=%-10s misses=%-6d",
				t.Iterations, t.ExecTime, t.DeadlineMisses)
		case sched.Aperiodic:
			fmt.Fprintf(&b, "total=%-8d tput=%-6d rejected=%-6d",
				t.Iterations, t.Throughput, t.Rejected)
		default:
			fmt.Fprintf(&b, "%-38s", "")
		}

		fmt.Fprintf(&b, " preempt=%-6d %s/%d", t.Preemptions, t.Policy, t.Priority)

		if t.Note != "" {
			fmt.Fprintf(&b, " [%s]", t.Note)
		}

		b.WriteString("\n")
	}

	if !row.Process.Unavailable && row.Process.RSS > 0 {
		fmt.Fprintf(&b, "process cpu=%.1f%% rss=%dKiB ctxsw=%d/%d\n",
			row.Process.CPUPercent, row.Process.RSS/1024,
			row.Process.Voluntary, row.Process.Involuntary)
	}

	if row.Unenforced {
		fmt.Fprintf(&b, "!! PRIORITY UNENFORCED for %s: results do not reflect the %s policy\n",
			strings.Join(row.UnenforcedTasks(), ", "), row.Mode)
	}

	if row.DeadlineModeUnavailable {
		b.WriteString("!! DEADLINE MODE UNAVAILABLE: periodic tasks ran with fixed priorities\n")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = io.WriteString(r.w, b.String())
}
