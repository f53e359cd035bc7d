package timeline

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/rtflight/hooking"
)

// Collect lets the writer receive the timeline events of a task.
func Collect(task hooking.NamedHookable, w Writer) {
	for _, h := range task.Hooks() {
		h, ok := h.(*writerHook)
		if ok && h.w == w {
			panic(fmt.Sprintf(
				"task %s already has writer %s",
				task.Name(), reflect.TypeOf(w)))
		}
	}

	task.AcceptHook(&writerHook{w: w})
}

type writerHook struct {
	w Writer
}

func (h *writerHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosEvent {
		return
	}

	e, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.w.Write(e)
}

// LogHook prints every timeline event.
type LogHook struct {
	*log.Logger
}

// NewLogHook returns a LogHook that writes into the logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func writes the event into the logger.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosEvent {
		return
	}

	e, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.Printf("%s, %s, %s, %d",
		e.Time.Format("15:04:05.000000"), e.Task, e.Kind, e.Preemptions)
}
