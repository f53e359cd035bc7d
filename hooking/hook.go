// Package hooking lets observers attach to tasks. A task raises a hook at
// each point of interest in its loop; observers such as the timeline writers
// receive a HookCtx describing what happened.
package hooking

// HookPos names a point in a task's loop where hooks fire.
type HookPos struct {
	Name string
}

// HookCtx describes one firing of a hook.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos

	// Item is what the hook is about, for example a timeline event.
	Item any

	// Detail is optional.
	Detail any
}

// Hookable is implemented by everything that raises hooks.
type Hookable interface {
	// AcceptHook attaches a hook. Hooks are attached while a run is wired
	// and cannot be removed.
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
	InvokeHook(ctx HookCtx)
}

// Named is implemented by everything that has a name.
type Named interface {
	Name() string
}

// NamedHookable is a hookable with a name, such as a task.
type NamedHookable interface {
	Named
	Hookable
}

// A Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the hooks of a Hookable. Embed it to implement the
// interface.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{hooks: make([]Hook, 0)}
}

// NumHooks returns how many hooks are attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the attached hooks in the order they were attached.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches a hook. Attaching the same hook value twice panics;
// HookFuncs are not compared.
//
// The list is read without locking once the task runs, so every hook must be
// attached before the task starts.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, ok := hook.(HookFunc); !ok {
		for _, existing := range h.hooks {
			if existing == hook {
				panic("hook attached twice")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls every attached hook in order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
