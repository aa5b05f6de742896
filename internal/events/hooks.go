package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/shared/errs"
)

// Hook handles events it registered interest in. Handlers run on the
// dispatching goroutine; a non-nil error aborts the dispatch.
type Hook interface {
	// Name identifies the hook in logs and error messages.
	Name() string
	// On handles one event.
	On(ctx context.Context, ev *Event) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc struct {
	HookName string
	Fn       func(ctx context.Context, ev *Event) error
}

// Name implements Hook.
func (h HookFunc) Name() string { return h.HookName }

// On implements Hook.
func (h HookFunc) On(ctx context.Context, ev *Event) error { return h.Fn(ctx, ev) }

// Registration binds a hook to an interest set of event types and an
// optional moniker glob filter (empty matches every target).
type Registration struct {
	Events []Type
	Filter string
	Hook   Hook
}

// Hooks is an append-only registry of hook registrations. There is no
// removal: handlers live as long as their owner, and owners outlive the
// realms that dispatch to them.
type Hooks struct {
	mu     sync.RWMutex
	regs   []Registration
	logger *zap.Logger
}

// NewHooks creates an empty registry. A nil logger disables dispatch
// logging.
func NewHooks(logger *zap.Logger) *Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hooks{logger: logger}
}

// Install appends registrations. Relative order of previously installed
// registrations is preserved; dispatch order is installation order.
func (h *Hooks) Install(regs []Registration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regs = append(h.regs, regs...)
}

// Dispatch delivers the event to every matching hook, sequentially, in
// registration order. The first hook error aborts the remaining hooks and
// is returned wrapped in the events error category.
func (h *Hooks) Dispatch(ctx context.Context, ev *Event) error {
	h.mu.RLock()
	regs := h.regs
	h.mu.RUnlock()

	for _, reg := range regs {
		if !reg.interested(ev) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := reg.Hook.On(ctx, ev); err != nil {
			h.logger.Warn("hook aborted dispatch",
				zap.String("hook", reg.Hook.Name()),
				zap.String("event", string(ev.Type)),
				zap.String("target", ev.Target.String()),
				zap.Error(err))
			return errs.Events(reg.Hook.Name(), string(ev.Type), err)
		}
	}
	return nil
}

func (r Registration) interested(ev *Event) bool {
	for _, t := range r.Events {
		if t != ev.Type {
			continue
		}
		return r.Filter == "" || ev.Target.Match(r.Filter)
	}
	return false
}
