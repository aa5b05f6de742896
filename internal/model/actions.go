package model

import (
	"context"
	"time"
)

// ActionKind discriminates the closed set of lifecycle actions.
type ActionKind string

const (
	ActionResolve  ActionKind = "resolve"
	ActionStart    ActionKind = "start"
	ActionStop     ActionKind = "stop"
	ActionShutdown ActionKind = "shutdown"
	ActionDestroy  ActionKind = "destroy"
)

// actionKey identifies one action slot in a realm's registry. child is
// set only for destroy, which is keyed per target child.
type actionKey struct {
	kind  ActionKind
	child string
}

// completion is a one-shot broadcast: err is written exactly once, before
// done is closed, and read only after done is observed closed.
type completion struct {
	done chan struct{}
	err  error
}

// runAction coordinates action execution per realm. If an equal action is
// already registered the caller awaits the in-flight completion and
// shares its result; otherwise the caller registers a pending completion,
// runs body, broadcasts the result to every awaiter, and removes the
// entry. The registry therefore holds at most one in-flight completion
// per key, and same-key actions are totally ordered by registration.
func (r *Realm) runAction(ctx context.Context, key actionKey, body func(context.Context) error) error {
	r.actionsMu.Lock()
	if c, ok := r.actions[key]; ok {
		r.actionsMu.Unlock()
		// Cancellation is cooperative: abandoning the wait does not
		// cancel the in-flight action.
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &completion{done: make(chan struct{})}
	r.actions[key] = c
	r.actionsMu.Unlock()

	start := time.Now()
	err := body(ctx)
	if r.model.metrics != nil {
		r.model.metrics.RecordAction(string(key.kind), err, time.Since(start))
	}

	c.err = err
	close(c.done)

	r.actionsMu.Lock()
	delete(r.actions, key)
	r.actionsMu.Unlock()
	return err
}
