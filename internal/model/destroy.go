package model

import (
	"context"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/shared/errs"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// Destroy detaches the child with the given segment from this realm,
// dropping the sole owning reference to its subtree. The child must
// already be shut down; destroying a child that does not exist (never
// created, or already destroyed) succeeds.
func (r *Realm) Destroy(ctx context.Context, segment moniker.Child) error {
	partial := segment.Partial()
	return r.runAction(ctx, actionKey{kind: ActionDestroy, child: partial}, func(ctx context.Context) error {
		return r.destroyBody(ctx, partial)
	})
}

// DestroyChild shuts the child down and then destroys it: the sequence a
// dynamic-collection caller wants. Absent children succeed.
func (r *Realm) DestroyChild(ctx context.Context, segment moniker.Child) error {
	child, ok := r.childByPartial(segment.Partial())
	if !ok {
		return nil
	}
	if err := child.Shutdown(ctx); err != nil {
		return err
	}
	return r.Destroy(ctx, segment)
}

func (r *Realm) destroyBody(ctx context.Context, partial string) error {
	child, ok := r.childByPartial(partial)
	if !ok {
		return nil
	}

	// Destroy before Shutdown is a caller bug, not a transient
	// condition; absorbing it would corrupt the tree silently.
	if !child.IsShutDown() {
		return errs.Invariant("destroy of %s before shutdown", child.moniker)
	}

	if err := r.model.dispatch(ctx, events.New(events.TypePreDestroyInstance, child.moniker, nil)); err != nil {
		return err
	}

	r.stateMu.Lock()
	var destroyed *Realm
	if r.resolved != nil {
		destroyed = r.resolved.children[partial]
		delete(r.resolved.children, partial)
	}
	r.stateMu.Unlock()

	if destroyed != nil && r.model.metrics != nil {
		for i := 0; i < destroyed.countSubtree(); i++ {
			r.model.metrics.RealmDestroyed()
		}
	}

	r.model.logger.Info("destroyed",
		zap.String("moniker", child.moniker.String()),
		zap.String("parent", r.moniker.String()))
	if err := r.model.dispatch(ctx, events.New(events.TypePostDestroyInstance, child.moniker, nil)); err != nil {
		return err
	}
	return r.model.dispatch(ctx, events.New(events.TypeDestroyed, child.moniker, nil))
}
