package model

import (
	"context"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/errs"
)

// Stop terminates the realm's program and clears its runtime. Stopping a
// realm with no runtime is a no-op. Stop does not touch children and does
// not set the shut-down flag; that is Shutdown's job.
func (r *Realm) Stop(ctx context.Context) error {
	return r.runAction(ctx, actionKey{kind: ActionStop}, r.stopBody)
}

func (r *Realm) stopBody(ctx context.Context) error {
	r.execMu.Lock()
	rt := r.runtime
	var ctrl runner.Controller
	if rt != nil {
		ctrl = rt.controller
	}
	r.execMu.Unlock()

	if rt == nil {
		return nil
	}

	if ctrl != nil {
		if err := ctrl.Stop(ctx); err != nil {
			return errs.Runner(r.moniker, err)
		}
		select {
		case <-ctrl.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.execMu.Lock()
	if r.runtime == rt {
		r.runtime = nil
	}
	r.execMu.Unlock()

	r.model.logger.Info("stopped",
		zap.String("moniker", r.moniker.String()),
		zap.String("runtime", rt.ID))
	return r.model.dispatch(ctx, events.New(events.TypeStopped, r.moniker, &StoppedPayload{RuntimeID: rt.ID}))
}
