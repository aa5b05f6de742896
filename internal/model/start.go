package model

import (
	"context"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
)

// StartedPayload is the payload of a TypeStarted event. It is dispatched
// before the runtime commits, so observers see the pending runtime id.
type StartedPayload struct {
	URL       string
	RuntimeID string
}

// StoppedPayload is the payload of a TypeStopped event.
type StoppedPayload struct {
	RuntimeID string
}

// ResolvedPayload is the payload of a TypeResolved event.
type ResolvedPayload struct {
	URL         string
	Declaration *decl.Component
}

// Start resolves the realm and commits a runtime for it, launching its
// program through the runner. Starting an already-started realm is a
// no-op; starting a shut-down realm fails. Concurrent callers share one
// start: exactly one resolution and one runtime commit occur.
func (r *Realm) Start(ctx context.Context) error {
	return r.runAction(ctx, actionKey{kind: ActionStart}, r.startBody)
}

func (r *Realm) startBody(ctx context.Context) error {
	r.execMu.Lock()
	if r.shutDown {
		r.execMu.Unlock()
		return errs.InstanceShutDown(r.moniker)
	}
	if r.runtime != nil {
		r.execMu.Unlock()
		return nil
	}
	r.execMu.Unlock()

	d, err := r.Resolve(ctx)
	if err != nil {
		return err
	}

	var run runner.Runner
	if d.Program != nil {
		if run, err = r.environment.runnerNamed(d.Program.Runner); err != nil {
			return errs.Routing(r.moniker, d.Program.Runner, err.Error())
		}
	}

	ns, err := r.populateNamespace(ctx, d)
	if err != nil {
		return err
	}

	rt := newRuntime(ns, exposedNames(d))

	// Started is observable before the runtime commits; a hook failure
	// here aborts the start.
	ev := events.New(events.TypeStarted, r.moniker, &StartedPayload{URL: r.url, RuntimeID: rt.ID})
	if err := r.model.dispatch(ctx, ev); err != nil {
		return err
	}

	// Recheck under the lock: a concurrent Stop or Shutdown may have
	// intervened while the realm was unlocked above.
	r.execMu.Lock()
	if r.shutDown {
		r.execMu.Unlock()
		return errs.InstanceShutDown(r.moniker)
	}
	if r.runtime != nil {
		r.execMu.Unlock()
		return nil
	}
	r.runtime = rt
	r.execMu.Unlock()

	r.model.logger.Info("started",
		zap.String("moniker", r.moniker.String()),
		zap.String("url", r.url),
		zap.String("runtime", rt.ID))

	// The runner is invoked after releasing the lock so runner errors
	// cannot deadlock the model.
	if run != nil {
		ctrl, err := run.Start(ctx, runner.StartInfo{
			URL:       r.url,
			Moniker:   r.moniker.String(),
			Program:   d.Program,
			Namespace: ns,
			Exposed:   rt.Exposed,
		})
		if err != nil {
			r.execMu.Lock()
			if r.runtime == rt {
				r.runtime = nil
			}
			r.execMu.Unlock()
			return errs.Runner(r.moniker, err)
		}

		r.execMu.Lock()
		if r.runtime == rt {
			rt.controller = ctrl
			r.execMu.Unlock()
		} else {
			// The runtime was torn down between commit and controller
			// attach; the freshly launched program must not outlive it.
			r.execMu.Unlock()
			if stopErr := ctrl.Stop(ctx); stopErr != nil {
				r.model.logger.Warn("stopping orphaned program",
					zap.String("moniker", r.moniker.String()),
					zap.Error(stopErr))
			}
		}
	}

	return r.startEagerChildren(ctx, d)
}

// populateNamespace routes every use declaration to a provider-backed
// namespace entry, in declaration order. The provider of a
// component-sourced capability starts its source realm on first open.
func (r *Realm) populateNamespace(ctx context.Context, d *decl.Component) ([]runner.NamespaceEntry, error) {
	ns := make([]runner.NamespaceEntry, 0, len(d.Uses))
	for _, use := range d.Uses {
		src, provider, err := r.model.RouteUse(ctx, r, use)
		if err != nil {
			return nil, err
		}
		if provider == nil {
			provider = r.model.defaultProvider(src)
		}
		path := use.TargetPath
		if path == "" {
			path = "/svc/" + use.SourceName
		}
		ns = append(ns, runner.NamespaceEntry{Path: path, Provider: provider})
	}
	return ns, nil
}

// startEagerChildren starts children declared with eager startup, in
// declaration order, after the parent's runtime commit.
func (r *Realm) startEagerChildren(ctx context.Context, d *decl.Component) error {
	for _, child := range d.Children {
		if child.Startup != decl.StartupEager {
			continue
		}
		childRealm, ok := r.childByPartial(child.Name)
		if !ok {
			continue
		}
		if err := childRealm.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func exposedNames(d *decl.Component) []string {
	names := make([]string, 0, len(d.Exposes))
	for _, e := range d.Exposes {
		names = append(names, e.TargetName)
	}
	return names
}
