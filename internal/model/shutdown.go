package model

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/componentry/componentd/internal/shared/decl"
)

// Shutdown stops the subtree rooted at this realm and marks every realm
// in it shut down. Children complete before their parent, and a child
// that provides capabilities to a sibling stops only after its consumers
// have. Shutdown is idempotent; the shut-down flag never clears.
func (r *Realm) Shutdown(ctx context.Context) error {
	return r.runAction(ctx, actionKey{kind: ActionShutdown}, r.shutdownBody)
}

func (r *Realm) shutdownBody(ctx context.Context) error {
	r.execMu.Lock()
	done := r.shutDown
	r.execMu.Unlock()
	if done {
		return nil
	}

	if err := r.shutdownChildren(ctx); err != nil {
		return err
	}

	// A Start that already passed its shut-down recheck can commit a
	// runtime between the stop and the flag; re-verify under the lock
	// and stop again until the flag lands on a runtime-free realm.
	for {
		if err := r.Stop(ctx); err != nil {
			return err
		}
		r.execMu.Lock()
		if r.runtime != nil {
			r.execMu.Unlock()
			continue
		}
		r.shutDown = true
		r.execMu.Unlock()
		return nil
	}
}

// shutdownChildren shuts down all children, consumers before the
// providers they depend on. Children within one dependency level shut
// down concurrently; errors across a level are aggregated.
func (r *Realm) shutdownChildren(ctx context.Context) error {
	r.stateMu.Lock()
	if r.resolved == nil {
		r.stateMu.Unlock()
		return nil
	}
	d := r.resolved.decl
	children := make(map[string]*Realm, len(r.resolved.children))
	for k, v := range r.resolved.children {
		children[k] = v
	}
	r.stateMu.Unlock()

	for _, level := range shutdownLevels(d, children) {
		var (
			mu  sync.Mutex
			agg error
		)
		g, gctx := errgroup.WithContext(ctx)
		for _, child := range level {
			child := child
			g.Go(func() error {
				if err := child.Shutdown(gctx); err != nil {
					mu.Lock()
					agg = multierr.Append(agg, err)
					mu.Unlock()
				}
				return nil
			})
		}
		g.Wait()
		if agg != nil {
			return agg
		}
	}
	return nil
}

// shutdownLevels orders children for shutdown: a child may only shut
// down once every sibling consuming one of its offered capabilities has.
// The declared offer edges between children define the dependency graph;
// should a strong-dependency cycle slip through validation, the remaining
// children form one final concurrent level rather than deadlocking.
func shutdownLevels(d *decl.Component, children map[string]*Realm) [][]*Realm {
	// consumersOf maps a provider's declared name to the declared names
	// of the children consuming from it.
	consumersOf := make(map[string]map[string]bool)
	for _, offer := range d.Offers {
		if offer.Source.Kind != decl.RefChild || offer.Target.Kind != decl.RefChild {
			continue
		}
		if consumersOf[offer.Source.Name] == nil {
			consumersOf[offer.Source.Name] = make(map[string]bool)
		}
		consumersOf[offer.Source.Name][offer.Target.Name] = true
	}

	remaining := make(map[string]*Realm, len(children))
	for k, v := range children {
		remaining[k] = v
	}

	var levels [][]*Realm
	for len(remaining) > 0 {
		var level []*Realm
		var keys []string
		for key, child := range remaining {
			if consumersRemain(consumersOf[declName(key)], remaining, key) {
				continue
			}
			level = append(level, child)
			keys = append(keys, key)
		}
		if len(level) == 0 {
			// Dependency cycle: flush the rest in one level.
			for key, child := range remaining {
				level = append(level, child)
				keys = append(keys, key)
			}
		}
		for _, key := range keys {
			delete(remaining, key)
		}
		levels = append(levels, level)
	}
	return levels
}

// consumersRemain reports whether any remaining child other than self
// consumes from the provider with the given consumer name set.
func consumersRemain(consumers map[string]bool, remaining map[string]*Realm, self string) bool {
	if len(consumers) == 0 {
		return false
	}
	for key := range remaining {
		if key == self {
			continue
		}
		if consumers[declName(key)] {
			return true
		}
	}
	return false
}

// declName maps a child segment partial form back to the name offers
// refer to it by: the child name for static children, the collection
// name for dynamic ones.
func declName(partial string) string {
	if coll, _, ok := strings.Cut(partial, ":"); ok {
		return coll
	}
	return partial
}
