package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// Realm is one node of the component instance tree.
type Realm struct {
	model       *Model
	parent      *Realm // non-owning back pointer; nil at root
	moniker     moniker.Moniker
	url         string
	environment *Environment

	// stateMu guards resolved and nextInstanceID.
	stateMu        sync.Mutex
	resolved       *resolvedState
	nextInstanceID uint32

	// execMu guards runtime and shutDown.
	execMu   sync.Mutex
	runtime  *Runtime
	shutDown bool

	// actionsMu guards actions. At most one in-flight completion exists
	// per action key; duplicate registrants await the existing one.
	actionsMu sync.Mutex
	actions   map[actionKey]*completion
}

// resolvedState is set at most once per realm. children maps a child
// segment's partial form to the child realm; it holds the only owning
// references to the subtree below.
type resolvedState struct {
	decl     *decl.Component
	children map[string]*Realm
}

// Runtime is the execution state of a started realm.
type Runtime struct {
	ID         string
	Namespace  []runner.NamespaceEntry
	Exposed    []string
	StartedAt  time.Time
	controller runner.Controller // guarded by the realm's execMu
}

func newRuntime(ns []runner.NamespaceEntry, exposed []string) *Runtime {
	return &Runtime{
		ID:        uuid.New().String(),
		Namespace: ns,
		Exposed:   exposed,
		StartedAt: time.Now(),
	}
}

func newRealm(m *Model, parent *Realm, mon moniker.Moniker, url string, env *Environment) *Realm {
	if m.metrics != nil {
		m.metrics.RealmCreated()
	}
	return &Realm{
		model:       m,
		parent:      parent,
		moniker:     mon,
		url:         url,
		environment: env,
		actions:     make(map[actionKey]*completion),
	}
}

// Moniker returns the realm's identity in the tree.
func (r *Realm) Moniker() moniker.Moniker { return r.moniker }

// URL returns the component URL the realm was created from.
func (r *Realm) URL() string { return r.url }

// Parent returns the parent realm, nil at root.
func (r *Realm) Parent() *Realm { return r.parent }

// IsResolved reports whether the declaration has been resolved.
func (r *Realm) IsResolved() bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.resolved != nil
}

// IsShutDown reports whether the realm's monotonic shut-down flag is set.
func (r *Realm) IsShutDown() bool {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.shutDown
}

// HasRuntime reports whether the realm currently has a committed runtime.
func (r *Realm) HasRuntime() bool {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.runtime != nil
}

// Declaration returns the cached declaration, nil if unresolved.
func (r *Realm) Declaration() *decl.Component {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.resolved == nil {
		return nil
	}
	return r.resolved.decl
}

// Children returns a snapshot of the current child realms, sorted by
// moniker.
func (r *Realm) Children() []*Realm {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.resolved == nil {
		return nil
	}
	children := make([]*Realm, 0, len(r.resolved.children))
	for _, c := range r.resolved.children {
		children = append(children, c)
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].moniker.Compare(children[j].moniker) < 0
	})
	return children
}

// childByPartial returns the live child whose segment partial form (name
// or collection:name) matches.
func (r *Realm) childByPartial(partial string) (*Realm, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.resolved == nil {
		return nil, false
	}
	c, ok := r.resolved.children[partial]
	return c, ok
}

// Resolve returns the realm's declaration, resolving it on first call.
// Concurrent calls coalesce on a single resolver round-trip; failures are
// not cached, so resolution is retryable.
func (r *Realm) Resolve(ctx context.Context) (*decl.Component, error) {
	r.stateMu.Lock()
	if r.resolved != nil {
		d := r.resolved.decl
		r.stateMu.Unlock()
		return d, nil
	}
	r.stateMu.Unlock()

	if err := r.runAction(ctx, actionKey{kind: ActionResolve}, r.resolveBody); err != nil {
		return nil, err
	}
	return r.Declaration(), nil
}

func (r *Realm) resolveBody(ctx context.Context) error {
	r.stateMu.Lock()
	already := r.resolved != nil
	r.stateMu.Unlock()
	if already {
		return nil
	}

	d, err := r.environment.resolvers.Resolve(ctx, r.url)
	if r.model.metrics != nil {
		r.model.metrics.RecordResolution(err)
	}
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return errs.InvalidDeclaration(r.url, err.Error())
	}

	// Instantiate one unresolved, unstarted realm per static child.
	children := make(map[string]*Realm, len(d.Children))
	for _, child := range d.Children {
		env, err := r.environment.forChild(d, child.Environment)
		if err != nil {
			return errs.InvalidDeclaration(r.url, fmt.Sprintf("child %q: %v", child.Name, err))
		}
		segment := moniker.NewChild(child.Name)
		children[segment.Partial()] = newRealm(r.model, r, r.moniker.Child(segment), child.URL, env)
	}

	r.stateMu.Lock()
	if r.resolved == nil {
		r.resolved = &resolvedState{decl: d, children: children}
	}
	r.stateMu.Unlock()

	r.model.logger.Debug("resolved",
		zap.String("moniker", r.moniker.String()),
		zap.String("url", r.url),
		zap.Int("children", len(children)))
	return r.model.dispatch(ctx, events.New(events.TypeResolved, r.moniker, &ResolvedPayload{
		URL:         r.url,
		Declaration: d,
	}))
}

// CreateChild creates a dynamic child in the named collection. The new
// realm is unresolved and unstarted; its instance id is assigned from the
// parent's counter.
func (r *Realm) CreateChild(ctx context.Context, collection, name, url string) (*Realm, error) {
	d, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	coll, ok := d.CollectionByName(collection)
	if !ok {
		return nil, fmt.Errorf("%w: collection %q in %s", errs.ErrInstanceNotFound, collection, r.moniker)
	}
	env, err := r.environment.forChild(d, coll.Environment)
	if err != nil {
		return nil, errs.InvalidDeclaration(r.url, err.Error())
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.nextInstanceID++
	segment := moniker.NewDynamicChild(collection, name, r.nextInstanceID)
	if _, exists := r.resolved.children[segment.Partial()]; exists {
		return nil, errs.InstanceAlreadyExists(r.moniker, segment.Partial())
	}
	child := newRealm(r.model, r, r.moniker.Child(segment), url, env)
	r.resolved.children[segment.Partial()] = child
	return child, nil
}

// countSubtree returns the number of realms in the subtree rooted here.
func (r *Realm) countSubtree() int {
	n := 1
	for _, c := range r.Children() {
		n += c.countSubtree()
	}
	return n
}
