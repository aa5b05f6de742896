package model

import (
	"context"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/infrastructure/monitoring"
	"github.com/componentry/componentd/internal/resolver"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/errs"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// Params configures a Model.
type Params struct {
	// RootURL is the component URL of the root realm.
	RootURL string
	// Resolvers routes resolution by URL scheme.
	Resolvers *resolver.Registry
	// Runners maps runner names usable by program declarations.
	Runners map[string]runner.Runner
	// DefaultRunner names the runner for programs that pick none.
	DefaultRunner string
	Logger        *zap.Logger
	Metrics       *monitoring.Metrics
}

// Model owns the root realm and the context shared by every realm:
// resolver registry, runner registrations, hooks, logging and metrics.
type Model struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
	hooks   *events.Hooks
	root    *Realm
}

// New creates a model with an unresolved root realm.
func New(p Params) *Model {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolvers := p.Resolvers
	if resolvers == nil {
		resolvers = resolver.NewRegistry()
	}

	m := &Model{
		logger:  logger,
		metrics: p.Metrics,
		hooks:   events.NewHooks(logger),
	}
	rootEnv := NewEnvironment("", p.Runners, p.DefaultRunner, resolvers)
	m.root = newRealm(m, nil, moniker.Root(), p.RootURL, rootEnv)
	return m
}

// Root returns the root realm.
func (m *Model) Root() *Realm { return m.root }

// Hooks returns the model's hook registry for installation.
func (m *Model) Hooks() *events.Hooks { return m.hooks }

// Start resolves and starts the root realm. This is the entry point an
// external driver calls once wiring is complete.
func (m *Model) Start(ctx context.Context) error {
	return m.root.Start(ctx)
}

// Look walks the tree to the realm with the given moniker, resolving
// realms along the path as needed. Segments are matched by their partial
// form; a missing hop fails with instance-not-found.
func (m *Model) Look(ctx context.Context, mon moniker.Moniker) (*Realm, error) {
	current := m.root
	for _, segment := range mon.Path() {
		if _, err := current.Resolve(ctx); err != nil {
			return nil, err
		}
		child, ok := current.childByPartial(segment.Partial())
		if !ok {
			return nil, errs.InstanceNotFound(mon)
		}
		current = child
	}
	return current, nil
}

// Bind looks up the realm at mon, starting it (and any providers it
// pulls in) if it is not already running.
func (m *Model) Bind(ctx context.Context, mon moniker.Moniker) (*Realm, error) {
	realm, err := m.Look(ctx, mon)
	if err != nil {
		return nil, err
	}
	if err := realm.Start(ctx); err != nil {
		return nil, err
	}
	return realm, nil
}

// dispatch delivers an event through the hook registry, recording it.
func (m *Model) dispatch(ctx context.Context, ev *events.Event) error {
	if m.metrics != nil {
		m.metrics.RecordEvent(string(ev.Type))
	}
	return m.hooks.Dispatch(ctx, ev)
}
