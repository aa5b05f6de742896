// Package resolver defines the boundary to the external resolver: the
// collaborator that turns a component URL into a validated declaration.
// Resolvers are registered per URL scheme; the core deduplicates
// same-instance resolutions, so implementations only need to be safe for
// concurrent calls on distinct URLs.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
)

// Resolver resolves a component URL into a declaration. The returned
// declaration must already be validated and is treated as immutable.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*decl.Component, error)
}

// Registry routes resolution by URL scheme. A registry may be derived
// from a parent registry, in which case schemes it does not bind itself
// fall back to the parent chain.
type Registry struct {
	parent    *Registry
	mu        sync.RWMutex
	bySchemes map[string]Resolver
}

// NewRegistry creates an empty root registry.
func NewRegistry() *Registry {
	return &Registry{bySchemes: make(map[string]Resolver)}
}

// Derive creates an empty registry that falls back to r for schemes it
// does not bind itself.
func (r *Registry) Derive() *Registry {
	return &Registry{parent: r, bySchemes: make(map[string]Resolver)}
}

// Register binds a scheme to a resolver, replacing any previous binding
// in this registry. Parent bindings are shadowed, not replaced.
func (r *Registry) Register(scheme string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySchemes[scheme] = res
}

// Lookup returns the resolver serving a scheme, walking the parent chain.
func (r *Registry) Lookup(scheme string) (Resolver, bool) {
	r.mu.RLock()
	res, found := r.bySchemes[scheme]
	r.mu.RUnlock()
	if found {
		return res, true
	}
	if r.parent != nil {
		return r.parent.Lookup(scheme)
	}
	return nil, false
}

// Resolve dispatches to the resolver registered for the URL's scheme.
func (r *Registry) Resolve(ctx context.Context, url string) (*decl.Component, error) {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok || scheme == "" {
		return nil, errs.Resolver(url, fmt.Errorf("url has no scheme"))
	}

	res, found := r.Lookup(scheme)
	if !found {
		return nil, errs.Resolver(url, fmt.Errorf("no resolver registered for scheme %q", scheme))
	}
	return res.Resolve(ctx, url)
}
