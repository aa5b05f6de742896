// Package static provides an in-memory resolver backed by a URL to
// declaration map, for tests and embedders that assemble topologies in
// code.
package static

import (
	"context"
	"fmt"
	"sync"

	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
)

// Resolver maps component URLs to declarations.
type Resolver struct {
	mu    sync.RWMutex
	decls map[string]*decl.Component
}

// New creates an empty static resolver.
func New() *Resolver {
	return &Resolver{decls: make(map[string]*decl.Component)}
}

// Add registers a declaration under a URL. The declaration is validated
// here so resolution can hand it out as-is.
func (r *Resolver) Add(url string, c *decl.Component) error {
	if err := c.Validate(); err != nil {
		return errs.InvalidDeclaration(url, err.Error())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decls[url] = c
	return nil
}

// MustAdd is Add for test topologies; it panics on invalid declarations.
func (r *Resolver) MustAdd(url string, c *decl.Component) {
	if err := r.Add(url, c); err != nil {
		panic(err)
	}
}

// Resolve implements resolver.Resolver.
func (r *Resolver) Resolve(ctx context.Context, url string) (*decl.Component, error) {
	r.mu.RLock()
	c, ok := r.decls[url]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Resolver(url, fmt.Errorf("unknown component url"))
	}
	return c, nil
}
