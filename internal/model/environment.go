package model

import (
	"fmt"

	"github.com/componentry/componentd/internal/resolver"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/decl"
)

// Environment carries the runner and resolver registrations a realm was
// created in. It is fixed at realm creation and never mutated afterwards.
type Environment struct {
	name          string
	runners       map[string]runner.Runner
	defaultRunner string
	resolvers     *resolver.Registry
}

// NewEnvironment builds a root environment from explicit registrations.
func NewEnvironment(name string, runners map[string]runner.Runner, defaultRunner string, resolvers *resolver.Registry) *Environment {
	rs := make(map[string]runner.Runner, len(runners))
	for k, v := range runners {
		rs[k] = v
	}
	return &Environment{
		name:          name,
		runners:       rs,
		defaultRunner: defaultRunner,
		resolvers:     resolvers,
	}
}

// Name returns the environment's name; the root environment is "".
func (e *Environment) Name() string { return e.name }

// runnerNamed returns the runner registered under name, or the default
// runner for an empty name.
func (e *Environment) runnerNamed(name string) (runner.Runner, error) {
	if name == "" {
		name = e.defaultRunner
	}
	r, ok := e.runners[name]
	if !ok {
		return nil, fmt.Errorf("no runner %q registered in environment %q", name, e.name)
	}
	return r, nil
}

// forChild derives the environment a child is created in. An empty
// environment name on the child declaration inherits the parent's
// environment unchanged.
func (e *Environment) forChild(parentDecl *decl.Component, envName string) (*Environment, error) {
	if envName == "" {
		return e, nil
	}
	envDecl, ok := parentDecl.EnvironmentByName(envName)
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", envName)
	}

	child := &Environment{
		name:          envDecl.Name,
		runners:       map[string]runner.Runner{},
		defaultRunner: e.defaultRunner,
		resolvers:     e.resolvers,
	}
	if envDecl.Extends != "none" {
		for k, v := range e.runners {
			child.runners[k] = v
		}
	}
	// Runner registrations alias runners already known to the parent
	// environment under a new name. A registration whose source the
	// parent environment does not know surfaces as a runner-not-found
	// error when a program first asks for it.
	for _, reg := range envDecl.Runners {
		if src, ok := e.runners[reg.SourceName]; ok {
			child.runners[reg.TargetName] = src
		}
	}

	// Resolver registrations rebind URL schemes for realms created in
	// this environment: each registration serves reg.Scheme with the
	// resolver the parent environment already serves under the scheme
	// named by reg.Resolver. An extending environment keeps the parent
	// chain as fallback; a sealed one resolves only what it registers.
	if envDecl.Extends == "none" || len(envDecl.Resolvers) > 0 {
		registry := resolver.NewRegistry()
		if envDecl.Extends != "none" {
			registry = e.resolvers.Derive()
		}
		for _, reg := range envDecl.Resolvers {
			if src, ok := e.resolvers.Lookup(reg.Resolver); ok {
				registry.Register(reg.Scheme, src)
			}
		}
		child.resolvers = registry
	}
	return child, nil
}
