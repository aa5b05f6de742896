// Package runner defines the boundary to the external runner: the
// collaborator that turns a resolved declaration into a live running
// program. The core invokes runners outside any realm lock and learns of
// termination asynchronously through the returned controller.
package runner

import (
	"context"

	"github.com/componentry/componentd/internal/capability"
	"github.com/componentry/componentd/internal/shared/decl"
)

// NamespaceEntry is one routed capability handed to the program: the path
// it is mounted at and the provider serving it. Entry order follows the
// component's use declarations.
type NamespaceEntry struct {
	Path     string
	Provider capability.Provider
}

// StartInfo carries everything a runner needs to launch a component.
type StartInfo struct {
	URL       string
	Moniker   string
	Program   *decl.Program
	Namespace []NamespaceEntry
	// Exposed lists the capability names the component exposes, for
	// runners that publish an outgoing directory.
	Exposed []string
}

// Controller tracks one launched program. Stop requests termination;
// Done is closed once the program has terminated, whether stopped or
// exited on its own. Wait-like consumers select on Done and then read
// Err for the exit status.
type Controller interface {
	Stop(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
}

// Runner launches programs.
type Runner interface {
	Start(ctx context.Context, info StartInfo) (Controller, error)
}
