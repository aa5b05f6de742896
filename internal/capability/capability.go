// Package capability defines the value types describing a routable
// capability and the provider interface through which a routed capability
// is ultimately served.
package capability

import (
	"context"
	"io"

	"github.com/componentry/componentd/internal/shared/decl"
)

// Capability describes one routable capability: its type, the name it is
// routed under, and (where applicable) the path it is served from.
type Capability struct {
	Type decl.CapabilityType
	Name string
	Path string
}

// ID returns the identity used for hook filters and storage keying: the
// source path when present, the name otherwise.
func (c Capability) ID() string {
	if c.Path != "" {
		return c.Path
	}
	return c.Name
}

// Provider serves a routed capability. Open is invoked once routing
// completes, handing the consumer's side of the connection to whatever
// backs the capability. Implementations must close conn on failure so the
// requester observes the error as a closed channel rather than a hang.
type Provider interface {
	Open(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error

// Open implements Provider.
func (f ProviderFunc) Open(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error {
	return f(ctx, flags, relPath, conn)
}
