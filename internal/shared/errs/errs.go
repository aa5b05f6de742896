// Package errs defines the error taxonomy shared across the orchestration
// core. Every category is a sentinel usable with errors.Is; constructors
// wrap context and causes with %w so callers can unwrap both the category
// and the underlying failure.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInstanceNotFound indicates a moniker that names no live instance.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceAlreadyExists indicates a create against an occupied name.
	ErrInstanceAlreadyExists = errors.New("instance already exists")
	// ErrInstanceShutDown indicates a lifecycle operation against an
	// instance whose shut-down flag is set.
	ErrInstanceShutDown = errors.New("instance shut down")
	// ErrInvalidDeclaration indicates a declaration that failed validation.
	ErrInvalidDeclaration = errors.New("invalid declaration")
	// ErrResolver indicates a failure in the external resolver.
	ErrResolver = errors.New("resolver error")
	// ErrRunner indicates a failure in the external runner.
	ErrRunner = errors.New("runner error")
	// ErrRouting indicates a capability that could not be routed to a
	// source.
	ErrRouting = errors.New("capability routing error")
	// ErrStorage indicates a failure in a storage backing.
	ErrStorage = errors.New("storage error")
	// ErrEvents indicates a hook dispatch failure.
	ErrEvents = errors.New("events error")
	// ErrInvariant indicates a violated internal invariant. Unlike the
	// retryable categories above it signals a programming error; callers
	// must surface it rather than absorb it.
	ErrInvariant = errors.New("invariant violation")
)

// InstanceNotFound reports that no live instance has the given moniker.
func InstanceNotFound(m fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrInstanceNotFound, m)
}

// InstanceAlreadyExists reports a name collision under a parent.
func InstanceAlreadyExists(m fmt.Stringer, name string) error {
	return fmt.Errorf("%w: %q in %s", ErrInstanceAlreadyExists, name, m)
}

// InstanceShutDown reports an operation against a shut-down instance.
func InstanceShutDown(m fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrInstanceShutDown, m)
}

// InvalidDeclaration reports a declaration validation failure for url.
func InvalidDeclaration(url, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidDeclaration, url, detail)
}

// Resolver wraps a resolver failure for url.
func Resolver(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrResolver, url, err)
}

// Runner wraps a runner failure for the instance at m.
func Runner(m fmt.Stringer, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRunner, m, err)
}

// Routing reports a routing failure for capability name observed at m.
func Routing(m fmt.Stringer, name, detail string) error {
	return fmt.Errorf("%w: %q at %s: %s", ErrRouting, name, m, detail)
}

// Storage wraps a storage backing failure for capability name at m.
func Storage(m fmt.Stringer, name string, err error) error {
	return fmt.Errorf("%w: %q at %s: %w", ErrStorage, name, m, err)
}

// Events wraps a hook failure during dispatch of event type.
func Events(hook, event string, err error) error {
	return fmt.Errorf("%w: hook %q on %q: %w", ErrEvents, hook, event, err)
}

// Invariant reports a violated invariant. The formatted detail should name
// the instance and the broken expectation.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
