package events

import (
	"time"

	"github.com/componentry/componentd/internal/shared/moniker"
)

// Type identifies a lifecycle event.
type Type string

const (
	// TypeResolved fires after a declaration is resolved and cached.
	TypeResolved Type = "resolved"
	// TypeStarted fires before a runtime is committed for an instance.
	TypeStarted Type = "started"
	// TypeStopped fires after an instance's runtime is cleared.
	TypeStopped Type = "stopped"
	// TypePreDestroyInstance fires before a child is detached from its
	// parent.
	TypePreDestroyInstance Type = "pre_destroy_instance"
	// TypePostDestroyInstance fires after the child is detached and its
	// subtree unreachable.
	TypePostDestroyInstance Type = "post_destroy_instance"
	// TypeDestroyed is the terminal destroy notification for an
	// instance; after it no further events fire for that moniker.
	TypeDestroyed Type = "destroyed"
	// TypeCapabilityRouted fires when routing lands on a source, giving
	// hooks the chance to substitute the provider.
	TypeCapabilityRouted Type = "capability_routed"
)

// Event is one lifecycle occurrence at a target instance. Payload holds
// the per-type payload struct; for TypeCapabilityRouted it is mutable and
// mutations are visible to later hooks in the same dispatch.
type Event struct {
	Type      Type
	Target    moniker.Moniker
	Payload   any
	Timestamp time.Time
}

// New builds an event stamped with the current time.
func New(t Type, target moniker.Moniker, payload any) *Event {
	return &Event{Type: t, Target: target, Payload: payload, Timestamp: time.Now()}
}
