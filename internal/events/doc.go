// Package events implements the typed event and hook system used to
// observe and intercept lifecycle transitions.
//
// Hooks are installed once with an interest set of event types and an
// optional moniker filter. Dispatch for a single event is strictly
// sequential in registration order: a later hook observes every mutation
// an earlier hook made to the event payload, which is what makes
// capability provider interception composable. The first hook error
// aborts dispatch and propagates to the action that triggered the event.
package events
