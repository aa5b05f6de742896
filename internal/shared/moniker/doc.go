// Package moniker provides path-like identifiers for component instances.
//
// A moniker is an ordered sequence of child segments describing the path
// from the root of the instance tree to a specific instance. Monikers are
// immutable values: derivation methods return new monikers and never
// mutate the receiver, so they can be shared freely across goroutines.
package moniker
