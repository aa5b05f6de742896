// Package model implements the component instance tree and its lifecycle
// orchestration: realms, the idempotent async actions that start, stop,
// shut down and destroy them, and the capability router that wires
// producers to consumers across the tree.
//
// Concurrency model: the tree is owned exclusively top-down. A parent's
// resolved state holds the only owning references to its children; a
// child keeps a plain back pointer to its parent for moniker derivation
// and upward routing. Each realm guards its resolved state, its execution
// state and its action registry with independent locks. An operation that
// needs locks on more than one realm always acquires them ancestor first.
// External collaborators (resolver, runner, hooks) are always invoked
// with no realm lock held.
package model
