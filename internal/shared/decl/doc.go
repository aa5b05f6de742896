// Package decl defines resolved component declarations: the validated
// output of a resolver, consumed read-only by the lifecycle core.
//
// A declaration describes what a component runs (Program), what it
// consumes (Uses), what it makes available to its parent (Exposes), what
// it passes to its children (Offers), and the static children,
// collections, storage and environments it declares. Field tags allow
// resolvers to decode declarations straight from YAML manifests.
package decl
