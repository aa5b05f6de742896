// Command componentd runs the component orchestrator: it resolves the
// root component from its manifest source, starts the instance tree and
// serves the introspection surface until interrupted.
package main
