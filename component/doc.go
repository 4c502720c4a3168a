// Package component defines the lifecycle contract shared by the server, the
// event hub and the session orchestrator, and a registry that starts them in
// order and stops them in reverse.
package component
