// Package stack implements the orchestration core: dependency-ordered stack
// definitions, a run-scoped output store, the apply executor with
// terminal-status polling, and best-effort reverse-order teardown.
package stack
