// Package recorder feeds executed commands into the query stats store.
//
// Record runs the whole pipeline for one command: sampling, key assembly,
// encoding and the store update. Middleware wraps a command executor so the
// key is computed before execution and the runtime statistics are recorded
// after it. Telemetry failures never reach the command path: every error is
// converted into an Outcome and counted as a drop.
package recorder
