// Package agent turns free-form wallet commands into wallet operations. It
// asks the interpreter for an intent and dispatches balance checks and
// transfers to the session orchestrator, reporting the outcome as a
// CommandResult.
package agent
