// Package errors provides the structured error taxonomy for the agent
// directory. Every failure surfaced by the registry facade carries a code,
// a category, and enough context to classify, log, and render it.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Temporary failures where retry may succeed (degraded
//     dependencies, lost races, rate limits)
//   - Permanent: Failures where retry will not help (invalid fields,
//     unknown ids, insufficient tier)
//   - Internal: Unexpected errors indicating bugs or system failures
//
// # Error Codes
//
// Each error has a specific code that identifies the type of failure:
//
//   - VALIDATION_FAILED: Malformed or missing registration fields
//   - DUPLICATE_AGENT: Agent id collision on registration
//   - NOT_FOUND: Unknown agent id
//   - PERMISSION_DENIED: Caller tier insufficient
//   - DEPENDENCY_DEGRADED: Embedding gateway unavailable (absorbed)
//   - CONFLICT: Lost race with a concurrent mutation (resolved idempotently)
//   - And more...
//
// # Usage
//
// Create a new error:
//
//	err := errors.DuplicateAgent("agent-1")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "registering agent")
//
// Check the code anywhere in a chain:
//
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // treat as already gone
//	}
//
// # Problem Objects
//
// The transport layer renders failures as RFC 7807 problem objects with
// stable type URIs:
//
//	problem := errors.ToProblem(err, r.URL.Path)
package errors
