package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: embedding gateway timeouts, checkpoint backend unavailability.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid registration fields, unknown agent id, tier too low.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for directory operation failures.
const (
	// ErrCodeValidation indicates malformed or missing registration fields.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// ErrCodeDuplicateAgent indicates an agent id collision on registration.
	ErrCodeDuplicateAgent ErrorCode = "DUPLICATE_AGENT"

	// ErrCodeNotFound indicates an unknown agent id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnauthenticated indicates a missing or invalid identity.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrCodePermissionDenied indicates the caller's tier is insufficient.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrCodeRegistrationFailed indicates a registration rejected for
	// reasons other than validation or duplication (e.g., disallowed type).
	ErrCodeRegistrationFailed ErrorCode = "REGISTRATION_FAILED"

	// ErrCodeDependencyDegraded indicates an external dependency (embedding
	// gateway) is unavailable. Absorbed by the caller, never surfaced.
	ErrCodeDependencyDegraded ErrorCode = "DEPENDENCY_DEGRADED"

	// ErrCodeConflict indicates a lost race with a concurrent mutation,
	// e.g. an unregister racing the lifecycle sweep. Resolved idempotently.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeRateLimited indicates the caller exceeded a write quota.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeTimeout indicates an operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeCanceled indicates the caller canceled the operation.
	ErrCodeCanceled ErrorCode = "CANCELED"

	// ErrCodeInternal indicates an unexpected failure. Logged with full
	// context server-side, returned sanitized.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// String returns the string representation of the code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the category an error code belongs to.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeDependencyDegraded, ErrCodeConflict, ErrCodeRateLimited, ErrCodeTimeout:
		return CategoryTransient
	case ErrCodeInternal:
		return CategoryInternal
	default:
		return CategoryPermanent
	}
}

// Description returns a human-readable description for the code.
func (c ErrorCode) Description() string {
	switch c {
	case ErrCodeValidation:
		return "one or more registration fields are malformed or missing"
	case ErrCodeDuplicateAgent:
		return "an agent with this id is already registered"
	case ErrCodeNotFound:
		return "no agent with this id is registered"
	case ErrCodeUnauthenticated:
		return "request identity is missing or invalid"
	case ErrCodePermissionDenied:
		return "caller tier is insufficient for this operation"
	case ErrCodeRegistrationFailed:
		return "registration was rejected"
	case ErrCodeDependencyDegraded:
		return "an external dependency is unavailable"
	case ErrCodeConflict:
		return "the operation conflicted with a concurrent change"
	case ErrCodeRateLimited:
		return "write quota exceeded, retry later"
	case ErrCodeTimeout:
		return "the operation timed out"
	case ErrCodeCanceled:
		return "the operation was canceled"
	case ErrCodeInternal:
		return "an internal error occurred"
	default:
		return "unknown error"
	}
}

// HTTPStatus maps an error code to the HTTP status the transport layer
// should return for it.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidation:
		return 400
	case ErrCodeUnauthenticated:
		return 401
	case ErrCodePermissionDenied:
		return 403
	case ErrCodeNotFound:
		return 404
	case ErrCodeDuplicateAgent, ErrCodeConflict:
		return 409
	case ErrCodeRegistrationFailed:
		return 422
	case ErrCodeRateLimited:
		return 429
	case ErrCodeDependencyDegraded:
		return 503
	case ErrCodeTimeout:
		return 504
	default:
		return 500
	}
}
