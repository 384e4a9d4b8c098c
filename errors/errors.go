package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// DirectoryError is the interface for all structured errors in agentdir.
// It extends the standard error interface with the context the facade and
// transport layers need to classify, log, and render a failure.
type DirectoryError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for retry/handling decisions.
	Category() ErrorCategory

	// Retryable returns true if the operation may succeed on retry.
	Retryable() bool

	// Metadata returns additional context as key-value pairs.
	Metadata() map[string]string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of DirectoryError.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool // nil means use default based on category
	timestamp time.Time
	agentID   string // affected agent, if applicable
	requestID string // request the error belongs to, if applicable
}

// Ensure Error implements DirectoryError and json.Marshaler/Unmarshaler.
var (
	_ DirectoryError   = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Metadata returns the error metadata.
func (e *Error) Metadata() map[string]string {
	if e.metadata == nil {
		return make(map[string]string)
	}
	// Return a copy to prevent modification
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// AgentID returns the affected agent id, if set.
func (e *Error) AgentID() string {
	return e.agentID
}

// RequestID returns the request id the error belongs to, if set.
func (e *Error) RequestID() string {
	return e.requestID
}

// errorJSON is the JSON representation of an Error.
type errorJSON struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable"`
	Timestamp string            `json:"timestamp,omitempty"`
	AgentID   string            `json:"agent_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Metadata:  e.metadata,
		Retryable: e.Retryable(),
		AgentID:   e.agentID,
		RequestID: e.requestID,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	e.agentID = j.AgentID
	e.requestID = j.RequestID
	r := j.Retryable
	e.retryable = &r
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithAgentID sets the affected agent id.
func WithAgentID(id string) Option {
	return func(e *Error) {
		e.agentID = id
	}
}

// WithRequestID sets the request id the error belongs to.
func WithRequestID(id string) Option {
	return func(e *Error) {
		e.requestID = id
	}
}

// WithTimestamp sets a custom timestamp.
func WithTimestamp(t time.Time) Option {
	return func(e *Error) {
		e.timestamp = t
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// Validation creates a validation error.
func Validation(message string, opts ...Option) *Error {
	return New(ErrCodeValidation, message, opts...)
}

// DuplicateAgent creates a duplicate agent error.
func DuplicateAgent(agentID string, opts ...Option) *Error {
	opts = append([]Option{WithAgentID(agentID)}, opts...)
	return New(ErrCodeDuplicateAgent, fmt.Sprintf("agent %s is already registered", agentID), opts...)
}

// NotFound creates a not found error.
func NotFound(agentID string, opts ...Option) *Error {
	opts = append([]Option{WithAgentID(agentID)}, opts...)
	return New(ErrCodeNotFound, fmt.Sprintf("agent %s is not registered", agentID), opts...)
}

// Unauthenticated creates an unauthenticated error.
func Unauthenticated(message string, opts ...Option) *Error {
	return New(ErrCodeUnauthenticated, message, opts...)
}

// PermissionDenied creates a permission denied error.
func PermissionDenied(message string, opts ...Option) *Error {
	return New(ErrCodePermissionDenied, message, opts...)
}

// RegistrationFailed creates a registration failed error.
func RegistrationFailed(message string, opts ...Option) *Error {
	return New(ErrCodeRegistrationFailed, message, opts...)
}

// DependencyDegraded creates a dependency degraded error.
func DependencyDegraded(dependency string, opts ...Option) *Error {
	opts = append([]Option{WithMetadata("dependency", dependency)}, opts...)
	return New(ErrCodeDependencyDegraded, fmt.Sprintf("%s is unavailable", dependency), opts...)
}

// Conflict creates a conflict error.
func Conflict(message string, opts ...Option) *Error {
	return New(ErrCodeConflict, message, opts...)
}

// RateLimited creates a rate limited error.
func RateLimited(message string, opts ...Option) *Error {
	return New(ErrCodeRateLimited, message, opts...)
}

// Timeout creates a timeout error.
func Timeout(message string, opts ...Option) *Error {
	return New(ErrCodeTimeout, message, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
