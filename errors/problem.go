package errors

import (
	"strings"
	"time"
)

// ProblemTypePrefix is the stable URI prefix for machine-checkable problem
// types. The full type URI is the prefix plus the kebab-cased error code.
const ProblemTypePrefix = "urn:agentdir:problem:"

// Problem is the uniform error object returned to callers. It follows the
// RFC 7807 shape with a request id extension so failures can be correlated
// with server-side logs.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// ProblemType returns the stable type URI for an error code.
func ProblemType(code ErrorCode) string {
	kebab := strings.ReplaceAll(strings.ToLower(string(code)), "_", "-")
	return ProblemTypePrefix + kebab
}

// ToProblem converts any error into the uniform problem object. Internal
// errors are sanitized: the detail carries only the generic description,
// never the underlying cause.
func ToProblem(err error, instance string) Problem {
	code := ErrCodeInternal
	detail := ErrCodeInternal.Description()
	requestID := ""
	ts := time.Now()

	var dirErr *Error
	if e := AsDirectoryError(err); e != nil {
		dirErr = e.(*Error)
		code = dirErr.Code()
		requestID = dirErr.RequestID()
		if !dirErr.Timestamp().IsZero() {
			ts = dirErr.Timestamp()
		}
		if code.DefaultCategory() == CategoryInternal {
			detail = code.Description()
		} else {
			detail = dirErr.Error()
		}
	}

	return Problem{
		Type:      ProblemType(code),
		Title:     code.Description(),
		Status:    code.HTTPStatus(),
		Detail:    detail,
		Instance:  instance,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		RequestID: requestID,
	}
}
