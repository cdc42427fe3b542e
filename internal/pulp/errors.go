package pulp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBuildID is returned when a build id sanitizes to an empty
	// or invalid repository name segment.
	ErrInvalidBuildID = errors.New("invalid build id")

	// ErrInvalidConfiguration is returned when repository or distribution
	// name construction produces an empty value. This indicates a logic
	// error, not a retryable condition.
	ErrInvalidConfiguration = errors.New("invalid repository configuration")

	// ErrNotFoundAfterCreate is returned when a create call succeeds but
	// the response wrapper contains no resource.
	ErrNotFoundAfterCreate = errors.New("resource not found after create")

	// ErrUnexpectedResponse is returned when a create response matches
	// neither the direct-object nor the wrapped-list shape.
	ErrUnexpectedResponse = errors.New("unexpected response format")

	// ErrPollTimeout is returned by WaitForTask only when the deadline
	// passed and no task state was ever fetched.
	ErrPollTimeout = errors.New("timed out waiting for task")
)

// bodyLogLimit caps how much of an error response body is logged and
// carried in error values.
const bodyLogLimit = 500

// StatusError reports a non-2xx response from the Pulp API.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// ResponseError reports a response body that could not be parsed as JSON
// or did not match the expected schema.
type ResponseError struct {
	Op   string
	Body string
	Err  error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: invalid response: %v", e.Op, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
