package sheets

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedResponse = errors.New("malformed sheet response")
	ErrBackendOutdated   = errors.New("backend script is outdated")
)

// outdatedMarkers are substrings the Apps Script deployment emits when the
// published version lacks an action the client relies on.
var outdatedMarkers = []string{"Unknown action", "script is outdated", "is not defined"}

// BackendError is a failure reported by the script endpoint itself, or a
// response that could not be read as a result at all.
type BackendError struct {
	Message  string
	Outdated bool
	Status   int
}

func newBackendError(message string, status int) *BackendError {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "backend error"
	}
	outdated := false
	for _, marker := range outdatedMarkers {
		if strings.Contains(message, marker) {
			outdated = true
			break
		}
	}
	return &BackendError{Message: message, Outdated: outdated, Status: status}
}

func (e *BackendError) Error() string {
	if e.Outdated {
		return fmt.Sprintf("backend script is outdated; deploy a new version of the Apps Script web app (%s)", e.Message)
	}
	return e.Message
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendOutdated && e.Outdated
}

// TransportError wraps network failures and non-2xx responses.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
