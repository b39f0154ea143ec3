package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfigMissing  = errors.New("appforge-cli configuration missing")
	ErrBuildIDMissing = errors.New("build ID should not be empty")
)

// codesignUnavailableMessage replaces raw infrastructure errors when the
// signing backend rejects the request with a forbidden response. The raw
// server text stays in the trace log only.
const codesignUnavailableMessage = "The Code Signing Assistance service is temporary unavailable. Please try again later."

// ValidationError reports bad local input. It is raised before any network
// call, so it carries no build ID.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// RemoteOperationFailedError is raised when the server reached a terminal
// state without producing any usable output. Message is sanitized for the
// user; the raw server text is logged at trace level by the caller.
type RemoteOperationFailedError struct {
	BuildID string
	Message string
}

func (e RemoteOperationFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote operation %s failed without output", e.BuildID)
	}
	return fmt.Sprintf("remote operation %s failed: %s", e.BuildID, e.Message)
}

// OperationTimeoutError is raised when the polling budget is exhausted. A
// best-effort result fetch still happens before it surfaces to the caller.
type OperationTimeoutError struct {
	BuildID string
	Budget  time.Duration
}

func (e OperationTimeoutError) Error() string {
	return fmt.Sprintf("remote operation %s did not finish within %s", e.BuildID, e.Budget)
}

// TransientNetworkError wraps a poll or transfer failure that is retried
// within the polling budget.
type TransientNetworkError struct {
	BuildID string
	Err     error
}

func (e TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error for operation %s: %v", e.BuildID, e.Err)
}

func (e TransientNetworkError) Unwrap() error {
	return e.Err
}

// annotate attaches the build ID to an error coming back from a collaborator
// so it can be correlated with the server-side logs.
func annotate(buildID string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("operation %s: %w", buildID, err)
}
