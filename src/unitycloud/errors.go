package unitycloud

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized indicates a rejected API key or an org/project the key
	// cannot see (HTTP 401/403). Never retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates an org, project, build target, or build that does
	// not resolve (HTTP 404). Never retried.
	ErrNotFound = errors.New("not found")

	// ErrTransport indicates a network failure or a 5xx from the service.
	// Retried during polling, fatal elsewhere.
	ErrTransport = errors.New("transport failure")

	// ErrTargetExists is returned by CreateBuildTarget when the service
	// reports the generated name is already in use. Callers reuse the
	// existing target.
	ErrTargetExists = errors.New("build target name already in use")
)

// APIError carries the status code and response body of a failed API call so
// the entry point can log which call and which id caused the failure.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d content=%s url=%s", e.StatusCode, e.Body, e.URL)
}

// Unwrap classifies the status code into the error taxonomy so callers can
// use errors.Is against the sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrTransport
	}
	return nil
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts API errors to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrUnauthorized) {
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Check that the Unity Cloud Build API key is valid and that the org id matches the key.\n  - Set UCB_API_KEY (Unity Dashboard > Cloud Build > Settings > API)\n  - Org and project ids with spaces must use hyphens instead",
			Err:     err,
		}
	}

	if errors.Is(err, ErrNotFound) {
		return &UserError{
			Message: "Org, project, or build target not found",
			Hint:    "Check the ids against the project/target listing logged above.",
			Err:     err,
		}
	}

	return err
}
