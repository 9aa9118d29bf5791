// Package apperr defines the error taxonomy shared by the client: failures
// resolved locally before any network call, and failures reported by (or on
// the way to) the backend.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError reports a form field that failed client-side checks.
// It never reaches the network layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthError is returned when the server rejected the bearer credential.
// By the time a caller sees it the session has already been invalidated.
type AuthError struct {
	Method string
	Path   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (401) on %s %s", e.Method, e.Path)
}

// NotFoundOrStaleError reports an operation on an entity the server (or the
// local view) no longer recognizes.
type NotFoundOrStaleError struct {
	Entity string
	ID     string
}

func (e *NotFoundOrStaleError) Error() string {
	return fmt.Sprintf("%s %s not found or no longer available", e.Entity, e.ID)
}

// NetworkOrTimeoutError reports a call that produced no response, either
// because the transport failed or the per-call timeout elapsed.
type NetworkOrTimeoutError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkOrTimeoutError) Error() string {
	return fmt.Sprintf("no response for %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkOrTimeoutError) Unwrap() error { return e.Err }

// InvalidTransition reports a match decision the client refuses to send
// because the current status does not allow it.
type InvalidTransition struct {
	MatchID  string
	Status   string
	Decision string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s match %s in status %q", e.Decision, e.MatchID, e.Status)
}

// OperationInProgress reports a duplicate submission while an identical
// operation for the same key is still awaiting its response.
type OperationInProgress struct {
	Operation string
	Key       string
}

func (e *OperationInProgress) Error() string {
	return fmt.Sprintf("%s already in progress for %s", e.Operation, e.Key)
}

// ServerError is any other non-2xx response. Message carries the backend's
// own human-readable message when it sent one.
type ServerError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d) on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuth reports whether err (or any error in its chain) is an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundOrStaleError.
func IsNotFound(err error) bool {
	var target *NotFoundOrStaleError
	return errors.As(err, &target)
}

// IsNetwork reports whether err (or any error in its chain) is a NetworkOrTimeoutError.
func IsNetwork(err error) bool {
	var target *NetworkOrTimeoutError
	return errors.As(err, &target)
}

// IsInvalidTransition reports whether err (or any error in its chain) is an InvalidTransition.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransition
	return errors.As(err, &target)
}

// IsInProgress reports whether err (or any error in its chain) is an OperationInProgress.
func IsInProgress(err error) bool {
	var target *OperationInProgress
	return errors.As(err, &target)
}

// Message returns the text a view shows for err. Server-provided messages
// win over generic wording so users see what the backend told them.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation *ValidationError
		auth       *AuthError
		notFound   *NotFoundOrStaleError
		network    *NetworkOrTimeoutError
		transition *InvalidTransition
		inProgress *OperationInProgress
		server     *ServerError
	)

	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &auth):
		return "Your session has expired. Please sign in again."
	case errors.As(err, &notFound):
		return "This item is no longer available. Refresh and try again."
	case errors.As(err, &network):
		return "Could not reach the server. Check your connection and try again."
	case errors.As(err, &transition):
		return "This match can no longer be changed."
	case errors.As(err, &inProgress):
		return "Still working on your previous request..."
	case errors.As(err, &server):
		if server.Message != "" {
			return server.Message
		}
		return "Something went wrong. Please try again."
	default:
		return err.Error()
	}
}
