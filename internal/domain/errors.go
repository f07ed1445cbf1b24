package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what the caller can do about it.
type Kind string

const (
	// KindConfiguration means an external service is missing or has invalid
	// credentials. Retrying will not help until an operator fixes it.
	KindConfiguration Kind = "not_configured"
	// KindTransient covers network errors, timeouts, rate limits and 5xx
	// responses from an external service. The caller may retry.
	KindTransient Kind = "transient"
	// KindValidation means the request itself is unusable (no project, empty query).
	KindValidation Kind = "validation"
	// KindInvalidState means the operation is not allowed for the item's current
	// state, e.g. editing or re-publishing a published story.
	KindInvalidState Kind = "invalid_state"
	KindDuplicate    Kind = "duplicate"
	KindNotFound     Kind = "not_found"
)

// Error is the typed error surfaced by services. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, domain.ErrInvalidState) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrTransient     = &Error{Kind: KindTransient}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrDuplicate     = &Error{Kind: KindDuplicate}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

func NotConfigured(service string) *Error {
	return &Error{Kind: KindConfiguration, Op: service, Message: service + " not configured"}
}

func Transient(op, message string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: message, Err: err}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

func Duplicate(message string) *Error {
	return &Error{Kind: KindDuplicate, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// UnrecordedIssueError means a tracker issue was created for a story but the
// story could not be marked published. Publishing it again creates a second issue.
type UnrecordedIssueError struct {
	ExternalKey string
	Err         error
}

func (e *UnrecordedIssueError) Error() string {
	return fmt.Sprintf("issue %s created but not recorded on the story: %v", e.ExternalKey, e.Err)
}

func (e *UnrecordedIssueError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user-facing message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
