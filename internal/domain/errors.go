package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend and session failures.
type ErrorKind string

const (
	ErrNetwork           ErrorKind = "network"
	ErrTimeout           ErrorKind = "timeout"
	ErrCredentialExpired ErrorKind = "credential_expired"
	ErrCredentialMissing ErrorKind = "credential_unavailable"
	ErrUnsupportedPair   ErrorKind = "unsupported_language_pair"
	ErrMalformed         ErrorKind = "malformed_response"
	ErrBackend           ErrorKind = "backend"
)

var (
	// ErrCredentialUnavailable is returned when no credential could be obtained
	// and there is no previous one to fall back to.
	ErrCredentialUnavailable = errors.New("credential unavailable")
	// ErrUnknownBackend is returned for backend ids missing from the registry.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrSuperseded is returned by a session replaced by a newer one in its slot.
	ErrSuperseded = errors.New("session superseded")
	// ErrConfigUnavailable marks a config store that could not be read.
	ErrConfigUnavailable = errors.New("config unavailable")
	// ErrEmptyText is returned when there is nothing to translate.
	ErrEmptyText = errors.New("text is empty")
)

// Retryable reports whether a session failing with this kind may be
// restarted once.
func (k ErrorKind) Retryable() bool {
	return k == ErrNetwork || k == ErrTimeout
}

// UserMessage is the user-facing text for an error kind.
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrNetwork:
		return "network error"
	case ErrTimeout:
		return "request timed out"
	case ErrCredentialExpired, ErrCredentialMissing:
		return "service authorization failed"
	case ErrUnsupportedPair:
		return "language not supported"
	case ErrMalformed:
		return "unexpected service response"
	default:
		return "translation service error"
	}
}

// BackendError is a session-level failure: every chunk's primary call failed
// with the same error class.
type BackendError struct {
	Kind    ErrorKind
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return e.Kind.UserMessage()
	}
	return fmt.Sprintf("%s: %s", e.Kind.UserMessage(), e.Message)
}

// Is matches another *BackendError of the same kind.
func (e *BackendError) Is(target error) bool {
	var other *BackendError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}
