package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed extraction
type ErrorKind string

const (
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindMalformed ErrorKind = "malformed_response"
	ErrorKindBackend   ErrorKind = "backend"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// ProviderError is the only error type an adapter returns from Extract
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError, taking the message from err
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: provider, Kind: kind, Message: msg, Err: err}
}

// AsProviderError converts any error into a ProviderError.
// Cancellation is reported as such, an expired deadline such as an HTTP client
// timeout is a network error, everything else keeps the fallback kind.
func AsProviderError(provider string, fallback ErrorKind, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(provider, ErrorKindCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, ErrorKindNetwork, err)
	}
	return NewProviderError(provider, fallback, err)
}

// ConfigurationError reports a missing or invalid provider setting
type ConfigurationError struct {
	Provider string
	Setting  string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("provider %q: %s: %s", e.Provider, e.Setting, e.Reason)
	}
	return fmt.Sprintf("provider %q: required setting %s is missing", e.Provider, e.Setting)
}
