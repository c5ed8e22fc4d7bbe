package model

import (
	"errors"
	"fmt"
)

// Kind classifies errors raised by the agent core.
type Kind string

const (
	KindProviderUnavailable       Kind = "provider_unavailable"
	KindMalformedStructuredOutput Kind = "malformed_structured_output"
	KindStreamingUnsupported      Kind = "streaming_unsupported"
	KindToolDispatchFailed        Kind = "tool_dispatch_failed"
	KindAgentNotFound             Kind = "agent_not_found"
	KindAbstractBackendMisuse     Kind = "abstract_backend_misuse"
	KindMaxToolTurns              Kind = "max_tool_turns"
	KindDelegationDepth           Kind = "delegation_depth_exceeded"
	KindProvider                  Kind = "provider_error"
)

// Error is a classified error. Code carries the backend error code when the
// failure was reported by a provider.
type Error struct {
	Kind Kind
	Op   string
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can use errors.Is(err, model.ErrAgentNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrProviderUnavailable       = &Error{Kind: KindProviderUnavailable}
	ErrMalformedStructuredOutput = &Error{Kind: KindMalformedStructuredOutput}
	ErrStreamingUnsupported      = &Error{Kind: KindStreamingUnsupported}
	ErrToolDispatchFailed        = &Error{Kind: KindToolDispatchFailed}
	ErrAgentNotFound             = &Error{Kind: KindAgentNotFound}
	ErrAbstractBackendMisuse     = &Error{Kind: KindAbstractBackendMisuse}
	ErrMaxToolTurns              = &Error{Kind: KindMaxToolTurns}
	ErrDelegationDepth           = &Error{Kind: KindDelegationDepth}
	ErrProvider                  = &Error{Kind: KindProvider}
)

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
