// Package brainerr implements the closed error-kind taxonomy: every
// failure the pipeline can produce downgrades to one of these kinds, each
// carrying a fixed user-safe message that never leaks internal ids, stack
// traces, database error text, or model names. Mirrors the sentinel-error-
// plus-wrapper-struct shape of pkg/config's ValidationError/LoadError,
// generalized from config-loading to pipeline-wide use.
package brainerr

import (
	"errors"
	"fmt"

	"github.com/codeready-toolchain/brain/pkg/config"
)

// Sentinel errors, one per taxonomy entry, so callers can errors.Is against
// a kind without constructing a TaxonomyError.
var (
	ErrInputInvalid        = errors.New("input invalid")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("timed out")
	ErrPolicyBlocked       = errors.New("blocked by policy")
	ErrParameterInvalid    = errors.New("parameter invalid")
	ErrHandlerInternal     = errors.New("handler internal error")
	ErrStateConflict       = errors.New("state conflict")
)

// userMessages are the fixed, PII-free sentences surfaced to the chat room
// for each error kind.
var userMessages = map[config.ErrorKind]string{
	config.ErrorKindInputInvalid:        "Sorry, I couldn't understand that message.",
	config.ErrorKindUpstreamUnavailable: "I'm having trouble reaching one of my services right now — please try again shortly.",
	config.ErrorKindTimeout:             "Still working on that — I'll let you know when it's done.",
	config.ErrorKindPolicyBlocked:       "I can't do that one — it runs against a policy I have to follow.",
	config.ErrorKindParameterInvalid:    "I need a bit more information before I can do that.",
	config.ErrorKindHandlerInternal:     "Something went wrong on my end. I've logged it.",
	config.ErrorKindStateConflict:       "I found conflicting state for this conversation and reset it — please try again.",
}

var sentinels = map[config.ErrorKind]error{
	config.ErrorKindInputInvalid:        ErrInputInvalid,
	config.ErrorKindUpstreamUnavailable: ErrUpstreamUnavailable,
	config.ErrorKindTimeout:             ErrTimeout,
	config.ErrorKindPolicyBlocked:       ErrPolicyBlocked,
	config.ErrorKindParameterInvalid:    ErrParameterInvalid,
	config.ErrorKindHandlerInternal:     ErrHandlerInternal,
	config.ErrorKindStateConflict:       ErrStateConflict,
}

// TaxonomyError wraps an underlying error with its §7 kind and the fixed
// user-safe sentence Post should relay. Err is retained only for logging —
// never for display.
type TaxonomyError struct {
	Kind        config.ErrorKind
	UserMessage string
	Err         error
}

func (e *TaxonomyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TaxonomyError) Unwrap() error {
	if sentinel, ok := sentinels[e.Kind]; ok {
		return sentinel
	}
	return e.Err
}

// New builds a TaxonomyError for kind, wrapping err and filling in the
// fixed user-facing sentence for that kind.
func New(kind config.ErrorKind, err error) *TaxonomyError {
	return &TaxonomyError{Kind: kind, UserMessage: userMessages[kind], Err: err}
}

// Wrap is New but with a caller-supplied context string folded into Err,
// for the common "doing X: underlying" pattern.
func Wrap(kind config.ErrorKind, context string, err error) *TaxonomyError {
	return New(kind, fmt.Errorf("%s: %w", context, err))
}

// KindOf extracts the taxonomy kind from err if it is (or wraps) a
// TaxonomyError, defaulting to handler_internal — the safest fallback,
// since an un-taxonomized error must never leak its raw text to a user.
func KindOf(err error) config.ErrorKind {
	var te *TaxonomyError
	if errors.As(err, &te) {
		return te.Kind
	}
	return config.ErrorKindHandlerInternal
}

// UserMessageFor returns the fixed sentence for err, falling back to the
// handler_internal sentence when err carries no taxonomy.
func UserMessageFor(err error) string {
	var te *TaxonomyError
	if errors.As(err, &te) && te.UserMessage != "" {
		return te.UserMessage
	}
	return userMessages[config.ErrorKindHandlerInternal]
}
