// Package apperr defines the error taxonomy shared by the onboarding pipeline.
//
// Every failure that reaches the session controller is one of five kinds.
// The kind decides how the caller recovers: re-prompt, retry later, or pick
// another file. None of them is fatal to the process.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUpload
	KindAuthentication
	KindSubmission
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpload:
		return "upload"
	case KindAuthentication:
		return "authentication"
	case KindSubmission:
		return "submission"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "upload" or "login"
	Message string // user-facing text
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports missing or malformed user input.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Upload reports that every image host failed and no fallback was allowed.
func Upload(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpload, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Authentication reports an unknown account or a rejected secret.
func Authentication(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Submission reports a broadcast the ledger rejected.
func Submission(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindSubmission, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Transport reports a timeout or an unreachable endpoint.
func Transport(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage renders err as a single sentence suitable for the form.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Kind {
	case KindValidation:
		return e.Message
	case KindUpload:
		return "Image upload failed: " + e.Message + ". Try again or pick another file."
	case KindAuthentication:
		return "Login failed: " + e.Message + "."
	case KindSubmission:
		return "Failed to post: " + e.Message
	case KindTransport:
		return "The network is not responding right now. Please try again in a moment."
	default:
		return e.Error()
	}
}
