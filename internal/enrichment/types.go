package enrichment

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// FailureClass classifies why the service produced no usable suggestion.
type FailureClass string

const (
	// FailureNoSuggestion means the response was well formed but carried no text.
	FailureNoSuggestion FailureClass = "no_suggestion"
	// FailureUnparsable means the response payload could not be decoded.
	FailureUnparsable FailureClass = "unparsable_response"
	// FailureTransport means the request never produced a response.
	FailureTransport FailureClass = "transport_error"
)

// FailureError is returned by drivers for every non-success outcome.
type FailureError struct {
	Err    error
	Class  FailureClass
	Detail string
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("enrichment %s", e.Class)
	}
	return fmt.Sprintf("enrichment %s: %s", e.Class, e.Detail)
}

// Unwrap returns the underlying error.
func (e *FailureError) Unwrap() error {
	return e.Err
}

// NoSuggestion returns a no-suggestion failure.
func NoSuggestion(detail string) *FailureError {
	return &FailureError{Class: FailureNoSuggestion, Detail: detail}
}

// Unparsable returns an unparsable-response failure carrying the raw payload.
func Unparsable(detail string, err error) *FailureError {
	return &FailureError{Class: FailureUnparsable, Detail: detail, Err: err}
}

// Transport wraps a transport-level failure.
func Transport(err error) *FailureError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &FailureError{Class: FailureTransport, Detail: detail, Err: err}
}

// ClassOf returns the failure class of err. Errors that are not
// FailureErrors are treated as transport failures.
func ClassOf(err error) FailureClass {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return FailureTransport
}

// maxSentinelDetail bounds how much of a raw payload lands in the cache.
const maxSentinelDetail = 500

// Sentinel renders the suggestion text stored in place of a failed
// enrichment. The text keeps the failure class visible for diagnostics.
func Sentinel(err error) string {
	var detail string
	var fe *FailureError
	if errors.As(err, &fe) {
		detail = fe.Detail
	} else if err != nil {
		detail = err.Error()
	}
	if len(detail) > maxSentinelDetail {
		cut := maxSentinelDetail
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut] + "..."
	}

	switch ClassOf(err) {
	case FailureNoSuggestion:
		return "No suggestion provided."
	case FailureUnparsable:
		return "Failed to parse response. Response was: " + detail
	default:
		return "Enrichment request failed: " + detail
	}
}
