package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Kind classifies a failed remote call.
type Kind int

const (
	// KindUnexpected covers everything not attributable to the service:
	// network faults, cancellation, missing configuration.
	KindUnexpected Kind = iota
	// KindRateLimited means the service throttled the request.
	KindRateLimited
	// KindRemoteService means the service rejected or failed the request
	// for a reason other than throttling.
	KindRemoteService
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindRemoteService:
		return "remote service error"
	default:
		return "unexpected error"
	}
}

// Sentinel errors. A *Error matches the sentinel of its Kind under errors.Is.
var (
	ErrRateLimited   = errors.New("aoai: rate limited")
	ErrRemoteService = errors.New("aoai: remote service error")
	ErrUnexpected    = errors.New("aoai: unexpected error")

	// ErrNotConfigured is wrapped when a call needs a setting that was
	// missing at construction.
	ErrNotConfigured = errors.New("aoai: not configured")

	errEmptyResponse = errors.New("empty response")
)

// Error is the failure returned by Complete and Embed.
type Error struct {
	Op         string        // "complete" or "embed"
	Kind       Kind          //
	StatusCode int           // HTTP status, 0 when no response was received
	RetryAfter time.Duration // server wait hint, 0 when absent or unusable
	Retried    bool          // a rate-limit retry was already spent on this call
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("aoai: %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Retried {
		msg += " after retry"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrRemoteService:
		return e.Kind == KindRemoteService
	case ErrUnexpected:
		return e.Kind == KindUnexpected
	}
	return false
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// RetryAfter returns the server wait hint carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// classify maps an attempt's error onto the failure taxonomy. hint supplies
// the wait hint captured from the attempt's 429 response.
func classify(op string, err error, hint *waitHint) *Error {
	e := &Error{Op: op, Kind: KindUnexpected, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		e.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		e.StatusCode = reqErr.HTTPStatusCode
	case errors.Is(err, errEmptyResponse):
		e.Kind = KindRemoteService
		return e
	default:
		return e
	}

	if e.StatusCode == http.StatusTooManyRequests {
		e.Kind = KindRateLimited
		if hint != nil {
			e.RetryAfter, _ = hint.wait()
		}
		return e
	}
	e.Kind = KindRemoteService
	return e
}
