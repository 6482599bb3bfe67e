package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind categorizes provider failures so the planning loop can decide
// between retrying, feeding the failure back, or aborting.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimited
	KindServerError
	KindSafetyBlocked
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindSafetyBlocked:
		return "safety_blocked"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error is the categorized error returned by every adapter.
type Error struct {
	Kind     Kind
	Provider Provider
	// RetryAfter is the provider's wait hint for rate limits, zero if absent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s %s (retry after %s): %v", e.Provider, e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the category of err. Uncategorized errors are KindOther,
// except context deadline errors which are KindTimeout.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}

// RetryAfterOf returns the wait hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// kindForStatus maps an HTTP status code to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerError
	default:
		return KindOther
	}
}

// wrap builds an Error unless err is already categorized.
func wrap(provider Provider, kind Kind, retry time.Duration, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: provider, RetryAfter: retry, Err: err}
}

var retryDelayText = regexp.MustCompile(`retry_delay\s*\{\s*seconds:\s*(\d+)\s*\}`)

// retryHintFromText extracts a "retry_delay { seconds: N }" hint. One second
// is added so the retry lands after the window reopens.
func retryHintFromText(msg string) time.Duration {
	m := retryDelayText.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return time.Duration(n+1) * time.Second
}

// retryHintFromHeader reads the standard Retry-After header (seconds form).
func retryHintFromHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n*float64(time.Second)) + time.Second
}
