package chat

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/genai"

	"github.com/folio-writing/folio/internal/backoff"
)

var (
	retryablePattern = regexp.MustCompile(`(?i)overloaded|unavailable|resource.?exhausted|quota.?exceeded`)
	rateLimitPattern = regexp.MustCompile(`(?i)resource.?exhausted|quota.?exceeded`)
	overloadPattern  = regexp.MustCompile(`(?i)overloaded|unavailable`)
)

// UpstreamError is a failure reported by the completion service.
type UpstreamError struct {
	// Status is the HTTP status code, zero when unknown.
	Status int

	// Message is the service's error message.
	Message string

	Err error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// upstreamFromGenai converts a genai API error, keeping other errors as they are.
func upstreamFromGenai(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Status: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &UpstreamError{Status: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return err
}

// statusAndMessage extracts the fields used for classification.
func statusAndMessage(err error) (int, string) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		msg := upstream.Message
		if upstream.Err != nil {
			msg += " " + upstream.Err.Error()
		}
		return upstream.Status, msg
	}
	return 0, err.Error()
}

// IsRetryable reports whether a completion failure is transient:
// HTTP 429 or 503, or an overload or quota message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	status, msg := statusAndMessage(err)
	return status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable ||
		retryablePattern.MatchString(msg)
}

// IsRateLimit reports whether err means the caller is over quota.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	status, msg := statusAndMessage(err)
	return status == http.StatusTooManyRequests || rateLimitPattern.MatchString(msg)
}

// IsOverloaded reports whether err means the service is temporarily busy.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	status, msg := statusAndMessage(err)
	return status == http.StatusServiceUnavailable || overloadPattern.MatchString(msg)
}

// Delay is the wait after the given failed attempt: 1.5s, 3s, ...
func Delay(attempt int) time.Duration {
	return backoff.DefaultPolicy().Delay(attempt)
}

// retryReason labels a retry for metrics.
func retryReason(err error) string {
	switch {
	case IsRateLimit(err):
		return "rate_limit"
	case IsOverloaded(err):
		return "overloaded"
	default:
		return "other"
	}
}
