// Package provider holds the error taxonomy and HTTP plumbing shared by the
// DocuSign token and envelope clients.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotAuthorized means no usable token exists; recovery requires an interactive OAuth grant
	ErrNotAuthorized = errors.New("docusign: not authorized")

	// ErrRefreshFailed means the refresh token was rejected or the exchange did not complete
	ErrRefreshFailed = errors.New("docusign: token refresh failed")

	// ErrRateLimited means the provider is throttling requests
	ErrRateLimited = errors.New("docusign: rate limited")

	// ErrAccountMismatch means the token belongs to a different account than configured
	ErrAccountMismatch = errors.New("docusign: account mismatch")

	// ErrInvalidEnvelopeState means the envelope status forbids the requested operation
	ErrInvalidEnvelopeState = errors.New("docusign: invalid envelope state")

	// ErrTransport covers network failures, timeouts and provider 5xx responses
	ErrTransport = errors.New("docusign: transport error")

	// ErrAuthentication means the provider rejected the bearer token
	ErrAuthentication = errors.New("docusign: authentication rejected")

	// ErrValidation means the provider rejected the request payload
	ErrValidation = errors.New("docusign: request rejected")

	// ErrNotFound means the requested resource does not exist at the provider
	ErrNotFound = errors.New("docusign: not found")
)

// Error is a classified provider failure
type Error struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": " + e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err under kind, keeping any provider detail already attached
func Wrap(kind error, err error) *Error {
	pe := &Error{Kind: kind, Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		pe.StatusCode = inner.StatusCode
		pe.Code = inner.Code
		pe.Message = inner.Message
		pe.RetryAfter = inner.RetryAfter
	}
	return pe
}

// Provider error codes that indicate an invalid or expired bearer token
var authErrorCodes = map[string]bool{
	"USER_AUTHENTICATION_FAILED":    true,
	"AUTHORIZATION_INVALID_TOKEN":   true,
	"PARTNER_AUTHENTICATION_FAILED": true,
	"INVALID_TOKEN_FORMAT":          true,
}

var accountErrorCodes = map[string]bool{
	"USER_LACKS_MEMBERSHIP":                     true,
	"USER_DOES_NOT_BELONG_TO_SPECIFIED_ACCOUNT": true,
	"ACCOUNT_LACKS_PERMISSIONS":                 true,
	"INVALID_ACCOUNT_ID":                        true,
}

var rateLimitCodes = map[string]bool{
	"HOURLY_APIINVOCATION_LIMIT_EXCEEDED": true,
	"BURST_APIINVOCATION_LIMIT_EXCEEDED":  true,
}

var notFoundCodes = map[string]bool{
	"ENVELOPE_DOES_NOT_EXIST": true,
}

// ClassifyStatus maps an HTTP status and provider error code to a kind sentinel
func ClassifyStatus(status int, code string) error {
	code = strings.ToUpper(code)
	switch {
	case authErrorCodes[code] || status == http.StatusUnauthorized:
		return ErrAuthentication
	case rateLimitCodes[code] || status == http.StatusTooManyRequests:
		return ErrRateLimited
	case accountErrorCodes[code] || status == http.StatusForbidden:
		return ErrAccountMismatch
	case notFoundCodes[code] || status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrTransport
	default:
		return ErrValidation
	}
}

// TransportFailure classifies a failed round trip (no response)
func TransportFailure(err error) *Error {
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{Kind: ErrTransport, Message: msg, Err: err}
}

// IsAuthError reports whether err should trigger a forced refresh and retry
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// RetryAfterOf extracts the retry hint from a classified error
func RetryAfterOf(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// ParseRetryAfter reads Retry-After (seconds or HTTP date) or DocuSign's X-RateLimit-Reset (unix seconds)
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		var secs int64
		if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := at.Sub(now); d > 0 {
				return d.Round(time.Second)
			}
			return 0
		}
	}
	if v := strings.TrimSpace(h.Get("X-RateLimit-Reset")); v != "" {
		var reset int64
		if _, err := fmt.Sscanf(v, "%d", &reset); err == nil {
			if d := time.Unix(reset, 0).Sub(now); d > 0 {
				return d.Round(time.Second)
			}
		}
	}
	return 0
}
