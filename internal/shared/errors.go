package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthExpired  = fmt.Errorf("authorization expired, re-link the account")
	ErrUnlinked     = fmt.Errorf("no linked spotify account")
	ErrInvalidCode  = fmt.Errorf("invalid authorization code")
	ErrInvalidState = fmt.Errorf("invalid or expired oauth state")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// Provider errors
	ErrRateLimited         = fmt.Errorf("rate limited by provider")
	ErrUpstreamUnavailable = fmt.Errorf("upstream service unavailable")
	ErrMalformedResponse   = fmt.Errorf("malformed provider response")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidPrompt   = fmt.Errorf("invalid prompt")
	ErrEmptySelection  = fmt.Errorf("no tracks selected")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Lookup errors
	ErrUserNotFound  = fmt.Errorf("user not found")
	ErrTokenNotFound = fmt.Errorf("token not found")
)

// Kinds reported to API callers.
const (
	KindAuthExpired         = "auth_expired"
	KindUnlinked            = "unlinked"
	KindRateLimited         = "rate_limited"
	KindUpstreamUnavailable = "upstream_unavailable"
	KindMalformedResponse   = "malformed_response"
	KindEmptySelection      = "empty_selection"
	KindInvalidCode         = "invalid_code"
	KindInvalidInput        = "invalid_input"
	KindNotFound            = "not_found"
	KindInternal            = "internal"
)

var kinds = []struct {
	target error
	kind   string
	status int
}{
	{ErrAuthExpired, KindAuthExpired, http.StatusUnauthorized},
	{ErrUnlinked, KindUnlinked, http.StatusUnauthorized},
	{ErrRateLimited, KindRateLimited, http.StatusTooManyRequests},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, KindUpstreamUnavailable, http.StatusServiceUnavailable},
	{ErrMalformedResponse, KindMalformedResponse, http.StatusBadGateway},
	{ErrEmptySelection, KindEmptySelection, http.StatusBadRequest},
	{ErrInvalidCode, KindInvalidCode, http.StatusBadRequest},
	{ErrInvalidState, KindInvalidCode, http.StatusBadRequest},
	{ErrInvalidPrompt, KindInvalidInput, http.StatusBadRequest},
	{ErrInvalidInput, KindInvalidInput, http.StatusBadRequest},
	{ErrMissingArgument, KindInvalidInput, http.StatusBadRequest},
	{ErrInvalidArgument, KindInvalidInput, http.StatusBadRequest},
	{ErrUserNotFound, KindNotFound, http.StatusNotFound},
}

// Kind returns the machine-checkable kind for the first known sentinel in err's chain.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus returns the response status code for err.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// WrapUpstream annotates a provider call failure with [ErrUpstreamUnavailable].
//
// Errors already carrying a taxonomy sentinel are returned unchanged. Deadline and cancellation
// errors are treated as unavailability.
func WrapUpstream(provider string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindInternal {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out: %v", ErrUpstreamUnavailable, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, provider, err)
}
