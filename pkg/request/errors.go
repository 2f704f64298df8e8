package request

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Sentinel errors for the failure classes a fetch can surface. Callers
// discriminate with errors.Is; wrapped causes stay reachable via Unwrap.
var (
	// ErrInvalidURL means the request URL could not be built or parsed.
	ErrInvalidURL = errors.New("invalid url")

	// ErrNoData means the backend answered 2xx with an empty body.
	ErrNoData = errors.New("no data in response")

	// ErrDecoding means a response body could not be decoded.
	ErrDecoding = errors.New("failed to decode response")

	// ErrNetworkUnavailable means the request never reached the backend.
	ErrNetworkUnavailable = errors.New("network connection unavailable")

	// ErrRequestCancelled means the attempt was cancelled, by its caller,
	// by a newer request of the same kind, or by a mass cancellation.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrRequestTimeout means the attempt outlived the request timeout.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrUnknown wraps failures that fit no other class.
	ErrUnknown = errors.New("unknown error")
)

// StatusError reports a non-2xx response without a structured message.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: status %d", e.Code)
}

// APIError reports an error message supplied by the backend.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}

// Classify maps a transport failure onto the taxonomy above. Errors that
// already belong to it pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if classified(err) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ErrRequestCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrRequestTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, urlErr.Err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, netErr)
	}

	return fmt.Errorf("%w: %v", ErrUnknown, err)
}

func classified(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidURL, ErrNoData, ErrDecoding, ErrNetworkUnavailable,
		ErrRequestCancelled, ErrRequestTimeout, ErrUnknown,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	var statusErr *StatusError
	var apiErr *APIError
	return errors.As(err, &statusErr) || errors.As(err, &apiErr)
}
