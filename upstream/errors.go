package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure marks transport-level failures: the upstream could
	// not be reached or did not produce a response.
	ErrNetworkFailure = errors.New("upstream unreachable")

	// ErrMalformedResponse marks a response that reported success but is
	// missing required fields or cannot be decoded.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// StatusError is a response whose envelope carried a non-success status
// code. The upstream encodes the failure reason in the code and an optional
// human-readable message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Message)
}
