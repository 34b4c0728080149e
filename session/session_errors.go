package session

import "errors"

var (
	// ErrAuthenticationRejected covers bad credentials and login responses
	// with a non-success status code.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrTokenInvalid means login succeeded but the validation step reported
	// the issued token as invalid.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrRefreshFailed means a background refresh errored or returned a
	// non-success status; the session has been cleared.
	ErrRefreshFailed = errors.New("session refresh failed")

	// ErrNotAuthenticated is returned by operations that need an active
	// session when there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
)
