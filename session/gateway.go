package session

import "context"

// LoginResult is what the identity upstream returns on a successful login:
// the token pair plus the user's claims.
type LoginResult struct {
	Credentials Credentials
	Profile     *Profile
}

// Gateway is the identity upstream the manager authenticates against. Every
// call returns an error for transport failures, non-success status codes,
// and malformed payloads; the manager maps those onto its own taxonomy.
type Gateway interface {
	Login(ctx context.Context, identifier, secret string) (*LoginResult, error)
	Validate(ctx context.Context, accessToken string) (bool, error)
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}
