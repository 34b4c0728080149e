// Package session owns the authenticated session lifecycle: login against
// the identity upstream, post-login token validation, durable persistence,
// a background refresh loop, and invalidation. The Manager is the only
// mutator of session state; everything else observes it through accessors
// and change notifications.
package session

import "strings"

// Session is the credential pair plus the profile attached at login. A
// session with an empty access token is not representable; absence of a
// session means logged out.
type Session struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	User         *Profile `json:"user,omitempty"`
}

// Valid reports whether the session carries a usable access token.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.AccessToken) != ""
}

// Clone returns a deep copy so callers can hold a session snapshot without
// racing the manager's in-place updates.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	return &out
}

// Profile holds the claims the identity upstream returns at login. It is
// treated as an immutable value once attached to a session.
type Profile struct {
	Identifier             string `json:"Identificador"`
	Bond                   string `json:"Vinculo,omitempty"`
	Name                   string `json:"Nome"`
	UserID                 int64  `json:"IdUsuario"`
	CostCenterID           int64  `json:"IdCC,omitempty"`
	ClientID               int64  `json:"IdCliente,omitempty"`
	SGUUsername            string `json:"UsernameSGU,omitempty"`
	CPF                    string `json:"Cpf,omitempty"`
	Email                  string `json:"Email,omitempty"`
	PasswordChangeRequired bool   `json:"RequerTrocaSenha,omitempty"`
}

// Credentials is the transient token pair returned by login and refresh. It
// is never persisted standalone, only folded into a Session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}
