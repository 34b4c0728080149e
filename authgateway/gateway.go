// Package authgateway implements session.Gateway against the identity
// upstream's wire protocol: multipart form POSTs for login and token
// validation, a query-string GET for refresh, and the shared response
// envelope with its status-code sentinel.
package authgateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/spasys/billing-console/session"
	"github.com/spasys/billing-console/upstream"
)

// Default endpoint paths, overridable because deployments sometimes route
// the auth endpoints through a different gateway than the billing API.
const (
	DefaultLoginPath    = "/login"
	DefaultValidatePath = "/ident"
	DefaultRefreshPath  = "/refresh"
)

var _ session.Gateway = (*Client)(nil)

// Client talks to the identity upstream over HTTP.
type Client struct {
	http         *http.Client
	baseURL      string
	loginPath    string
	validatePath string
	refreshPath  string
	log          zerolog.Logger
}

// Option modifies the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPaths overrides the endpoint paths. A path may be an absolute URL, in
// which case it is used verbatim instead of being resolved against the base
// URL. Empty strings keep the defaults.
func WithPaths(login, validate, refresh string) Option {
	return func(c *Client) {
		if strings.TrimSpace(login) != "" {
			c.loginPath = login
		}
		if strings.TrimSpace(validate) != "" {
			c.validatePath = validate
		}
		if strings.TrimSpace(refresh) != "" {
			c.refreshPath = refresh
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the identity upstream at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[authgateway.New] baseURL is required")
	}

	c := &Client{
		http:         &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		loginPath:    DefaultLoginPath,
		validatePath: DefaultValidatePath,
		refreshPath:  DefaultRefreshPath,
		log:          zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// authPayload is the login response data: the user's claims plus the token
// pair nested under Tokens.
type authPayload struct {
	session.Profile
	Tokens tokenPayload `json:"Tokens"`
}

type tokenPayload struct {
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken,omitempty"`
}

type validationPayload struct {
	Role       string `json:"Papel,omitempty"`
	Identifier string `json:"Identificador,omitempty"`
	Valid      bool   `json:"Valido"`
}

// Login posts the identifier/secret pair as a multipart form.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*session.LoginResult, error) {
	envelope, err := c.postForm(ctx, c.loginPath, map[string]string{
		"ident": identifier,
		"senha": secret,
	})
	if err != nil {
		return nil, fmt.Errorf("[Client.Login] %w", err)
	}
	if err := envelope.Err(); err != nil {
		return nil, fmt.Errorf("[Client.Login] %w", err)
	}

	var payload authPayload
	if err := envelope.DecodeData(&payload); err != nil {
		return nil, fmt.Errorf("[Client.Login] %w", err)
	}
	if strings.TrimSpace(payload.Tokens.AccessToken) == "" {
		return nil, fmt.Errorf("[Client.Login] %w: missing access token", upstream.ErrMalformedResponse)
	}

	profile := payload.Profile
	return &session.LoginResult{
		Credentials: session.Credentials{
			AccessToken:  payload.Tokens.AccessToken,
			RefreshToken: payload.Tokens.RefreshToken,
		},
		Profile: &profile,
	}, nil
}

// Validate posts the access token and returns the upstream's verdict.
func (c *Client) Validate(ctx context.Context, accessToken string) (bool, error) {
	envelope, err := c.postForm(ctx, c.validatePath, map[string]string{
		"jwt": accessToken,
	})
	if err != nil {
		return false, fmt.Errorf("[Client.Validate] %w", err)
	}
	if err := envelope.Err(); err != nil {
		return false, fmt.Errorf("[Client.Validate] %w", err)
	}

	var payload validationPayload
	if err := envelope.DecodeData(&payload); err != nil {
		return false, fmt.Errorf("[Client.Validate] %w", err)
	}
	return payload.Valid, nil
}

// Refresh exchanges the refresh token for a new credential pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, errors.New("[Client.Refresh] missing refresh token")
	}

	target := c.resolveTarget(c.refreshPath) + "?" + url.Values{"r": {refreshToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("[Client.Refresh] build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	envelope, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("[Client.Refresh] %w", err)
	}
	if err := envelope.Err(); err != nil {
		return nil, fmt.Errorf("[Client.Refresh] %w", err)
	}

	var payload tokenPayload
	if err := envelope.DecodeData(&payload); err != nil {
		return nil, fmt.Errorf("[Client.Refresh] %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return nil, fmt.Errorf("[Client.Refresh] %w: missing access token", upstream.ErrMalformedResponse)
	}

	return &session.Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}, nil
}

func (c *Client) postForm(ctx context.Context, path string, fields map[string]string) (*upstream.Envelope, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write field %q: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveTarget(path), &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "text/plain")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*upstream.Envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrNetworkFailure, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", upstream.ErrNetworkFailure, resp.StatusCode)
	}

	envelope, err := upstream.DecodeEnvelope(resp.Body)
	if err != nil {
		c.log.Debug().Err(err).Str("url", req.URL.String()).Msg("undecodable auth response")
		return nil, err
	}
	return envelope, nil
}

// resolveTarget turns an endpoint path into a full URL. Absolute URLs pass
// through untouched; relative paths are joined to the base URL.
func (c *Client) resolveTarget(path string) string {
	path = strings.TrimSpace(path)
	if isAbsoluteURL(path) {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func isAbsoluteURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
