package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/spasys/billing-console/token"
	"github.com/spasys/billing-console/upstream"
)

// State identifies where the manager is in the session lifecycle.
type State string

const (
	StateLoggedOut      State = "logged_out"
	StateAuthenticating State = "authenticating"
	StateActive         State = "active"
	StateRefreshing     State = "refreshing"
)

// DefaultRefreshInterval is how often the background refresh fires when a
// refresh token is present.
const DefaultRefreshInterval = 60 * time.Second

// Change is delivered to subscribers whenever the session transitions.
// Cause is set when a failure forced the transition (e.g. a refresh failure
// forcing logout); it is nil for transitions the caller requested.
type Change struct {
	State State
	Cause error
}

// Manager orchestrates login, post-login validation, persistence, the
// background refresh loop, and logout. It is the single owner and the only
// mutator of session state; transitions are serialized under one mutex.
type Manager struct {
	store    Store
	gateway  Gateway
	interval time.Duration
	log      zerolog.Logger

	mu           sync.Mutex
	state        State
	session      *Session
	generation   uint64
	stopLoop     context.CancelFunc
	observers    map[int]func(Change)
	nextObserver int
	pending      []Change
	notifying    bool
}

// ManagerOption modifies the Manager during construction.
type ManagerOption func(*Manager)

// WithRefreshInterval overrides the background refresh interval.
func WithRefreshInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager initializes a Manager in the LoggedOut state.
func NewManager(store Store, gateway Gateway, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if gateway == nil {
		return nil, errors.New("[NewManager] gateway is required")
	}

	m := &Manager{
		store:     store,
		gateway:   gateway,
		interval:  DefaultRefreshInterval,
		log:       zerolog.Nop(),
		state:     StateLoggedOut,
		observers: make(map[int]func(Change)),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Restore loads a previously persisted session and, when one exists,
// resumes the Active state and the refresh loop. A malformed or absent
// record leaves the manager logged out without error.
func (m *Manager) Restore() (*Profile, error) {
	sess, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("[Manager.Restore] store.Load: %w", err)
	}
	if !sess.Valid() {
		return nil, nil
	}

	m.mu.Lock()
	m.generation++
	m.cancelLoopLocked()
	m.session = sess
	m.state = StateActive
	m.startRefreshLoopLocked()
	profile := sess.User
	m.queueChangeLocked(Change{State: StateActive})
	m.mu.Unlock()

	m.log.Info().Msg("session restored")
	m.flushChanges()
	return profile, nil
}

// Login authenticates against the gateway, validates the issued token, and
// persists the resulting session. Any failure lands back in LoggedOut with
// nothing persisted. A new login supersedes any refresh cycle tied to the
// previous session.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*Profile, error) {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.cancelLoopLocked()
	m.session = nil
	m.state = StateAuthenticating
	m.queueChangeLocked(Change{State: StateAuthenticating})
	m.mu.Unlock()
	m.flushChanges()

	result, err := m.gateway.Login(ctx, identifier, secret)
	if err == nil && (result == nil || strings.TrimSpace(result.Credentials.AccessToken) == "") {
		err = fmt.Errorf("%w: missing access token", upstream.ErrMalformedResponse)
	}
	if err != nil {
		return nil, m.failLogin(gen, mapLoginErr(err))
	}

	valid, err := m.gateway.Validate(ctx, result.Credentials.AccessToken)
	if err != nil {
		return nil, m.failLogin(gen, fmt.Errorf("%w: %v", ErrTokenInvalid, err))
	}
	if !valid {
		return nil, m.failLogin(gen, ErrTokenInvalid)
	}

	sess := &Session{
		AccessToken:  result.Credentials.AccessToken,
		RefreshToken: result.Credentials.RefreshToken,
		User:         result.Profile,
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: login superseded", ErrNotAuthenticated)
	}
	m.session = sess
	m.state = StateActive
	m.saveLocked()
	m.startRefreshLoopLocked()
	m.queueChangeLocked(Change{State: StateActive})
	m.mu.Unlock()

	m.logTokenExpiry(sess.AccessToken, "logged in")
	m.flushChanges()
	return sess.User, nil
}

// Logout clears the session and persisted state and cancels any pending
// refresh cycle. Calling it while already logged out is a no-op.
func (m *Manager) Logout() error {
	m.mu.Lock()
	if m.state == StateLoggedOut && m.session == nil {
		m.mu.Unlock()
		return nil
	}
	m.generation++
	m.cancelLoopLocked()
	m.session = nil
	m.state = StateLoggedOut
	m.saveLocked()
	m.queueChangeLocked(Change{State: StateLoggedOut})
	m.mu.Unlock()

	m.log.Info().Msg("logged out")
	m.flushChanges()
	return nil
}

// Close stops the background refresh loop without touching persisted state.
// An in-flight refresh result arriving after Close is discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	m.generation++
	m.cancelLoopLocked()
	if m.state == StateRefreshing {
		m.state = StateActive
	}
	m.mu.Unlock()
}

// AccessToken returns the current bearer token, if any.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.Valid() {
		return "", false
	}
	return m.session.AccessToken, true
}

// Profile returns a copy of the current user profile, or nil.
func (m *Manager) Profile() *Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.User == nil {
		return nil
	}
	user := *m.session.User
	return &user
}

// Current returns a snapshot of the session, or nil when logged out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn to be called on every session transition. Changes
// are delivered one at a time, in transition order. The returned function
// unsubscribes fn.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) failLogin(gen uint64, cause error) error {
	m.mu.Lock()
	if m.generation == gen {
		m.session = nil
		m.state = StateLoggedOut
		m.queueChangeLocked(Change{State: StateLoggedOut, Cause: cause})
	}
	m.mu.Unlock()

	m.log.Warn().Err(cause).Msg("login failed")
	m.flushChanges()
	return cause
}

func mapLoginErr(err error) error {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: %v", ErrAuthenticationRejected, statusErr)
	}
	if errors.Is(err, upstream.ErrMalformedResponse) {
		return fmt.Errorf("%w: %v", ErrAuthenticationRejected, err)
	}
	return err
}

// startRefreshLoopLocked launches the background refresh loop for the
// current session. No-op when the session has no refresh token.
func (m *Manager) startRefreshLoopLocked() {
	if m.session == nil || strings.TrimSpace(m.session.RefreshToken) == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopLoop = cancel
	go m.refreshLoop(ctx, m.generation)
}

func (m *Manager) cancelLoopLocked() {
	if m.stopLoop != nil {
		m.stopLoop()
		m.stopLoop = nil
	}
}

// refreshLoop runs one refresh immediately, then on the fixed interval,
// until its context is cancelled. gen pins the session generation this loop
// belongs to; a superseding login or logout bumps the generation and any
// late result is discarded.
func (m *Manager) refreshLoop(ctx context.Context, gen uint64) {
	m.refreshOnce(ctx, gen)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshOnce(ctx, gen)
		}
	}
}

// refreshOnce performs a single refresh attempt. Ticks that arrive while a
// refresh is already in flight see a non-Active state and coalesce into
// no-ops, so at most one refresh is in flight per session.
func (m *Manager) refreshOnce(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if m.generation != gen || m.state != StateActive || !m.session.Valid() || m.session.RefreshToken == "" {
		m.mu.Unlock()
		return
	}
	refreshToken := m.session.RefreshToken
	m.state = StateRefreshing
	m.queueChangeLocked(Change{State: StateRefreshing})
	m.mu.Unlock()
	m.flushChanges()

	creds, err := m.gateway.Refresh(ctx, refreshToken)
	if err == nil && (creds == nil || strings.TrimSpace(creds.AccessToken) == "") {
		err = fmt.Errorf("%w: missing access token", upstream.ErrMalformedResponse)
	}

	m.mu.Lock()
	if m.generation != gen {
		// Superseded while in flight; the result belongs to a dead session.
		m.mu.Unlock()
		return
	}

	if err != nil {
		cause := fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		m.cancelLoopLocked()
		m.session = nil
		m.state = StateLoggedOut
		m.saveLocked()
		m.queueChangeLocked(Change{State: StateLoggedOut, Cause: cause})
		m.mu.Unlock()

		m.log.Warn().Err(cause).Msg("session refresh failed, forcing logout")
		m.flushChanges()
		return
	}

	m.session.AccessToken = creds.AccessToken
	if creds.RefreshToken != "" {
		m.session.RefreshToken = creds.RefreshToken
	}
	m.state = StateActive
	m.saveLocked()
	accessToken := m.session.AccessToken
	m.queueChangeLocked(Change{State: StateActive})
	m.mu.Unlock()

	m.logTokenExpiry(accessToken, "session refreshed")
	m.flushChanges()
}

// saveLocked persists the current session best-effort; persistence failures
// are logged, never surfaced.
func (m *Manager) saveLocked() {
	if err := m.store.Save(m.session); err != nil {
		m.log.Error().Err(err).Msg("failed to persist session")
	}
}

func (m *Manager) logTokenExpiry(accessToken, msg string) {
	claims, err := token.Inspect(accessToken)
	if err != nil || claims.ExpiresAt.IsZero() {
		m.log.Info().Msg(msg)
		return
	}
	m.log.Info().Time("token_expires_at", claims.ExpiresAt).Msg(msg)
}

// queueChangeLocked records a transition for delivery. Callers hold mu, so
// the queue position fixes the delivery order to match the order the
// transitions actually happened in.
func (m *Manager) queueChangeLocked(change Change) {
	m.pending = append(m.pending, change)
}

// flushChanges drains the change queue to observers. A single flusher runs
// at a time; callbacks fire outside the state mutex, in queue order, and a
// callback may call back into the Manager.
func (m *Manager) flushChanges() {
	m.mu.Lock()
	if m.notifying {
		m.mu.Unlock()
		return
	}
	m.notifying = true
	for len(m.pending) > 0 {
		change := m.pending[0]
		m.pending = m.pending[1:]
		fns := make([]func(Change), 0, len(m.observers))
		for _, fn := range m.observers {
			fns = append(fns, fn)
		}
		m.mu.Unlock()
		for _, fn := range fns {
			fn(change)
		}
		m.mu.Lock()
	}
	m.notifying = false
	m.mu.Unlock()
}
