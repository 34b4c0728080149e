package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/spasys/billing-console/billing"
	"github.com/spasys/billing-console/rawrecord"
	"github.com/spasys/billing-console/server"
	"github.com/spasys/billing-console/session"
	"github.com/spasys/billing-console/upstream"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	loginProfile *session.Profile
	loginErr     error
	state        session.State
	accessToken  string
	logoutCalls  int
}

func (fs *fakeSessions) Login(ctx context.Context, identifier, secret string) (*session.Profile, error) {
	return fs.loginProfile, fs.loginErr
}

func (fs *fakeSessions) Logout() error {
	fs.logoutCalls++
	return nil
}

func (fs *fakeSessions) State() session.State {
	if fs.state == "" {
		return session.StateLoggedOut
	}
	return fs.state
}

func (fs *fakeSessions) Profile() *session.Profile {
	return fs.loginProfile
}

func (fs *fakeSessions) AccessToken() (string, bool) {
	return fs.accessToken, fs.accessToken != ""
}

type fakeBilling struct {
	issued       billing.Batch[billing.IssuedCharge]
	pending      billing.Batch[billing.PendingCharge]
	pendingErr   error
	monthTotal   int64
	weekTotal    int64
	detail       []rawrecord.Record
	generated    *billing.GenerateResult
	generateErr  error
	lastGenerate billing.GenerateRequest
}

func (fb *fakeBilling) IssuedCharges(ctx context.Context, params url.Values) (billing.Batch[billing.IssuedCharge], error) {
	return fb.issued, nil
}

func (fb *fakeBilling) IssuedMonthTotal(ctx context.Context) (int64, error) {
	return fb.monthTotal, nil
}

func (fb *fakeBilling) PendingCharges(ctx context.Context, params url.Values) (billing.Batch[billing.PendingCharge], error) {
	return fb.pending, fb.pendingErr
}

func (fb *fakeBilling) PendingWeekTotal(ctx context.Context) (int64, error) {
	return fb.weekTotal, nil
}

func (fb *fakeBilling) PendingChargeDetail(ctx context.Context, params url.Values) ([]rawrecord.Record, error) {
	return fb.detail, nil
}

func (fb *fakeBilling) GenerateCharges(ctx context.Context, req billing.GenerateRequest) (*billing.GenerateResult, error) {
	fb.lastGenerate = req
	if fb.generateErr != nil {
		return nil, fb.generateErr
	}
	return fb.generated, nil
}

func setupServer(t *testing.T, sessions *fakeSessions, billingSvc *fakeBilling) *httptest.Server {
	t.Helper()
	srv, err := server.New(sessions, billingSvc)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sessions := &fakeSessions{loginProfile: &session.Profile{Identifier: "ana.souza", UserID: 104}}
		ts := setupServer(t, sessions, &fakeBilling{})

		resp, err := http.Post(ts.URL+"/auth/login", "application/json",
			strings.NewReader(`{"identifier":"ana.souza","secret":"senha123"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	})

	t.Run("rejected maps to 401", func(t *testing.T) {
		sessions := &fakeSessions{loginErr: session.ErrAuthenticationRejected}
		ts := setupServer(t, sessions, &fakeBilling{})

		resp, err := http.Post(ts.URL+"/auth/login", "application/json",
			strings.NewReader(`{"identifier":"ana.souza","secret":"wrong"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing fields map to 400", func(t *testing.T) {
		ts := setupServer(t, &fakeSessions{}, &fakeBilling{})

		resp, err := http.Post(ts.URL+"/auth/login", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Logout(t *testing.T) {
	sessions := &fakeSessions{state: session.StateActive}
	ts := setupServer(t, sessions, &fakeBilling{})

	resp, err := http.Post(ts.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 1, sessions.logoutCalls)
}

func TestServer_SessionEndpoint(t *testing.T) {
	sessions := &fakeSessions{
		state:        session.StateActive,
		loginProfile: &session.Profile{Identifier: "ana.souza"},
	}
	ts := setupServer(t, sessions, &fakeBilling{})

	resp, err := http.Get(ts.URL + "/auth/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_PendingCharges(t *testing.T) {
	t.Run("returns normalized batch", func(t *testing.T) {
		fb := &fakeBilling{
			pending: billing.Batch[billing.PendingCharge]{
				Items:       []billing.PendingCharge{{PatientID: 1, PatientName: "Ana", Amount: 100}},
				Count:       1,
				AmountTotal: 100,
			},
		}
		ts := setupServer(t, &fakeSessions{}, fb)

		resp, err := http.Get(ts.URL + "/billing/pending")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("upstream status failure maps to 502", func(t *testing.T) {
		fb := &fakeBilling{pendingErr: &upstream.StatusError{Code: 4, Message: "sessao expirada"}}
		ts := setupServer(t, &fakeSessions{}, fb)

		resp, err := http.Get(ts.URL + "/billing/pending")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestServer_GenerateCharges(t *testing.T) {
	t.Run("forwards command", func(t *testing.T) {
		fb := &fakeBilling{generated: &billing.GenerateResult{Message: "gerado"}}
		ts := setupServer(t, &fakeSessions{}, fb)

		resp, err := http.Post(ts.URL+"/billing/generate", "application/json",
			strings.NewReader(`{"userId":104,"dueDate":"2026-09-10","ids":["1","2"]}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, int64(104), fb.lastGenerate.UserID)
		require.Equal(t, []string{"1", "2"}, fb.lastGenerate.ChargeIDs)
	})

	t.Run("empty id list maps to 400", func(t *testing.T) {
		fb := &fakeBilling{generateErr: billing.ErrNoChargeIDs}
		ts := setupServer(t, &fakeSessions{}, fb)

		resp, err := http.Post(ts.URL+"/billing/generate", "application/json",
			strings.NewReader(`{"userId":104,"dueDate":"2026-09-10","ids":[]}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_RequiresDependencies(t *testing.T) {
	_, err := server.New(nil, &fakeBilling{})
	require.Error(t, err)

	_, err = server.New(&fakeSessions{}, nil)
	require.Error(t, err)
}
