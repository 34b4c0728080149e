// Package server exposes the console's HTTP surface to the dashboard
// front-end: the session endpoints and the normalized billing queries. All
// payloads returned here have already crossed the normalization boundary.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/spasys/billing-console/billing"
	"github.com/spasys/billing-console/rawrecord"
	"github.com/spasys/billing-console/session"
)

// SessionService is the slice of the session manager the server needs.
type SessionService interface {
	Login(ctx context.Context, identifier, secret string) (*session.Profile, error)
	Logout() error
	State() session.State
	Profile() *session.Profile
	AccessToken() (string, bool)
}

// BillingService is the slice of the billing client the server needs.
type BillingService interface {
	IssuedCharges(ctx context.Context, params url.Values) (billing.Batch[billing.IssuedCharge], error)
	IssuedMonthTotal(ctx context.Context) (int64, error)
	PendingCharges(ctx context.Context, params url.Values) (billing.Batch[billing.PendingCharge], error)
	PendingWeekTotal(ctx context.Context) (int64, error)
	PendingChargeDetail(ctx context.Context, params url.Values) ([]rawrecord.Record, error)
	GenerateCharges(ctx context.Context, req billing.GenerateRequest) (*billing.GenerateResult, error)
}

// Server routes dashboard requests to the session manager and the billing
// client.
type Server struct {
	router   chi.Router
	sessions SessionService
	billing  BillingService
	log      zerolog.Logger
}

// Option modifies the Server during construction.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New wires the routes.
func New(sessions SessionService, billingSvc BillingService, options ...Option) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("[server.New] session service is required")
	}
	if billingSvc == nil {
		return nil, errors.New("[server.New] billing service is required")
	}

	s := &Server{
		sessions: sessions,
		billing:  billingSvc,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Get("/issued", s.handleIssuedCharges)
		r.Get("/issued/month-total", s.handleIssuedMonthTotal)
		r.Get("/pending", s.handlePendingCharges)
		r.Get("/pending/week-total", s.handlePendingWeekTotal)
		r.Get("/pending/detail", s.handlePendingDetail)
		r.Post("/generate", s.handleGenerateCharges)
	})

	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
