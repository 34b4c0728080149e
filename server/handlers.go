package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spasys/billing-console/billing"
	"github.com/spasys/billing-console/session"
	"github.com/spasys/billing-console/token"
	"github.com/spasys/billing-console/upstream"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type sessionResponse struct {
	State          session.State    `json:"state"`
	Profile        *session.Profile `json:"profile,omitempty"`
	TokenExpiresAt *time.Time       `json:"tokenExpiresAt,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Secret == "" {
		s.writeError(w, http.StatusBadRequest, "identifier and secret are required")
		return
	}

	profile, err := s.sessions.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		State:   s.sessions.State(),
		Profile: s.sessions.Profile(),
	}
	if accessToken, ok := s.sessions.AccessToken(); ok {
		if claims, err := token.Inspect(accessToken); err == nil && !claims.ExpiresAt.IsZero() {
			expiresAt := claims.ExpiresAt
			resp.TokenExpiresAt = &expiresAt
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIssuedCharges(w http.ResponseWriter, r *http.Request) {
	batch, err := s.billing.IssuedCharges(r.Context(), r.URL.Query())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleIssuedMonthTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.billing.IssuedMonthTotal(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"total": total})
}

func (s *Server) handlePendingCharges(w http.ResponseWriter, r *http.Request) {
	batch, err := s.billing.PendingCharges(r.Context(), r.URL.Query())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handlePendingWeekTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.billing.PendingWeekTotal(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"total": total})
}

func (s *Server) handlePendingDetail(w http.ResponseWriter, r *http.Request) {
	rows, err := s.billing.PendingChargeDetail(r.Context(), r.URL.Query())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

type generateRequest struct {
	UserID    int64    `json:"userId"`
	DueDate   string   `json:"dueDate"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`
	ChargeIDs []string `json:"ids"`
}

func (s *Server) handleGenerateCharges(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.billing.GenerateCharges(r.Context(), billing.GenerateRequest{
		UserID:    req.UserID,
		DueDate:   req.DueDate,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		ChargeIDs: req.ChargeIDs,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, session.ErrAuthenticationRejected),
		errors.Is(err, session.ErrTokenInvalid),
		errors.Is(err, session.ErrNotAuthenticated):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, billing.ErrNoChargeIDs):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &statusErr), errors.Is(err, upstream.ErrMalformedResponse):
		s.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, upstream.ErrNetworkFailure):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error().Err(err).Msg("unhandled service error")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
