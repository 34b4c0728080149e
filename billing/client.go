package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spasys/billing-console/rawrecord"
	"github.com/spasys/billing-console/upstream"
)

const (
	issuedPath         = "/cobranca/cobranca-remota-emitida"
	issuedMonthPath    = "/cobranca/cobranca-remota-emitida-mes-total"
	pendingPath        = "/cobranca/cobranca-remota-nao-gerada"
	pendingDetailPath  = "/cobranca/cobranca-remota-nao-gerada-analitica"
	pendingWeekPath    = "/cobranca/cobranca-remota-nao-gerada-semana-total"
	generateBatchPath  = "/cobranca/gerar-cobranca-remota-lote"
	requestIDHeaderKey = "X-Request-Id"
)

// TokenSource supplies the bearer credential attached to every request. The
// session manager satisfies it.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Client talks to the billing backend over HTTP and normalizes every
// response before returning it.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  TokenSource
	log     zerolog.Logger
}

// ClientOption modifies the Client during construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a billing Client for the backend at baseURL.
func NewClient(baseURL string, tokens TokenSource, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[billing.NewClient] baseURL is required")
	}
	if tokens == nil {
		return nil, errors.New("[billing.NewClient] token source is required")
	}

	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// IssuedCharges lists already-generated charges, normalized, with the
// aggregate total recomputed from the accepted items.
func (c *Client) IssuedCharges(ctx context.Context, params url.Values) (Batch[IssuedCharge], error) {
	envelope, err := c.get(ctx, issuedPath, params)
	if err != nil {
		return Batch[IssuedCharge]{}, fmt.Errorf("[Client.IssuedCharges] %w", err)
	}

	batch := MapIssuedBatch(decodeRecords(envelope))
	if batch.Dropped > 0 {
		c.log.Warn().Int("dropped", batch.Dropped).Msg("issued charges without a parseable id")
	}
	return batch, nil
}

// IssuedMonthTotal returns the count of charges issued this month.
func (c *Client) IssuedMonthTotal(ctx context.Context) (int64, error) {
	envelope, err := c.get(ctx, issuedMonthPath, nil)
	if err != nil {
		return 0, fmt.Errorf("[Client.IssuedMonthTotal] %w", err)
	}
	return decodeTotal(envelope), nil
}

// PendingCharges lists per-patient pending-charge aggregates, normalized.
func (c *Client) PendingCharges(ctx context.Context, params url.Values) (Batch[PendingCharge], error) {
	envelope, err := c.get(ctx, pendingPath, params)
	if err != nil {
		return Batch[PendingCharge]{}, fmt.Errorf("[Client.PendingCharges] %w", err)
	}

	batch := MapPendingBatch(decodeRecords(envelope))
	if batch.Dropped > 0 {
		c.log.Warn().Int("dropped", batch.Dropped).Msg("pending charges without a parseable patient id")
	}
	return batch, nil
}

// PendingWeekTotal returns the count of charges pending for this week.
func (c *Client) PendingWeekTotal(ctx context.Context) (int64, error) {
	envelope, err := c.get(ctx, pendingWeekPath, nil)
	if err != nil {
		return 0, fmt.Errorf("[Client.PendingWeekTotal] %w", err)
	}
	return decodeTotal(envelope), nil
}

// PendingChargeDetail returns the analytic detail rows untyped; their shape
// varies per procedure type and is passed through to the caller.
func (c *Client) PendingChargeDetail(ctx context.Context, params url.Values) ([]rawrecord.Record, error) {
	envelope, err := c.get(ctx, pendingDetailPath, params)
	if err != nil {
		return nil, fmt.Errorf("[Client.PendingChargeDetail] %w", err)
	}
	return decodeRecords(envelope), nil
}

// GenerateRequest is the batch charge generation command.
type GenerateRequest struct {
	UserID    int64
	DueDate   string
	StartDate string
	EndDate   string
	ChargeIDs []string
}

// GenerateResult reports the upstream's acknowledgement of a batch
// generation command.
type GenerateResult struct {
	Message string `json:"message,omitempty"`
}

// GenerateCharges posts the batch charge generation command: the ids as a
// JSON array, the rest as query parameters.
func (c *Client) GenerateCharges(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if len(req.ChargeIDs) == 0 {
		return nil, ErrNoChargeIDs
	}

	params := url.Values{}
	params.Set("idUsuario", strconv.FormatInt(req.UserID, 10))
	params.Set("dataVencimento", req.DueDate)
	if req.StartDate != "" {
		params.Set("dataInicio", req.StartDate)
	}
	if req.EndDate != "" {
		params.Set("dataTermino", req.EndDate)
	}

	body, err := json.Marshal(req.ChargeIDs)
	if err != nil {
		return nil, fmt.Errorf("[Client.GenerateCharges] marshal ids: %w", err)
	}

	envelope, err := c.send(ctx, http.MethodPost, generateBatchPath, params, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("[Client.GenerateCharges] %w", err)
	}
	return &GenerateResult{Message: envelope.Message()}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*upstream.Envelope, error) {
	return c.send(ctx, http.MethodGet, path, params, nil)
}

// send issues one request and enforces the envelope's status sentinel: any
// non-success status code is a hard failure for the whole request.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, body io.Reader) (*upstream.Envelope, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set(requestIDHeaderKey, uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken, ok := c.tokens.AccessToken(); ok {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

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
		return nil, err
	}
	if err := envelope.Err(); err != nil {
		return nil, err
	}
	return envelope, nil
}

// decodeRecords is deliberately forgiving: an absent or non-array payload on
// a successful envelope is an empty batch, not an error.
func decodeRecords(envelope *upstream.Envelope) []rawrecord.Record {
	if len(envelope.Data) == 0 {
		return nil
	}
	var records []rawrecord.Record
	if err := json.Unmarshal(envelope.Data, &records); err != nil {
		return nil
	}
	return records
}

// decodeTotal reads a {"Total": ...} payload, defaulting to 0 when absent
// or unparseable.
func decodeTotal(envelope *upstream.Envelope) int64 {
	if len(envelope.Data) == 0 {
		return 0
	}
	var record rawrecord.Record
	if err := json.Unmarshal(envelope.Data, &record); err != nil {
		return 0
	}
	total, _ := record.Int("Total")
	return total
}
