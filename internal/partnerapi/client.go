package partnerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/partnersync/internal/config"
	credentialdomain "github.com/smallbiznis/partnersync/internal/credential/domain"
	"github.com/smallbiznis/partnersync/internal/observability/metrics"
	"github.com/smallbiznis/partnersync/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	headerAccessToken = "access_token"
	maxErrorBody      = 4 << 10
	defaultTimeout    = 15 * time.Second
)

var (
	ErrPartnerRequest = errors.New("partner_request_failed")
	ErrMissingAPIKey  = errors.New("partner_api_key_missing")
	ErrInvalidID      = errors.New("invalid_partner_id")
	ErrMissingReason  = errors.New("partner_remove_reason_missing")
)

// APIError carries a non-2xx partner response. The body is kept for
// diagnostics and capped at maxErrorBody bytes.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("partner_request_failed_status_%d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return ErrPartnerRequest
}

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Credentials credentialdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
	HTTPClient  *http.Client     `optional:"true"`
}

// Client talks to the partner REST API. Master-key calls go through the
// client directly; sub-account calls go through WithAccountKey.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	log        *zap.Logger
	creds      credentialdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) *Client {
	timeout := p.Cfg.Partner.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := p.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(p.Cfg.Partner.APIURL), "/"),
		masterKey:  strings.TrimSpace(p.Cfg.Partner.APIKey),
		httpClient: tracing.WrapHTTPClient(base, "partnerapi"),
		log:        log.Named("partnerapi.client"),
		creds:      p.Credentials,
		metrics:    p.Metrics,
	}
}

// WithAccountKey decrypts the sub-account key for the duration of fn.
// Nothing is cached; a decrypt failure aborts before any request is sent.
func (c *Client) WithAccountKey(ctx context.Context, encryptedKey string, fn func(api *AccountAPI) error) error {
	if c.creds == nil {
		return credentialdomain.ErrMasterSecretMissing
	}
	return c.creds.WithSecret(ctx, encryptedKey, func(secret string) error {
		return fn(&AccountAPI{client: c, apiKey: secret})
	})
}

// AccountAPI is scoped to a single sub-account key.
type AccountAPI struct {
	client *Client
	apiKey string
}

func (c *Client) do(ctx context.Context, apiKey, method, endpoint string, body any, out any) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrMissingAPIKey
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set(headerAccessToken, apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordPartnerRequest(ctx, endpointLabel(endpoint), 0)
		c.log.Warn("partnerapi.request.failed",
			zap.String("method", method),
			zap.String("endpoint", endpointLabel(endpoint)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrPartnerRequest, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordPartnerRequest(ctx, endpointLabel(endpoint), resp.StatusCode)
	c.log.Debug("partnerapi.request.done",
		zap.String("method", method),
		zap.String("endpoint", endpointLabel(endpoint)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode partner response: %w", err)
	}
	return nil
}

// endpointLabel strips path ids so metric cardinality stays bounded.
func endpointLabel(endpoint string) string {
	path := endpoint
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if parts[0] == "accounts" && len(parts) > 1 {
		return "/accounts/:id"
	}
	return "/" + strings.Join(parts, "/")
}
