package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/observability/metrics"
)

const (
	keyWebhookToken  = "partnersync:webhook:token:"
	webhookEndpoint  = "/webhooks/partner"
	reasonExceeded   = "exceeded"
	reasonLimiterErr = "limiter_error"
)

// WebhookLimiter throttles webhook deliveries per shared secret.
type WebhookLimiter struct {
	bucket  *TokenBucket
	rate    float64
	burst   int
	metrics *metrics.Metrics
}

// NewWebhookLimiter returns nil, which allows everything, when redis or the rate is not configured.
func NewWebhookLimiter(client *redis.Client, cfg config.Config, m *metrics.Metrics) *WebhookLimiter {
	if client == nil || cfg.Webhook.RatePerSecond <= 0 || cfg.Webhook.RateBurst <= 0 {
		return nil
	}
	return &WebhookLimiter{
		bucket:  NewTokenBucket(client),
		rate:    cfg.Webhook.RatePerSecond,
		burst:   cfg.Webhook.RateBurst,
		metrics: m,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for the credential. Limiter failures fail open.
func (l *WebhookLimiter) Allow(ctx context.Context, token string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}

	res, err := l.bucket.Allow(ctx, TokenKey(token), l.rate, l.burst)
	if err != nil {
		l.metrics.RecordRateLimitDenied(ctx, webhookEndpoint, reasonLimiterErr)
		return &RateLimitResult{Allowed: true}, err
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, webhookEndpoint, reasonExceeded)
		return res, nil
	}
	l.metrics.RecordRateLimitAllowed(ctx, webhookEndpoint)
	return res, nil
}

// TokenKey derives the bucket key so raw secrets never reach redis.
func TokenKey(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return keyWebhookToken + hex.EncodeToString(sum[:])
}
