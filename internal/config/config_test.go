package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROCESSOR_BATCH_SIZE", "")
	t.Setenv("WEBHOOK_TOKEN_HEADER", "")

	cfg := Load()
	if cfg.Processor.BatchSize != 10 {
		t.Fatalf("expected batch size 10, got %d", cfg.Processor.BatchSize)
	}
	if cfg.Processor.MaxRetry != 3 {
		t.Fatalf("expected max retry 3, got %d", cfg.Processor.MaxRetry)
	}
	if cfg.Webhook.TokenHeader != "asaas-access-token" {
		t.Fatalf("unexpected token header %q", cfg.Webhook.TokenHeader)
	}
	if cfg.Webhook.MinTokenLength != 10 {
		t.Fatalf("expected min token length 10, got %d", cfg.Webhook.MinTokenLength)
	}
	if cfg.Vault.KDFIterations != 100000 {
		t.Fatalf("expected 100000 iterations, got %d", cfg.Vault.KDFIterations)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROCESSOR_BATCH_SIZE", "25")
	t.Setenv("PROCESSOR_EVENT_TIMEOUT", "3s")
	t.Setenv("SCHEDULER_ENABLED", "off")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("PROCESSOR_MAX_RETRY", "not-a-number")

	cfg := Load()
	if cfg.Processor.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Processor.BatchSize)
	}
	if cfg.Processor.EventTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.Processor.EventTimeout)
	}
	if cfg.Processor.SchedulerEnabled {
		t.Fatalf("expected scheduler disabled")
	}
	if !cfg.Redis.Enabled() {
		t.Fatalf("expected redis enabled")
	}
	if cfg.Processor.MaxRetry != 3 {
		t.Fatalf("expected invalid value to fall back to 3, got %d", cfg.Processor.MaxRetry)
	}
}

func TestEventMappingHolderEmptyPath(t *testing.T) {
	holder, err := NewEventMappingHolder("", zap.NewNop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	if len(holder.Get().Rules) != 0 {
		t.Fatalf("expected no rules")
	}
}

func TestEventMappingHolderLoadsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event_mapping.yml")
	content := []byte(`rules:
  - event: ACCOUNT_BLOCKED
    account_status: SUSPENDED
  - event: ACCOUNT_KYC_DONE
    verification_status: APPROVED
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	holder, err := NewEventMappingHolder(path, zap.NewNop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	rules := holder.Get().Rules
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Event != "ACCOUNT_BLOCKED" || rules[0].AccountStatus != "SUSPENDED" {
		t.Fatalf("unexpected first rule %+v", rules[0])
	}
}

func TestEventMappingHolderRejectsInvalidRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event_mapping.yml")
	content := []byte(`rules:
  - event: ACCOUNT_BLOCKED
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := NewEventMappingHolder(path, zap.NewNop()); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadTelemetryPrefersTracesProtocol(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTLP_ENDPOINT", "collector:4317")

	cfg := Load()
	if cfg.Telemetry.OtelProtocol != "http" {
		t.Fatalf("expected traces protocol override, got %q", cfg.Telemetry.OtelProtocol)
	}
	if cfg.Telemetry.OtelEndpoint != "collector:4317" {
		t.Fatalf("expected legacy endpoint fallback, got %q", cfg.Telemetry.OtelEndpoint)
	}
}
