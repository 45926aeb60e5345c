package observability

import (
	"testing"

	"github.com/smallbiznis/partnersync/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "development",
		AppVersion:  "0.1.0",
		Telemetry:   config.TelemetryConfig{OtelEndpoint: " collector:4317 "},
	})

	if cfg.ServiceName != "partnersync" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.OtelEnabled {
		t.Fatalf("expected otel disabled by default")
	}
	if cfg.OtelExporterEndpoint != "collector:4317" {
		t.Fatalf("expected endpoint from app config, got %q", cfg.OtelExporterEndpoint)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" || cfg.OtelExporterProtocol != "grpc" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OtelSamplingRatio != 0.1 {
		t.Fatalf("expected default sampling ratio, got %v", cfg.OtelSamplingRatio)
	}
	if cfg.Version != "0.1.0" {
		t.Fatalf("expected app version, got %q", cfg.Version)
	}
	if !cfg.Debug() {
		t.Fatalf("development environment should enable debug")
	}
}

func TestLoadConfigNormalizesTelemetry(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:     "partnersync-worker",
		Environment: "development",
		Telemetry: config.TelemetryConfig{
			DeploymentEnv: "production",
			LogLevel:      "WARNING",
			LogFormat:     "Console",
			OtelProtocol:  "HTTP/protobuf",
			SamplingRatio: 3,
		},
	})

	if cfg.ServiceName != "partnersync-worker" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.Environment != "production" {
		t.Fatalf("deployment env must win, got %q", cfg.Environment)
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "console" {
		t.Fatalf("unexpected log settings %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.OtelExporterProtocol != "http" {
		t.Fatalf("expected http protocol, got %q", cfg.OtelExporterProtocol)
	}
	if cfg.OtelSamplingRatio != 1 {
		t.Fatalf("expected ratio clamped to 1, got %v", cfg.OtelSamplingRatio)
	}
	if cfg.Debug() {
		t.Fatalf("production at warn level should not be debug")
	}
}
