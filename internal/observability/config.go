package observability

import (
	"strings"

	"github.com/smallbiznis/partnersync/internal/config"
)

const (
	defaultServiceName   = "partnersync"
	defaultSamplingRatio = 0.1
)

// Config is the normalized logging and tracing setup for partnersync
// processes. The webhook receiver, worker and CLIs all derive it from the
// same config.Config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	environment := firstNonEmpty(t.DeploymentEnv, cfg.Environment)
	version := firstNonEmpty(t.ServiceVersion, cfg.AppVersion)

	return Config{
		ServiceName:          serviceName,
		Environment:          environment,
		Version:              version,
		LogLevel:             normalizeLevel(t.LogLevel),
		LogFormat:            normalizeFormat(t.LogFormat),
		OtelEnabled:          t.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(t.OtelEndpoint),
		OtelExporterProtocol: normalizeProtocol(t.OtelProtocol),
		OtelSamplingRatio:    clampRatio(t.SamplingRatio),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func normalizeLevel(level string) string {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	default:
		return "info"
	}
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

// normalizeProtocol accepts the OTLP spellings collectors document.
func normalizeProtocol(protocol string) string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf", "http/json":
		return "http"
	default:
		return "grpc"
	}
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return defaultSamplingRatio
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
