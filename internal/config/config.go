package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBQueryTimeout    time.Duration
	DBAutoMigrate     bool

	Webhook   WebhookConfig
	Processor ProcessorConfig
	Vault     VaultConfig
	Partner   PartnerConfig
	Redis     RedisConfig

	EventMappingFile string
	MetricsPush      MetricsPushConfig
}

// WebhookConfig controls the inbound partner webhook endpoint.
type WebhookConfig struct {
	TokenHeader    string
	MinTokenLength int
	MaxBodyBytes   int64
	RatePerSecond  float64
	RateBurst      int
}

// ProcessorConfig controls batch processing of stored webhook events.
type ProcessorConfig struct {
	BatchSize        int
	MaxRetry         int
	EventTimeout     time.Duration
	RunInterval      time.Duration
	SchedulerEnabled bool
	LockTTL          time.Duration
}

// VaultConfig carries the key-derivation inputs for credential encryption.
type VaultConfig struct {
	MasterSecret  string
	KDFSalt       string
	KDFIterations int
}

// PartnerConfig configures outbound calls to the partner REST API.
type PartnerConfig struct {
	APIURL       string
	APIKey       string
	Timeout      time.Duration
	WebhookURL   string
	WebhookEmail string
}

// TelemetryConfig is the raw logging and OpenTelemetry settings. The
// observability package normalizes them.
type TelemetryConfig struct {
	DeploymentEnv  string
	ServiceVersion string
	LogLevel       string
	LogFormat      string
	OtelEnabled    bool
	OtelEndpoint   string
	OtelProtocol   string
	SamplingRatio  float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "partnersync"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		Telemetry: TelemetryConfig{
			DeploymentEnv:  strings.TrimSpace(os.Getenv("DEPLOYMENT_ENV")),
			ServiceVersion: strings.TrimSpace(os.Getenv("SERVICE_VERSION")),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			LogFormat:      getenv("LOG_FORMAT", "json"),
			OtelEnabled:    getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
			OtelProtocol:   getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "partnersync.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBQueryTimeout:    getenvDuration("DATABASE_QUERY_TIMEOUT", 5*time.Second),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		Webhook: WebhookConfig{
			TokenHeader:    getenv("WEBHOOK_TOKEN_HEADER", "asaas-access-token"),
			MinTokenLength: getenvInt("WEBHOOK_MIN_TOKEN_LENGTH", 10),
			MaxBodyBytes:   getenvInt64("WEBHOOK_MAX_BODY_BYTES", 1<<20),
			RatePerSecond:  getenvFloat("WEBHOOK_RATE_PER_SECOND", 20),
			RateBurst:      getenvInt("WEBHOOK_RATE_BURST", 40),
		},
		Processor: ProcessorConfig{
			BatchSize:        getenvInt("PROCESSOR_BATCH_SIZE", 10),
			MaxRetry:         getenvInt("PROCESSOR_MAX_RETRY", 3),
			EventTimeout:     getenvDuration("PROCESSOR_EVENT_TIMEOUT", 10*time.Second),
			RunInterval:      getenvDuration("PROCESSOR_RUN_INTERVAL", time.Minute),
			SchedulerEnabled: getenvBool("SCHEDULER_ENABLED", true),
			LockTTL:          getenvDuration("PROCESSOR_LOCK_TTL", 2*time.Minute),
		},
		Vault: VaultConfig{
			MasterSecret:  strings.TrimSpace(os.Getenv("VAULT_MASTER_SECRET")),
			KDFSalt:       strings.TrimSpace(os.Getenv("VAULT_KDF_SALT")),
			KDFIterations: getenvInt("VAULT_KDF_ITERATIONS", 100000),
		},
		Partner: PartnerConfig{
			APIURL:       getenv("PARTNER_API_URL", "https://sandbox.asaas.com/api/v3"),
			APIKey:       strings.TrimSpace(os.Getenv("PARTNER_API_KEY")),
			Timeout:      getenvDuration("PARTNER_API_TIMEOUT", 15*time.Second),
			WebhookURL:   strings.TrimSpace(os.Getenv("PARTNER_WEBHOOK_URL")),
			WebhookEmail: strings.TrimSpace(os.Getenv("PARTNER_WEBHOOK_EMAIL")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
		EventMappingFile: strings.TrimSpace(os.Getenv("EVENT_MAPPING_FILE")),
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_PUSH_EXPORTER"))),
			Endpoint:  strings.TrimSpace(os.Getenv("METRICS_PUSH_ENDPOINT")),
			AuthToken: strings.TrimSpace(os.Getenv("METRICS_PUSH_AUTH_TOKEN")),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
