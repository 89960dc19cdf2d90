// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Built-in secrets shared with the external portal. Both are static and compiled in;
// deployments should override them through the environment.
const (
	defaultCapabilityKey = "itoi-portal-capability-key-32byt"
	defaultSessionSecret = "itoi-session-cookie-signing-secret"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment. "production" is deploy mode: the database
	// connection uses TLS without certificate verification.
	Env string `mapstructure:"APP_ENV"`

	// WorkspaceRoot is the ephemeral root; workspace folders live at <root>/tmp/<id>/<name>.
	WorkspaceRoot string `mapstructure:"WORKSPACE_ROOT"`
	// CapabilityKey is the AES-256 key (32 raw bytes) the portal encrypts workspace tokens with.
	CapabilityKey string `mapstructure:"CAPABILITY_KEY"`
	// SessionSecret signs the session cookie (HS256).
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionTTLRaw is the cookie and session-store lifetime (e.g. "24h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`

	// PortalURL is the external portal; unauthenticated clients are redirected here and
	// custom workspace files are fetched from its API.
	PortalURL string `mapstructure:"PORTAL_URL"`
	// TemplateDir holds the rsl/ and asl/ template trees copied by /setupRSL and /setupASL.
	TemplateDir string `mapstructure:"TEMPLATE_DIR"`
	// CloneHelper is an optional executable invoked as `<helper> <url> <dir>`. Empty uses the built-in git cloner.
	CloneHelper string `mapstructure:"CLONE_HELPER"`
	// GitHost is the base URL used to build repository URLs for /cloneRepo.
	GitHost string `mapstructure:"GIT_HOST"`
	// WatchBatchWindowRaw is how long the watcher collects events before handing a batch over.
	WatchBatchWindowRaw string `mapstructure:"WATCH_BATCH_WINDOW"`
	// PolicyFile optionally points at a Rego module that replaces the default action policy.
	PolicyFile string `mapstructure:"POLICY_FILE"`

	// OTLPEndpoint is the OTLP gRPC collector; empty installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka brokers. When set, mirror events are published.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// MirrorKafkaTopic is the topic mirror events are written to and the worker reads from.
	MirrorKafkaTopic string `mapstructure:"MIRROR_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the mirror worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: Loki URL for the mirror worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("WORKSPACE_ROOT", "/home/theia/itoi")
	v.SetDefault("CAPABILITY_KEY", defaultCapabilityKey)
	v.SetDefault("SESSION_SECRET", defaultSessionSecret)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("PORTAL_URL", "https://itlingo.portal.example")
	v.SetDefault("TEMPLATE_DIR", "/home/theia/templates")
	v.SetDefault("CLONE_HELPER", "")
	v.SetDefault("GIT_HOST", "https://github.com")
	v.SetDefault("WATCH_BATCH_WINDOW", "100ms")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("MIRROR_KAFKA_TOPIC", "itoi-mirror-events")
	v.SetDefault("KAFKA_GROUP_ID", "itoi-mirror-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.WorkspaceRoot == "" || !filepath.IsAbs(cfg.WorkspaceRoot) {
		return nil, errors.New("config: WORKSPACE_ROOT must be an absolute path")
	}
	cfg.WorkspaceRoot = filepath.Clean(cfg.WorkspaceRoot)
	if len(cfg.CapabilityKey) != 32 {
		return nil, errors.New("config: CAPABILITY_KEY must be exactly 32 bytes")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("config: SESSION_SECRET must be set")
	}
	if cfg.PortalURL == "" {
		return nil, errors.New("config: PORTAL_URL must be set")
	}

	return &cfg, nil
}

// DeployMode reports whether the service runs in production (TLS to the database without verification).
func (c *Config) DeployMode() bool {
	return c != nil && c.Env == "production"
}

// SessionTTL parses SessionTTLRaw as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTLRaw)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// WatchBatchWindow parses WatchBatchWindowRaw. Returns 100ms if unset or invalid.
func (c *Config) WatchBatchWindow() time.Duration {
	d, err := time.ParseDuration(c.WatchBatchWindowRaw)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
