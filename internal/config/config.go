// Package config loads and validates beacon service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/playback-beacon/internal/session"
	"github.com/JakeFAU/playback-beacon/internal/tracker"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Tracker  tracker.Options `mapstructure:"tracker"`
	Provider ProviderConfig  `mapstructure:"provider"`
	Delivery DeliveryConfig  `mapstructure:"delivery"`
	Sinks    SinksConfig     `mapstructure:"sinks"`
	PubSub   PubSubConfig    `mapstructure:"pubsub"`
	DB       DBConfig        `mapstructure:"db"`
	Archive  ArchiveConfig   `mapstructure:"archive"`
	Session  SessionConfig   `mapstructure:"session"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProviderConfig selects the analytics convention trackers are given.
type ProviderConfig struct {
	Kind string `mapstructure:"kind"`
}

// DeliveryConfig tunes the delivery hub.
type DeliveryConfig struct {
	BufferSize    int `mapstructure:"buffer_size"`
	SinkTimeoutMs int `mapstructure:"sink_timeout_ms"`
}

// SinksConfig toggles the always-available sinks.
type SinksConfig struct {
	Log        bool `mapstructure:"log"`
	Prometheus bool `mapstructure:"prometheus"`
}

// PubSubConfig holds the topic delivered beacons are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig controls access to the beacon table.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig sets where beacon documents are archived: a GCS bucket or a
// local directory, never both.
type ArchiveConfig struct {
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Dir          string `mapstructure:"dir"`
	Prefix       string `mapstructure:"prefix"`
	CacheControl string `mapstructure:"cache_control"`
}

// SessionConfig bounds the session registry and per-session request rate.
// A non-positive events_per_second disables rate limiting; an
// idle_timeout_seconds of 0 keeps sessions until they are deleted.
type SessionConfig struct {
	MaxSessions        int     `mapstructure:"max_sessions"`
	EventsPerSecond    float64 `mapstructure:"events_per_second"`
	EventBurst         int     `mapstructure:"event_burst"`
	IdleTimeoutSeconds int     `mapstructure:"idle_timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("logging.development", true)
	v.SetDefault("tracker.percents_played_interval", tracker.DefaultPercentsPlayedInterval)
	v.SetDefault("tracker.event_category", tracker.DefaultEventCategory)
	v.SetDefault("tracker.debug", false)
	v.SetDefault("provider.kind", string(session.ProviderPrimary))
	v.SetDefault("delivery.buffer_size", 1024)
	v.SetDefault("delivery.sink_timeout_ms", 5000)
	v.SetDefault("sinks.log", true)
	v.SetDefault("sinks.prometheus", true)
	v.SetDefault("db.table", "beacons")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.prefix", "beacons")
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.events_per_second", 20)
	v.SetDefault("session.event_burst", 40)
	v.SetDefault("session.idle_timeout_seconds", 1800)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Tracker.PercentsPlayedInterval < 0 {
		return fmt.Errorf("tracker.percents_played_interval must be >= 0")
	}
	if _, err := session.ParseProviderKind(c.Provider.Kind); err != nil {
		return fmt.Errorf("provider.kind: %w", err)
	}
	if c.Delivery.BufferSize <= 0 {
		return fmt.Errorf("delivery.buffer_size must be > 0")
	}
	if c.Delivery.SinkTimeoutMs <= 0 {
		return fmt.Errorf("delivery.sink_timeout_ms must be > 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Archive.GCSBucket != "" && c.Archive.Dir != "" {
		return fmt.Errorf("archive.gcs_bucket and archive.dir are mutually exclusive")
	}
	if c.DB.MaxConns < 0 {
		return fmt.Errorf("db.max_conns must be >= 0")
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("session.max_sessions must be >= 0")
	}
	if c.Session.EventBurst < 0 {
		return fmt.Errorf("session.event_burst must be >= 0")
	}
	if c.Session.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("session.idle_timeout_seconds must be >= 0")
	}
	return nil
}

// ProviderKind returns the validated provider kind.
func (c Config) ProviderKind() session.ProviderKind {
	kind, err := session.ParseProviderKind(c.Provider.Kind)
	if err != nil {
		return session.ProviderPrimary
	}
	return kind
}

// SessionIdleTimeout is how long a session may go without reports before it
// is evicted.
func (c Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSeconds) * time.Second
}

// SinkTimeout converts the per-sink timeout into a duration.
func (c Config) SinkTimeout() time.Duration {
	return time.Duration(c.Delivery.SinkTimeoutMs) * time.Millisecond
}

// RequestTimeout bounds each API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
