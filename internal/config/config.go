// Package config loads settings from an optional file and the environment.
package config

import (
	"strings"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/downtime"
	"github.com/eshaffer321/steamtotwitter-go/internal/session"
	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/eshaffer321/steamtotwitter-go/internal/upstream"
	"github.com/eshaffer321/steamtotwitter-go/pkg/twitter"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STEAMTOTWITTER_STEAM_USERNAME
const EnvPrefix = "STEAMTOTWITTER"

// Config is the full configuration
type Config struct {
	Twitter  TwitterConfig  `mapstructure:"twitter"`
	Steam    SteamConfig    `mapstructure:"steam"`
	Session  SessionConfig  `mapstructure:"session"`
	Downtime DowntimeConfig `mapstructure:"downtime"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

// TwitterConfig holds the publishing credentials
type TwitterConfig struct {
	ConsumerKey       string        `mapstructure:"consumer_key"`
	ConsumerSecret    string        `mapstructure:"consumer_secret"`
	AccessToken       string        `mapstructure:"access_token"`
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxMessageLength  int           `mapstructure:"max_message_length"`
	VerifyOnStart     bool          `mapstructure:"verify_on_start"`
}

// SteamConfig holds the upstream account
type SteamConfig struct {
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	GatewayURL   string `mapstructure:"gateway_url"`
	SentryFile   string `mapstructure:"sentry_file"`
	AuthCode     string `mapstructure:"auth_code"`
	SharedSecret string `mapstructure:"shared_secret"`
	Brand        string `mapstructure:"brand"`
}

// SessionConfig tunes the session loop
type SessionConfig struct {
	LoginFailurePolicy      string        `mapstructure:"login_failure_policy"`
	ReconnectDelay          time.Duration `mapstructure:"reconnect_delay"`
	LoginRetryDelay         time.Duration `mapstructure:"login_retry_delay"`
	ForcedReconnectInterval time.Duration `mapstructure:"forced_reconnect_interval"`
}

// DowntimeConfig tunes downtime notices
type DowntimeConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

// LogConfig selects logger output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// MQTTConfig enables the session state mirror
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// SentryConfig enables error reporting
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// required settings; a missing one is fatal at start-up
var required = []string{
	"twitter.consumer_key",
	"twitter.consumer_secret",
	"twitter.access_token",
	"twitter.access_token_secret",
	"steam.username",
	"steam.password",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("twitter.base_url", types.DefaultBaseURL)
	v.SetDefault("twitter.timeout", types.DefaultTimeout)
	v.SetDefault("twitter.max_message_length", twitter.DefaultMaxMessageLength)
	v.SetDefault("twitter.verify_on_start", true)

	v.SetDefault("steam.gateway_url", upstream.DefaultGatewayURL)
	v.SetDefault("steam.sentry_file", "sentry.bin")
	v.SetDefault("steam.brand", "Steam")

	v.SetDefault("session.login_failure_policy", string(session.PolicyRetry))
	v.SetDefault("session.reconnect_delay", session.DefaultReconnectDelay)
	v.SetDefault("session.login_retry_delay", session.DefaultLoginRetryDelay)
	v.SetDefault("session.forced_reconnect_interval", session.DefaultForcedReconnectInterval)

	v.SetDefault("downtime.enabled", true)
	v.SetDefault("downtime.check_interval", downtime.DefaultCheckInterval)
	v.SetDefault("downtime.cooldown", downtime.DefaultCooldown)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "steamtotwitter")
	v.SetDefault("mqtt.topic", "steamtotwitter/session")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")

	for _, key := range required {
		v.SetDefault(key, "")
	}
	v.SetDefault("steam.auth_code", "")
	v.SetDefault("steam.shared_secret", "")
}

// NewViper returns a viper instance with defaults and environment binding
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads path (if not empty) and the environment
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates
func FromViper(v *viper.Viper) (*Config, error) {
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			return nil, errors.Errorf("missing required setting %s (env %s)", key, EnvName(key))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have a fixed range
func (c *Config) Validate() error {
	if !session.FailurePolicy(c.Session.LoginFailurePolicy).Valid() {
		return errors.Errorf("session.login_failure_policy must be %q or %q, got %q",
			session.PolicyRetry, session.PolicyExit, c.Session.LoginFailurePolicy)
	}
	if c.Twitter.MaxMessageLength < 2 {
		return errors.Errorf("twitter.max_message_length must be at least 2, got %d", c.Twitter.MaxMessageLength)
	}
	durations := map[string]time.Duration{
		"session.reconnect_delay":           c.Session.ReconnectDelay,
		"session.login_retry_delay":         c.Session.LoginRetryDelay,
		"session.forced_reconnect_interval": c.Session.ForcedReconnectInterval,
		"downtime.check_interval":           c.Downtime.CheckInterval,
		"downtime.cooldown":                 c.Downtime.Cooldown,
	}
	for key, d := range durations {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", key, d)
		}
	}
	return nil
}

// Credentials returns the publishing credentials
func (c *Config) Credentials() twitter.Credentials {
	return twitter.Credentials{
		ConsumerKey:       c.Twitter.ConsumerKey,
		ConsumerSecret:    c.Twitter.ConsumerSecret,
		AccessToken:       c.Twitter.AccessToken,
		AccessTokenSecret: c.Twitter.AccessTokenSecret,
	}
}

// EnvName is the environment variable for a setting key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
