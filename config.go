package avesclient

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the client. Configure once, pass to the
// [Builder], and treat as immutable afterwards.
type Config struct {
	API          APIConfig
	Session      SessionConfig
	Registration RegistrationConfig
	Events       EventsConfig
	Metrics      MetricsConfig
}

// APIConfig locates the aveslog REST API.
type APIConfig struct {
	// BaseURL is the root of the API, without a trailing slash,
	// e.g. "https://api.aveslog.com/v0".
	BaseURL string `env:"AVESLOG_API_URL"`
	// Timeout bounds every gateway call. A timeout surfaces as
	// [ErrNetworkFailure]; the client never retries on its own.
	Timeout time.Duration `env:"AVESLOG_API_TIMEOUT"`
}

// SessionConfig controls the token lifecycle.
type SessionConfig struct {
	// AppVersion is compared against the version marker in durable storage
	// at build time. A mismatch wipes storage wholesale, session included.
	AppVersion string `env:"AVESLOG_APP_VERSION"`
	// RefreshLeeway renews the token when it is within this window of its
	// expiry, instead of waiting for it to lapse mid-request.
	RefreshLeeway time.Duration `env:"AVESLOG_REFRESH_LEEWAY"`
}

// RegistrationConfig holds registration policy.
type RegistrationConfig struct {
	// AutoLogin establishes an authenticated session immediately after a
	// successful registration submission, using the just-registered
	// credentials. Off by default: the server returns the new account but
	// no token, so auto-login costs one extra token exchange.
	AutoLogin bool `env:"AVESLOG_REGISTRATION_AUTO_LOGIN"`
}

// EventsConfig controls the async lifecycle-event dispatcher.
type EventsConfig struct {
	Enabled    bool `env:"AVESLOG_EVENTS_ENABLED"`
	BufferSize int  `env:"AVESLOG_EVENTS_BUFFER"`
	DropIfFull bool `env:"AVESLOG_EVENTS_DROP_IF_FULL"`
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool `env:"AVESLOG_METRICS_ENABLED"`
	EnableLatencyHistograms bool `env:"AVESLOG_METRICS_LATENCY"`
}

// DefaultConfig returns the baseline configuration. BaseURL is left empty
// and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			RefreshLeeway: 30 * time.Second,
		},
		Events: EventsConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// ConfigFromEnv returns [DefaultConfig] overlaid with any AVESLOG_*
// environment variables that are set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API.BaseURL required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API.BaseURL invalid: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("API.Timeout must be positive")
	}
	if c.Session.RefreshLeeway < 0 {
		return errors.New("Session.RefreshLeeway must not be negative")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be positive when events are enabled")
	}
	return nil
}
