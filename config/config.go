package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jonwraymond/querybridge/secret"
)

// Environment variable names.
const (
	EnvServerURL      = "SERVER_URL"
	EnvClientID       = "LUMENORE_CLIENT_ID"
	EnvSecret         = "LUMENORE_SECRET"
	EnvAPIToken       = "LUMENORE_API_KEY"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvConnectTimeout = "CONNECT_TIMEOUT"
	EnvTotalTimeout   = "TOTAL_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
)

// Defaults.
const (
	DefaultBaseURL        = "https://preview.lumenore.com"
	DefaultRequestTimeout = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultTotalTimeout   = 300 * time.Second
	DefaultLogLevel       = "info"
)

// ErrMissingCredentials is returned when neither an API token nor a client
// id/secret pair is configured.
var ErrMissingCredentials = errors.New(
	"config: either " + EnvAPIToken + " or both " + EnvClientID + " and " + EnvSecret + " must be provided")

// Config is the process configuration, read once at startup.
type Config struct {
	// BaseURL is the analytics backend base URL.
	BaseURL string

	// ClientID and Secret drive the client-credentials exchange.
	ClientID string
	Secret   string

	// APIToken is a pre-issued bearer token that bypasses the exchange.
	APIToken string

	// RequestTimeout bounds each backend round trip.
	RequestTimeout time.Duration

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// TotalTimeout bounds a tool invocation end to end.
	TotalTimeout time.Duration

	// LogLevel is debug|info|warn|error.
	LogLevel string
}

// FromEnv loads configuration from the environment. Credential values may
// reference other variables with `${VAR}`; a dangling reference is an error.
func FromEnv() (Config, error) {
	provider := secret.NewEnvProvider()

	cfg := Config{
		BaseURL:        envOr(EnvServerURL, DefaultBaseURL),
		RequestTimeout: DefaultRequestTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		TotalTimeout:   DefaultTotalTimeout,
		LogLevel:       envOr(EnvLogLevel, DefaultLogLevel),
	}

	var err error
	if cfg.ClientID, err = resolve(provider, EnvClientID); err != nil {
		return Config{}, err
	}
	if cfg.Secret, err = resolve(provider, EnvSecret); err != nil {
		return Config{}, err
	}
	if cfg.APIToken, err = resolve(provider, EnvAPIToken); err != nil {
		return Config{}, err
	}

	for _, t := range []struct {
		env  string
		dest *time.Duration
	}{
		{EnvRequestTimeout, &cfg.RequestTimeout},
		{EnvConnectTimeout, &cfg.ConnectTimeout},
		{EnvTotalTimeout, &cfg.TotalTimeout},
	} {
		if err := parseTimeout(t.env, t.dest); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: " + EnvServerURL + " must not be empty")
	}
	tokenProvided := c.APIToken != ""
	credentialsProvided := c.ClientID != "" && c.Secret != ""
	if !tokenProvided && !credentialsProvided {
		return ErrMissingCredentials
	}
	if c.RequestTimeout <= 0 || c.ConnectTimeout <= 0 || c.TotalTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	return nil
}

// String returns a redacted representation safe for logging.
func (c Config) String() string {
	return fmt.Sprintf("config(base_url=%s, client_id=%s, secret=[REDACTED], api_token=[REDACTED], request_timeout=%s, total_timeout=%s)",
		c.BaseURL, c.ClientID, c.RequestTimeout, c.TotalTimeout)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func resolve(provider secret.Provider, name string) (string, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return "", nil
	}
	value, err := secret.ExpandStrict(raw, provider)
	if err != nil {
		return "", fmt.Errorf("config: %s: %w", name, err)
	}
	return value, nil
}

// parseTimeout reads a timeout in seconds (fractions allowed, matching the
// backend's own convention).
func parseTimeout(name string, dest *time.Duration) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return fmt.Errorf("config: %s must be a positive number of seconds, got %q", name, raw)
	}
	*dest = time.Duration(seconds * float64(time.Second))
	return nil
}
