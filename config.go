package authsdk

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full client configuration. Zero values fall back to the
// defaults from [defaultConfig] during [Builder.Build]; a populated Config is
// treated as immutable afterwards.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	OTP         OTPConfig         `yaml:"otp"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig configures the HTTP gateway.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "https://api.example.com". Required.
	BaseURL string `yaml:"base_url" env:"AUTHSDK_API_BASE_URL"`

	// Timeout bounds every outbound round trip.
	Timeout time.Duration `yaml:"timeout" env:"AUTHSDK_API_TIMEOUT" env-default:"15s"`

	// MaxAttempts is the dispatch ceiling per request, replay included.
	MaxAttempts int `yaml:"max_attempts" env:"AUTHSDK_API_MAX_ATTEMPTS" env-default:"3"`
}

/*
====================================
CREDENTIALS CONFIG
====================================
*/

// CredentialsConfig configures the on-device credential store.
type CredentialsConfig struct {
	// Dir is the directory for the file medium. Empty selects the
	// in-memory medium unless the builder supplies one explicitly.
	Dir string `yaml:"dir" env:"AUTHSDK_CREDENTIALS_DIR"`

	// StalenessCeiling is the absolute age after which persisted
	// credentials are discarded on load.
	StalenessCeiling time.Duration `yaml:"staleness_ceiling" env:"AUTHSDK_CREDENTIALS_STALENESS" env-default:"24h"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig configures the refresh coordinator.
type RefreshConfig struct {
	// ProactiveEnabled turns the background renewal loop on.
	ProactiveEnabled bool `yaml:"proactive_enabled" env:"AUTHSDK_REFRESH_PROACTIVE" env-default:"true"`

	// ProactiveInterval is the check cadence of the renewal loop.
	ProactiveInterval time.Duration `yaml:"proactive_interval" env:"AUTHSDK_REFRESH_INTERVAL" env-default:"60s"`

	// ExpiryThreshold is how close to expiry a proactive renewal fires.
	ExpiryThreshold time.Duration `yaml:"expiry_threshold" env:"AUTHSDK_REFRESH_THRESHOLD" env-default:"5m"`
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig configures the login OTP challenge.
type OTPConfig struct {
	// Validity is the client-side validity window. The backend's verify
	// response remains the ground truth.
	Validity time.Duration `yaml:"validity" env:"AUTHSDK_OTP_VALIDITY" env-default:"5m"`

	// MaxAttempts bounds verify attempts per challenge.
	MaxAttempts int `yaml:"max_attempts" env:"AUTHSDK_OTP_MAX_ATTEMPTS" env-default:"3"`

	// ResendCooldown is the minimum gap between sends.
	ResendCooldown time.Duration `yaml:"resend_cooldown" env:"AUTHSDK_OTP_RESEND_COOLDOWN" env-default:"60s"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls audit event dispatching.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUTHSDK_AUDIT_ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"AUTHSDK_AUDIT_BUFFER" env-default:"64"`
	DropIfFull bool `yaml:"drop_if_full" env:"AUTHSDK_AUDIT_DROP_IF_FULL" env-default:"true"`
}

// MetricsConfig controls the in-process counter set.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"AUTHSDK_METRICS_ENABLED"`
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:     15 * time.Second,
			MaxAttempts: 3,
		},
		Credentials: CredentialsConfig{
			StalenessCeiling: 24 * time.Hour,
		},
		Refresh: RefreshConfig{
			ProactiveEnabled:  true,
			ProactiveInterval: time.Minute,
			ExpiryThreshold:   5 * time.Minute,
		},
		OTP: OTPConfig{
			Validity:       5 * time.Minute,
			MaxAttempts:    3,
			ResendCooldown: time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 64,
			DropIfFull: true,
		},
	}
}

// normalize fills zero values with defaults. Called by Build so a partially
// populated Config behaves predictably.
func (c *Config) normalize() {
	d := defaultConfig()
	if c.API.Timeout <= 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.API.MaxAttempts <= 0 {
		c.API.MaxAttempts = d.API.MaxAttempts
	}
	if c.Credentials.StalenessCeiling <= 0 {
		c.Credentials.StalenessCeiling = d.Credentials.StalenessCeiling
	}
	if c.Refresh.ProactiveInterval <= 0 {
		c.Refresh.ProactiveInterval = d.Refresh.ProactiveInterval
	}
	if c.Refresh.ExpiryThreshold <= 0 {
		c.Refresh.ExpiryThreshold = d.Refresh.ExpiryThreshold
	}
	if c.OTP.Validity <= 0 {
		c.OTP.Validity = d.OTP.Validity
	}
	if c.OTP.MaxAttempts <= 0 {
		c.OTP.MaxAttempts = d.OTP.MaxAttempts
	}
	if c.OTP.ResendCooldown <= 0 {
		c.OTP.ResendCooldown = d.OTP.ResendCooldown
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = d.Audit.BufferSize
	}
}

// Validate rejects configurations that cannot produce a working client.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API.BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API.BaseURL %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.MaxAttempts < 2 {
		return errors.New("API.MaxAttempts must allow at least one replay")
	}
	if c.Refresh.ExpiryThreshold <= c.Refresh.ProactiveInterval {
		return errors.New("Refresh.ExpiryThreshold must exceed Refresh.ProactiveInterval")
	}
	return nil
}

// LoadConfig reads configuration for embedding applications. Source priority:
// the explicit path argument, then the AUTHSDK_CONFIG env var, then
// environment variables alone. Defaults apply to anything left unset.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("AUTHSDK_CONFIG")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading config from environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
