package authsdk

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.API.Timeout != 15*time.Second {
		t.Fatalf("API.Timeout = %v", cfg.API.Timeout)
	}
	if cfg.API.MaxAttempts != 3 {
		t.Fatalf("API.MaxAttempts = %d", cfg.API.MaxAttempts)
	}
	if cfg.Credentials.StalenessCeiling != 24*time.Hour {
		t.Fatalf("Credentials.StalenessCeiling = %v", cfg.Credentials.StalenessCeiling)
	}
	if !cfg.Refresh.ProactiveEnabled {
		t.Fatal("proactive refresh should default on")
	}
	if cfg.Refresh.ExpiryThreshold <= cfg.Refresh.ProactiveInterval {
		t.Fatal("default threshold must exceed the check interval")
	}
	if cfg.OTP.MaxAttempts != 3 || cfg.OTP.Validity != 5*time.Minute {
		t.Fatalf("unexpected OTP defaults: %+v", cfg.OTP)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *Config)
		ok     bool
	}{
		{"valid", func(cfg *Config) {}, true},
		{"missing base url", func(cfg *Config) { cfg.API.BaseURL = "" }, false},
		{"relative base url", func(cfg *Config) { cfg.API.BaseURL = "/api" }, false},
		{"single attempt", func(cfg *Config) { cfg.API.MaxAttempts = 1 }, false},
		{"threshold below interval", func(cfg *Config) {
			cfg.Refresh.ProactiveInterval = 10 * time.Minute
			cfg.Refresh.ExpiryThreshold = time.Minute
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.API.BaseURL = "https://api.example.com"
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := Config{}
	cfg.normalize()

	d := defaultConfig()
	if cfg.API.Timeout != d.API.Timeout || cfg.API.MaxAttempts != d.API.MaxAttempts {
		t.Fatalf("API defaults not applied: %+v", cfg.API)
	}
	if cfg.OTP.ResendCooldown != d.OTP.ResendCooldown {
		t.Fatalf("OTP defaults not applied: %+v", cfg.OTP)
	}
	if cfg.Audit.BufferSize != d.Audit.BufferSize {
		t.Fatalf("Audit defaults not applied: %+v", cfg.Audit)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authsdk.yaml")
	body := `
api:
  base_url: https://api.example.com
  timeout: 5s
otp:
  max_attempts: 5
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Fatalf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %v", cfg.API.Timeout)
	}
	if cfg.OTP.MaxAttempts != 5 {
		t.Fatalf("OTP.MaxAttempts = %d", cfg.OTP.MaxAttempts)
	}
	// Untouched values keep their defaults.
	if cfg.API.MaxAttempts != 3 {
		t.Fatalf("API.MaxAttempts = %d", cfg.API.MaxAttempts)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("AUTHSDK_API_BASE_URL", "https://env.example.com")
	t.Setenv("AUTHSDK_API_MAX_ATTEMPTS", "4")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Fatalf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.MaxAttempts != 4 {
		t.Fatalf("MaxAttempts = %d", cfg.API.MaxAttempts)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
