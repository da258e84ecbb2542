package goFleet

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secrets", mutate: func(*Config) {}, wantValid: true},
		{
			name:      "missing access secret",
			mutate:    func(c *Config) { c.JWT.AccessSecret = nil },
			wantValid: false,
		},
		{
			name:      "short refresh secret",
			mutate:    func(c *Config) { c.JWT.RefreshSecret = []byte("short") },
			wantValid: false,
		},
		{
			name: "identical secrets",
			mutate: func(c *Config) {
				c.JWT.RefreshSecret = append([]byte(nil), c.JWT.AccessSecret...)
			},
			wantValid: false,
		},
		{
			name: "refresh ttl not above access ttl",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = time.Hour
				c.JWT.RefreshTTL = time.Hour
			},
			wantValid: false,
		},
		{
			name:      "zero access ttl",
			mutate:    func(c *Config) { c.JWT.AccessTTL = 0 },
			wantValid: false,
		},
		{
			name:      "leeway within bound",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:      "leeway too large",
			mutate:    func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "bcrypt algorithm",
			mutate:    func(c *Config) { c.Password.Algorithm = "bcrypt" },
			wantValid: true,
		},
		{
			name:      "unknown algorithm",
			mutate:    func(c *Config) { c.Password.Algorithm = "md5" },
			wantValid: false,
		},
		{
			name:      "argon2 memory too low",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name: "bcrypt cost out of range",
			mutate: func(c *Config) {
				c.Password.Algorithm = "bcrypt"
				c.Password.BcryptCost = 40
			},
			wantValid: false,
		},
		{
			name:      "zero min password length",
			mutate:    func(c *Config) { c.Password.MinLength = 0 },
			wantValid: false,
		},
		{
			name:      "empty cache prefix",
			mutate:    func(c *Config) { c.Cache.Prefix = "  " },
			wantValid: false,
		},
		{
			name:      "cache prefix with colon",
			mutate:    func(c *Config) { c.Cache.Prefix = "fleet:cache" },
			wantValid: false,
		},
		{
			name:      "cache prefix with glob",
			mutate:    func(c *Config) { c.Cache.Prefix = "cache*" },
			wantValid: false,
		},
		{
			name:      "zero cache ttl",
			mutate:    func(c *Config) { c.Cache.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "rate limit enabled without budget",
			mutate:    func(c *Config) { c.Security.AuthRateLimit = 0 },
			wantValid: false,
		},
		{
			name: "rate limit disabled without budget",
			mutate: func(c *Config) {
				c.Security.EnableAuthRateLimit = false
				c.Security.AuthRateLimit = 0
			},
			wantValid: true,
		},
		{
			name:      "negative slow threshold",
			mutate:    func(c *Config) { c.Security.SlowRequestThreshold = -time.Millisecond },
			wantValid: false,
		},
		{
			name: "production mode without atomic revoke",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Refresh.AtomicRevoke = false
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestWithConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'

	if b.config.JWT.AccessSecret[0] == 'X' {
		t.Fatal("builder must not alias the caller's secret slice")
	}
}

func TestWithMetricsDisabledClearsHistograms(t *testing.T) {
	b := New().WithConfig(testConfig()).WithMetricsEnabled(false)
	if b.config.Metrics.EnableLatencyHistograms {
		t.Fatal("expected histograms to be disabled with metrics")
	}
	if err := b.config.Validate(); err != nil {
		t.Fatalf("config should stay valid: %v", err)
	}
}
