package goFleet

import (
	"bytes"
	"errors"
	"strings"
	"time"
)

// Config is the engine configuration. Start from [DefaultConfig].
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Refresh  RefreshConfig
	Cache    CacheConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds token lifetimes and the two independent HS256 secrets.
// AccessSecret signs access tokens only and RefreshSecret signs refresh
// tokens only, so leaking one never allows forging the other kind.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm and its cost parameters.
type PasswordConfig struct {
	Algorithm      string // "argon2id" (default) or "bcrypt"
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	BcryptCost     int
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh token rotation.
//
// With AtomicRevoke the old record is consumed by a single compare-and-revoke,
// so of several concurrent rotations presenting the same token exactly one
// succeeds. Without it the lookup and the revoke are two separate store calls
// and concurrent callers may each obtain a new pair.
type RefreshConfig struct {
	AtomicRevoke bool
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig configures the tenant response cache.
type CacheConfig struct {
	Prefix string
	TTL    time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the HTTP-facing limits and the production switch.
type SecurityConfig struct {
	ProductionMode       bool
	EnableAuthRateLimit  bool
	AuthRateLimit        int
	AuthRateWindow       time.Duration
	SlowRequestThreshold time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig switches counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with every section populated. Secrets are
// left empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     10,
			MinLength:      6,
			UpgradeOnLogin: true,
		},
		Refresh: RefreshConfig{
			AtomicRevoke: true,
		},
		Cache: CacheConfig{
			Prefix: "cache",
			TTL:    900 * time.Second,
		},
		Security: SecurityConfig{
			EnableAuthRateLimit:  true,
			AuthRateLimit:        20,
			AuthRateWindow:       15 * time.Minute,
			SlowRequestThreshold: 500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if len(c.JWT.AccessSecret) < 16 {
		return errors.New("JWT AccessSecret must be at least 16 bytes")
	}
	if len(c.JWT.RefreshSecret) < 16 {
		return errors.New("JWT RefreshSecret must be at least 16 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	switch strings.ToLower(c.Password.Algorithm) {
	case "argon2id", "":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	case "bcrypt":
		if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Cache
	if strings.TrimSpace(c.Cache.Prefix) == "" {
		return errors.New("Cache Prefix must not be empty")
	}
	if strings.ContainsAny(c.Cache.Prefix, "*?[]\\:") {
		return errors.New("Cache Prefix must not contain glob characters or ':'")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("Cache TTL must be > 0")
	}

	// Security
	if c.Security.EnableAuthRateLimit {
		if c.Security.AuthRateLimit <= 0 {
			return errors.New("Security AuthRateLimit must be > 0")
		}
		if c.Security.AuthRateWindow <= 0 {
			return errors.New("Security AuthRateWindow must be > 0")
		}
	}
	if c.Security.SlowRequestThreshold < 0 {
		return errors.New("Security SlowRequestThreshold must be >= 0")
	}
	if c.Security.ProductionMode && !c.Refresh.AtomicRevoke {
		return errors.New("ProductionMode requires Refresh AtomicRevoke")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
