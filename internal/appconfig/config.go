// Package appconfig loads the fleetd process configuration.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file, a .env file, the process environment, command-line
// flags.
package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration of fleetd.
type Config struct {
	Env      string         `yaml:"env"`
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Cache    CacheConfig    `yaml:"cache"`
	Limits   LimitsConfig   `yaml:"limits"`
	Audit    bool           `yaml:"audit"`
}

type HTTPConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig points at the shared Redis. An empty Addr makes fleetd start
// an embedded in-process Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig points at Postgres. An empty DSN keeps users, tokens and
// devices in memory.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

type JWTConfig struct {
	AccessSecret            string `yaml:"access_secret"`
	RefreshSecret           string `yaml:"refresh_secret"`
	AccessExpirationMinutes int    `yaml:"access_expiration_minutes"`
	RefreshExpirationDays   int    `yaml:"refresh_expiration_days"`
	Issuer                  string `yaml:"issuer"`
}

type CacheConfig struct {
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type LimitsConfig struct {
	AuthRequests int           `yaml:"auth_requests"`
	AuthWindow   time.Duration `yaml:"auth_window"`
	SlowRequest  time.Duration `yaml:"slow_request"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		HTTP: HTTPConfig{
			Port:              3000,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{Migrate: true},
		JWT: JWTConfig{
			AccessExpirationMinutes: 30,
			RefreshExpirationDays:   30,
			Issuer:                  "fleetd",
		},
		Cache: CacheConfig{
			Prefix: "cache",
			TTL:    900 * time.Second,
		},
		Limits: LimitsConfig{
			AuthRequests: 20,
			AuthWindow:   15 * time.Minute,
			SlowRequest:  500 * time.Millisecond,
		},
	}
}

// Load builds a Config from args (without the program name) and the process
// environment.
func Load(args []string) (Config, error) {
	return LoadWith(args, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("fleetd", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	envFile := fs.String("env-file", ".env", "path to a .env file (missing file is ignored)")
	port := fs.Int("port", cfg.HTTP.Port, "HTTP listen port")
	redisAddr := fs.String("redis-addr", "", "Redis address; empty starts an embedded Redis")
	dsn := fs.String("database-dsn", "", "Postgres DSN; empty keeps data in memory")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	env := fs.String("env", cfg.Env, "runtime environment (production enables JSON logs)")
	migrate := fs.Bool("migrate", cfg.Database.Migrate, "apply database migrations on start")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	path := *configPath
	if path == "" {
		path, _ = lookupEnv("CONFIG_FILE")
	}
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}

	vars, err := readEnvFile(*envFile)
	if err != nil {
		return cfg, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			cfg.HTTP.Port = *port
		case "redis-addr":
			cfg.Redis.Addr = *redisAddr
		case "database-dsn":
			cfg.Database.DSN = *dsn
		case "log-level":
			cfg.LogLevel = *logLevel
		case "env":
			cfg.Env = *env
		case "migrate":
			cfg.Database.Migrate = *migrate
		}
	})

	return cfg, cfg.Validate()
}

func loadYAML(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vars, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("APP_ENV", &cfg.Env)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("DATABASE_DSN", &cfg.Database.DSN)
	str("JWT_ACCESS_SECRET", &cfg.JWT.AccessSecret)
	str("JWT_REFRESH_SECRET", &cfg.JWT.RefreshSecret)

	if err := num("PORT", &cfg.HTTP.Port); err != nil {
		return err
	}
	if err := num("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}
	if err := num("JWT_ACCESS_EXPIRATION_MINUTES", &cfg.JWT.AccessExpirationMinutes); err != nil {
		return err
	}
	return num("JWT_REFRESH_EXPIRATION_DAYS", &cfg.JWT.RefreshExpirationDays)
}

// Validate reports the first field that cannot start a server.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.HTTP.Port)
	}
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWT.AccessExpirationMinutes <= 0 || c.JWT.RefreshExpirationDays <= 0 {
		return errors.New("token expirations must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTP.Port)
}

// Production reports whether the process runs in the production environment.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Engine maps the process configuration onto the auth engine configuration.
func (c Config) Engine() goFleet.Config {
	out := goFleet.DefaultConfig()
	out.JWT.AccessSecret = []byte(c.JWT.AccessSecret)
	out.JWT.RefreshSecret = []byte(c.JWT.RefreshSecret)
	out.JWT.AccessTTL = time.Duration(c.JWT.AccessExpirationMinutes) * time.Minute
	out.JWT.RefreshTTL = time.Duration(c.JWT.RefreshExpirationDays) * 24 * time.Hour
	out.JWT.Issuer = c.JWT.Issuer
	out.Cache.Prefix = c.Cache.Prefix
	out.Cache.TTL = c.Cache.TTL
	out.Security.ProductionMode = c.Production()
	out.Security.EnableAuthRateLimit = c.Limits.AuthRequests > 0
	out.Security.AuthRateLimit = c.Limits.AuthRequests
	out.Security.AuthRateWindow = c.Limits.AuthWindow
	out.Security.SlowRequestThreshold = c.Limits.SlowRequest
	out.Audit.Enabled = c.Audit
	return out
}
