// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database providers.
const (
	ProviderMongo    = "mongo"
	ProviderPostgres = "postgres"
)

// Supported asset backends.
const (
	AssetsLocal = "local"
	AssetsGCS   = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// DatabaseConfig selects the document store and how to reach it.
type DatabaseConfig struct {
	Provider              string `mapstructure:"provider"`
	Connection            string `mapstructure:"connection"`
	Name                  string `mapstructure:"name"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	ConnectOnStart        bool   `mapstructure:"connect_on_start"`
	MaxConns              int32  `mapstructure:"max_conns"`
}

// AssetsConfig selects where static files are read from.
type AssetsConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// AuthConfig holds credential hashing and throttling settings.
type AuthConfig struct {
	Pepper         string  `mapstructure:"pepper"`
	BcryptCost     int     `mapstructure:"bcrypt_cost"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// LoggingConfig toggles development logging.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// COREAPI_ prefix with dots replaced by underscores, e.g. COREAPI_SERVER_PORT.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COREAPI")
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
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("database.provider", ProviderMongo)
	v.SetDefault("database.connection", "mongodb://localhost:27017/test")
	v.SetDefault("database.name", "")
	v.SetDefault("database.connect_timeout_seconds", 10)
	v.SetDefault("database.connect_on_start", false)
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("assets.backend", AssetsLocal)
	v.SetDefault("assets.dir", "public")
	v.SetDefault("assets.bucket", "")
	v.SetDefault("assets.prefix", "")
	v.SetDefault("auth.pepper", "")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.rate_limit_rps", 5)
	v.SetDefault("auth.rate_limit_burst", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds must be > 0")
	}
	switch c.Database.Provider {
	case ProviderMongo, ProviderPostgres:
	default:
		return fmt.Errorf("database.provider must be %q or %q, got %q", ProviderMongo, ProviderPostgres, c.Database.Provider)
	}
	if strings.TrimSpace(c.Database.Connection) == "" {
		return fmt.Errorf("database.connection is required")
	}
	if c.Database.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("database.connect_timeout_seconds must be > 0")
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Auth.RateLimitRPS < 0 || c.Auth.RateLimitBurst < 0 {
		return fmt.Errorf("auth.rate_limit_rps and auth.rate_limit_burst must be >= 0")
	}
	switch c.Assets.Backend {
	case AssetsLocal:
		if strings.TrimSpace(c.Assets.Dir) == "" {
			return fmt.Errorf("assets.dir must be set for the local backend")
		}
	case AssetsGCS:
		if strings.TrimSpace(c.Assets.Bucket) == "" {
			return fmt.Errorf("assets.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("assets.backend must be %q or %q, got %q", AssetsLocal, AssetsGCS, c.Assets.Backend)
	}
	return nil
}

// RequestTimeout is the per-request handler deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// ConnectTimeout bounds a single database dial.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectTimeoutSeconds) * time.Second
}
