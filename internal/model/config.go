package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address (e.g., ":8080").
	Addr string `mapstructure:"addr" yaml:"addr"`

	ReadTimeoutSec  int `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted.
	Path string `mapstructure:"path" yaml:"path"`
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	CookieName   string `mapstructure:"cookie_name" yaml:"cookie_name"`
	SecureCookie bool   `mapstructure:"secure_cookie" yaml:"secure_cookie"`

	// Secret signs session cookies. When empty, SECRET_KEY and then the
	// system keyring are consulted.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// IdleTTLHours is how long an unused session survives. Guests left
	// without a session are removed with their data.
	IdleTTLHours     int `mapstructure:"idle_ttl_hours" yaml:"idle_ttl_hours"`
	SweepIntervalMin int `mapstructure:"sweep_interval_min" yaml:"sweep_interval_min"`
}

// AuthConfig holds account and login settings.
type AuthConfig struct {
	// LoginRatePerMin bounds login and registration attempts per client IP.
	LoginRatePerMin int `mapstructure:"login_rate_per_min" yaml:"login_rate_per_min"`
	BcryptCost      int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
}

// EnvPrefix prefixes environment overrides, e.g. TODOWEB_SERVER_ADDR.
const EnvPrefix = "TODOWEB"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todoweb/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "todoweb", "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
		},
		Database: DatabaseConfig{
			Path: "project.db",
		},
		Session: SessionConfig{
			CookieName:       "todoweb_session",
			IdleTTLHours:     30 * 24,
			SweepIntervalMin: 60,
		},
		Auth: AuthConfig{
			LoginRatePerMin: 30,
			BcryptCost:      10,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and TODOWEB_* environment
// variables still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values. Every key
	// needs a default for AutomaticEnv to pick it up during Unmarshal.
	def := DefaultAppConfig()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.read_timeout_sec", def.Server.ReadTimeoutSec)
	v.SetDefault("server.write_timeout_sec", def.Server.WriteTimeoutSec)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("session.cookie_name", def.Session.CookieName)
	v.SetDefault("session.secure_cookie", def.Session.SecureCookie)
	v.SetDefault("session.secret", def.Session.Secret)
	v.SetDefault("session.idle_ttl_hours", def.Session.IdleTTLHours)
	v.SetDefault("session.sweep_interval_min", def.Session.SweepIntervalMin)
	v.SetDefault("auth.login_rate_per_min", def.Auth.LoginRatePerMin)
	v.SetDefault("auth.bcrypt_cost", def.Auth.BcryptCost)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Auth.LoginRatePerMin <= 0 {
		cfg.Auth.LoginRatePerMin = def.Auth.LoginRatePerMin
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		cfg.Session.CookieName = def.Session.CookieName
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The session secret is never
// written; it belongs in the keyring.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	session := cfg.Session
	session.Secret = ""

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("session", session)
	v.Set("auth", cfg.Auth)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
