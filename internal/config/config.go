// Package config loads fitx settings from flags, FITX_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmcleod/fitx/internal/util"
)

const (
	EnvPrefix = "FITX"

	StoreBBolt  = "bbolt"
	StoreMemory = "memory"

	sessionDBName   = "session.db"
	wrappingKeyName = "wrapping.key"
)

// Config holds every fitx setting.
type Config struct {
	APIURL           string        `mapstructure:"api_url"`
	DataDir          string        `mapstructure:"data_dir"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Store            string        `mapstructure:"store"`
	WrappingKey      string        `mapstructure:"wrapping_key"`
	StrictUserRoutes bool          `mapstructure:"strict_user_routes"`
	LogLevel         string        `mapstructure:"log_level"`

	Listen          string        `mapstructure:"listen"`
	AdminInviteCode string        `mapstructure:"admin_invite_code"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	SigningKey      string        `mapstructure:"signing_key"`
}

// New returns a viper instance with defaults and FITX_* environment
// lookup configured.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:5000/api")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("timeout", "15s")
	v.SetDefault("store", StoreBBolt)
	v.SetDefault("wrapping_key", "")
	v.SetDefault("strict_user_routes", false)
	v.SetDefault("log_level", "warn")

	v.SetDefault("listen", ":5000")
	v.SetDefault("admin_invite_code", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("signing_key", "")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fitx")
	}
	return "./data"
}

// BindFlags binds every flag in fs whose name, with dashes replaced by
// underscores, is a config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKnownKey(key) {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("binding flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func isKnownKey(key string) bool {
	switch key {
	case "api_url", "data_dir", "timeout", "store", "wrapping_key", "strict_user_routes",
		"log_level", "listen", "admin_invite_code", "token_ttl", "signing_key":
		return true
	}
	return false
}

// Load reads the optional config file at path into v, then decodes and
// validates the merged settings.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	switch c.Store {
	case StoreBBolt:
		if c.DataDir == "" {
			return fmt.Errorf("data_dir is required for the %s store", StoreBBolt)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreBBolt, StoreMemory, c.Store)
	}
	if c.WrappingKey != "" {
		if _, err := util.DecodeKeyHex(c.WrappingKey); err != nil {
			return fmt.Errorf("wrapping_key: %w", err)
		}
	}
	if c.SigningKey != "" && len(c.SigningKey) < 32 {
		return fmt.Errorf("signing_key must be at least 32 characters")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}

// SessionDBPath is where the bbolt token store lives.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.DataDir, sessionDBName)
}

// WrappingKeyPath is where a generated wrapping key is kept.
func (c *Config) WrappingKeyPath() string {
	return filepath.Join(c.DataDir, wrappingKeyName)
}

// Logger builds a text logger at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

// Level is the configured log level, or warn when it does not parse.
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
