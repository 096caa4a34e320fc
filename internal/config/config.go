package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Server ServerConfig `yaml:"server"`
}

// WatchConfig drives the terminal monitor.
type WatchConfig struct {
	ServerURL          string        `yaml:"server_url"`
	Token              string        `yaml:"token"`
	CheckInterval      time.Duration `yaml:"check_interval"`
	WarningThreshold   time.Duration `yaml:"warning_threshold"`
	CriticalThreshold  time.Duration `yaml:"critical_threshold"`
	AutoExtend         bool          `yaml:"auto_extend"`
	ShowWarnings       bool          `yaml:"show_warnings"`
	AutoBackup         bool          `yaml:"auto_backup"`
	Push               bool          `yaml:"push"`
	RestoreReloadDelay time.Duration `yaml:"restore_reload_delay"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	BackupStore        string        `yaml:"backup_store"` // file, bolt or memory
	BackupPath         string        `yaml:"backup_path"`  // directory for file, db path for bolt
	LogFile            string        `yaml:"log_file"`
	LogLevel           string        `yaml:"log_level"`
}

// ServerConfig drives the session backend.
type ServerConfig struct {
	Host             string          `yaml:"host"`
	Port             int             `yaml:"port"`
	SessionTTL       time.Duration   `yaml:"session_ttl"`
	WarningThreshold time.Duration   `yaml:"warning_threshold"`
	Store            string          `yaml:"store"` // memory or redis
	RedisURL         string          `yaml:"redis_url"`
	Retention        time.Duration   `yaml:"retention"`
	PushInterval     time.Duration   `yaml:"push_interval"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	AuthToken        string          `yaml:"auth_token"`
	AllowedOrigins   []string        `yaml:"allowed_origins"`
	SecureCookie     bool            `yaml:"secure_cookie"`
	LogLevel         string          `yaml:"log_level"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			ServerURL:          "http://127.0.0.1:8080",
			CheckInterval:      30 * time.Second,
			WarningThreshold:   5 * time.Minute,
			CriticalThreshold:  time.Minute,
			AutoExtend:         true,
			ShowWarnings:       true,
			Push:               true,
			RestoreReloadDelay: time.Second,
			RequestTimeout:     10 * time.Second,
			BackupStore:        "file",
			LogLevel:           "info",
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			SessionTTL:       time.Hour,
			WarningThreshold: 5 * time.Minute,
			Store:            "memory",
			Retention:        24 * time.Hour,
			PushInterval:     5 * time.Second,
			RateLimit:        RateLimitConfig{RPS: 2, Burst: 5},
			LogLevel:         "info",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/sessionguard/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "sessionguard", "config.yaml")
}

// Load reads path over the defaults and applies SESSIONGUARD_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from files into the process environment
// without overriding variables that are already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

const envPrefix = "SESSIONGUARD_"

func (c *Config) applyEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("SERVER_URL", &c.Watch.ServerURL)
	str("TOKEN", &c.Watch.Token)
	dur("CHECK_INTERVAL", &c.Watch.CheckInterval)
	boolean("AUTO_EXTEND", &c.Watch.AutoExtend)
	boolean("AUTO_BACKUP", &c.Watch.AutoBackup)
	str("BACKUP_STORE", &c.Watch.BackupStore)
	str("BACKUP_PATH", &c.Watch.BackupPath)
	str("LOG_FILE", &c.Watch.LogFile)

	str("HOST", &c.Server.Host)
	integer("PORT", &c.Server.Port)
	dur("SESSION_TTL", &c.Server.SessionTTL)
	str("STORE", &c.Server.Store)
	str("REDIS_URL", &c.Server.RedisURL)
	str("AUTH_TOKEN", &c.Server.AuthToken)

	if v, ok := os.LookupEnv(envPrefix + "LOG_LEVEL"); ok {
		c.Watch.LogLevel = v
		c.Server.LogLevel = v
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	w := c.Watch
	if w.ServerURL == "" {
		errs = append(errs, errors.New("watch.server_url is required"))
	}
	if w.CheckInterval <= 0 {
		errs = append(errs, errors.New("watch.check_interval must be positive"))
	}
	if w.CriticalThreshold <= 0 {
		errs = append(errs, errors.New("watch.critical_threshold must be positive"))
	}
	if w.WarningThreshold <= w.CriticalThreshold {
		errs = append(errs, errors.New("watch.warning_threshold must exceed watch.critical_threshold"))
	}
	if w.RestoreReloadDelay < 0 {
		errs = append(errs, errors.New("watch.restore_reload_delay must not be negative"))
	}
	if w.RequestTimeout <= 0 {
		errs = append(errs, errors.New("watch.request_timeout must be positive"))
	}
	switch w.BackupStore {
	case "file", "bolt", "memory":
	default:
		errs = append(errs, fmt.Errorf("watch.backup_store %q: want file, bolt or memory", w.BackupStore))
	}

	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Port))
	}
	if s.SessionTTL <= s.WarningThreshold {
		errs = append(errs, errors.New("server.session_ttl must exceed server.warning_threshold"))
	}
	switch s.Store {
	case "memory":
	case "redis":
		if s.RedisURL == "" {
			errs = append(errs, errors.New("server.redis_url is required when server.store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("server.store %q: want memory or redis", s.Store))
	}
	if s.RateLimit.RPS < 0 || s.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}
