package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/platform"
	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// StorageDriver names one persistence backend.
type StorageDriver string

const (
	DriverSQLite StorageDriver = "sqlite"
	DriverFile   StorageDriver = "file"
	DriverRedis  StorageDriver = "redis"
)

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Display DisplayConfig `toml:"display"`
	Confirm ConfirmConfig `toml:"confirm"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	Driver        StorageDriver `toml:"driver"`
	Key           string        `toml:"key"`
	Path          string        `toml:"path"`
	Dir           string        `toml:"dir"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	RedisPrefix   string        `toml:"redis_prefix"`
}

type DisplayConfig struct {
	Locale      string `toml:"locale"`
	Currency    string `toml:"currency"`
	ShowMetrics bool   `toml:"show_metrics"`
}

type ConfirmConfig struct {
	Delete bool `toml:"delete"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the baseline config rooted at the resolved per-user paths.
func Default(paths platform.Paths) Config {
	return Config{
		Storage: StorageConfig{
			Driver:      DriverSQLite,
			Key:         app.DefaultStorageKey,
			Path:        paths.DBPath,
			Dir:         paths.StoreDir,
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "tally:",
		},
		Display: DisplayConfig{
			Locale:      "en",
			Currency:    "$",
			ShowMetrics: true,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     platform.DevLogDir,
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch StorageDriver(strings.ToLower(strings.TrimSpace(string(c.Storage.Driver)))) {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case DriverFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir is required for the file driver")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("storage.redis_addr is required for the redis driver")
		}
		if c.Storage.RedisDB < 0 {
			return fmt.Errorf("invalid storage.redis_db: %d", c.Storage.RedisDB)
		}
	default:
		return fmt.Errorf("invalid storage.driver: %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("storage.key is required")
	}

	if _, err := language.Parse(strings.TrimSpace(c.Display.Locale)); err != nil {
		return fmt.Errorf("invalid display.locale %q: %w", c.Display.Locale, err)
	}

	return c.Logging.Validate()
}

// LocaleTag returns the parsed display locale, falling back to English.
func (c Config) LocaleTag() language.Tag {
	tag, err := language.Parse(strings.TrimSpace(c.Display.Locale))
	if err != nil {
		return language.English
	}
	return tag
}

// Validate checks the configured level parses.
func (l LoggingConfig) Validate() error {
	if _, err := log.ParseLevel(strings.TrimSpace(l.Level)); err != nil {
		return fmt.Errorf("invalid logging.level %q: %w", l.Level, err)
	}
	return nil
}

// LogLevel returns the parsed logging level, falling back to info.
func (l LoggingConfig) LogLevel() log.Level {
	level, err := log.ParseLevel(strings.TrimSpace(l.Level))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// EnsureConfigDir creates the parent directory of a config file path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// ErrConfigExists reports that Write refused to replace an existing file.
var ErrConfigExists = errors.New("config file already exists")

// Write encodes cfg as TOML at path, creating parent directories.
// An existing file is only replaced when overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat config: %w", err)
		}
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Env captures TALLY_* process overrides. Nil pointers mean unset.
type Env struct {
	ConfigPath    *string        `env:"CONFIG"`
	DBPath        *string        `env:"DB_PATH"`
	AppName       *string        `env:"APP_NAME"`
	DevMode       *bool          `env:"DEV_MODE"`
	StorageDriver *StorageDriver `env:"STORAGE_DRIVER"`
	RedisAddr     *string        `env:"REDIS_ADDR"`
}

// ParseEnv reads TALLY_* overrides from the process environment.
func ParseEnv() (Env, error) {
	return ParseEnvFrom(nil)
}

// ParseEnvFrom reads TALLY_* overrides from environ, or the process environment when nil.
func ParseEnvFrom(environ map[string]string) (Env, error) {
	out, err := env.ParseAsWithOptions[Env](env.Options{
		Prefix:      "TALLY_",
		Environment: environ,
	})
	if err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return out, nil
}

// Apply overlays storage overrides onto cfg.
func (e Env) Apply(cfg Config) Config {
	if e.DBPath != nil && strings.TrimSpace(*e.DBPath) != "" {
		cfg.Storage.Path = strings.TrimSpace(*e.DBPath)
	}
	if e.StorageDriver != nil && strings.TrimSpace(string(*e.StorageDriver)) != "" {
		cfg.Storage.Driver = StorageDriver(strings.ToLower(strings.TrimSpace(string(*e.StorageDriver))))
	}
	if e.RedisAddr != nil && strings.TrimSpace(*e.RedisAddr) != "" {
		cfg.Storage.RedisAddr = strings.TrimSpace(*e.RedisAddr)
	}
	return cfg
}
