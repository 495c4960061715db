package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/harrisonrobin/timebox/pkg/errs"
)

const (
	xdgAppName = "timebox"
	configName = "config"
	configType = "yaml"
	envPrefix  = "TIMEBOX"
	// DirEnv overrides the configuration directory.
	DirEnv = "TIMEBOX_CONFIG_DIR"

	DefaultCalendar     = "primary"
	DefaultSyncInterval = 5 * time.Minute
)

type Config struct {
	// Calendar is the name or id of the calendar to sync with.
	Calendar string `mapstructure:"calendar"`
	// Database is a sqlite path or a postgres URL. Empty means the keyring,
	// then the default sqlite file.
	Database     string        `mapstructure:"database"`
	User         string        `mapstructure:"user"`
	Timezone     string        `mapstructure:"timezone"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	Zoomed       bool          `mapstructure:"zoomed"`
	Debug        bool          `mapstructure:"debug"`

	dir string
}

// GetConfigDir returns the configuration directory, ~/.config/timebox unless
// TIMEBOX_CONFIG_DIR is set.
func GetConfigDir() (string, error) {
	if override := os.Getenv(DirEnv); override != "" {
		return override, nil
	}
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName), nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetDefault("calendar", DefaultCalendar)
	v.SetDefault("database", "")
	v.SetDefault("user", defaultUser())
	v.SetDefault("timezone", "")
	v.SetDefault("sync_interval", DefaultSyncInterval)
	v.SetDefault("zoomed", false)
	v.SetDefault("debug", false)
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads config.yaml from the configuration directory, applying defaults
// and TIMEBOX_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

func LoadFrom(dir string) (*Config, error) {
	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Calendar == "" {
		cfg.Calendar = DefaultCalendar
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	cfg.dir = dir
	return &cfg, nil
}

// Save writes cfg to config.yaml in its directory.
func Save(cfg *Config) error {
	dir := cfg.dir
	if dir == "" {
		var err error
		if dir, err = GetConfigDir(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("calendar", cfg.Calendar)
	v.Set("database", cfg.Database)
	v.Set("user", cfg.User)
	v.Set("timezone", cfg.Timezone)
	v.Set("sync_interval", cfg.SyncInterval.String())
	v.Set("zoomed", cfg.Zoomed)
	v.Set("debug", cfg.Debug)

	path := filepath.Join(dir, configName+"."+configType)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// SetCalendar records the default calendar.
func SetCalendar(cfg *Config, name string) error {
	if name == "" {
		return errs.Validationf("calendar name is empty")
	}
	cfg.Calendar = name
	return Save(cfg)
}

// Dir is the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errs.Validationf("unknown timezone %q", c.Timezone)
	}
	return loc, nil
}

// DefaultDatabasePath is the sqlite file used when nothing else is configured.
func (c *Config) DefaultDatabasePath() string {
	return filepath.Join(c.dir, "timebox.db")
}

// CacheDir is where the local key/value cache lives.
func (c *Config) CacheDir() string {
	return filepath.Join(c.dir, "cache")
}

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}
