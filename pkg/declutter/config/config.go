package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// DefaultsConfig seeds the settings store on a fresh install.
type DefaultsConfig struct {
	ThresholdMinutes   float64 `mapstructure:"threshold_minutes"`
	AutoApprove        bool    `mapstructure:"auto_approve"`
	AlarmPeriodMinutes float64 `mapstructure:"alarm_period_minutes"`
}

// MediaConfig configures playback detection.
type MediaConfig struct {
	Patterns     []string      `mapstructure:"patterns"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// BrowserConfig configures the browser connection.
type BrowserConfig struct {
	// CDPURL is the Chrome DevTools endpoint. Empty runs the daemon without
	// a browser; tab events then arrive only over the API.
	CDPURL    string `mapstructure:"cdp_url"`
	ReviewURL string `mapstructure:"review_url"`
}

// DaemonConfig configures the background daemon.
type DaemonConfig struct {
	AutoStart  bool   `mapstructure:"auto_start"`
	BinaryPath string `mapstructure:"binary_path"` // Path to declutterd (auto-discovered if empty)
	SocketPath string `mapstructure:"socket_path"`
	PIDPath    string `mapstructure:"pid_path"`
	DBPath     string `mapstructure:"db_path"`
}

// HistoryConfig configures the record of closed tabs.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Media    MediaConfig    `mapstructure:"media"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/declutter/config.yaml
//   - $HOME/.config/declutter/config.yaml
//
// Environment variables are prefixed with DECLUTTER_ (e.g.,
// DECLUTTER_BROWSER_CDP_URL).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations; a missing explicit file is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", appName))
	}

	v.SetEnvPrefix("DECLUTTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for _, p := range []*string{&cfg.Logging.Path, &cfg.History.Path, &cfg.Daemon.SocketPath, &cfg.Daemon.PIDPath, &cfg.Daemon.DBPath, &cfg.Daemon.BinaryPath} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("defaults.threshold_minutes", DefaultThresholdMinutes)
	v.SetDefault("defaults.auto_approve", DefaultAutoApprove)
	v.SetDefault("defaults.alarm_period_minutes", DefaultAlarmPeriodMinutes)

	v.SetDefault("media.patterns", DefaultMediaPatterns)
	v.SetDefault("media.probe_timeout", DefaultProbeTimeout)

	v.SetDefault("browser.cdp_url", "")
	v.SetDefault("browser.review_url", DefaultReviewURL)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means use DefaultHistoryDir
	v.SetDefault("history.retention_days", DefaultHistoryRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)

	v.SetDefault("daemon.auto_start", true)
	v.SetDefault("daemon.socket_path", "") // Empty means use default XDG path
	v.SetDefault("daemon.pid_path", "")
	v.SetDefault("daemon.db_path", "")
}

// PolicyDefaults returns the settings used before any override is stored.
func (c *Config) PolicyDefaults() settings.Settings {
	return settings.Settings{
		ThresholdMinutes:   c.Defaults.ThresholdMinutes,
		AutoApprove:        c.Defaults.AutoApprove,
		AlarmPeriodMinutes: c.Defaults.AlarmPeriodMinutes,
	}
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	path := c.Logging.Path
	if path == "" {
		path = DefaultLogPath()
	}
	return logging.Config{
		Level:      c.Logging.Level,
		Path:       path,
		Rotation:   ParseRotation(c.Logging.Rotation),
		Components: c.Logging.Components,
	}
}

// HistoryDir returns the configured closed-tab history directory or the
// default.
func (c *Config) HistoryDir() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryDir()
}

// SocketPath returns the configured socket path or the default.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return DefaultSocketPath()
}

// PIDPath returns the configured PID file path or the default.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	return DefaultPIDPath()
}

// DBPath returns the configured database path or the default.
func (c *Config) DBPath() string {
	if c.Daemon.DBPath != "" {
		return c.Daemon.DBPath
	}
	return DefaultDBPath()
}

// ParseRotation converts human-readable rotation settings. An empty or
// invalid max_size falls back to DefaultLogMaxSize.
func ParseRotation(r RotationConfig) logging.RotationConfig {
	defaultSize, _ := humanize.ParseBytes(DefaultLogMaxSize)
	size := defaultSize
	if r.MaxSize != "" {
		if parsed, err := humanize.ParseBytes(r.MaxSize); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return logging.RotationConfig{
		MaxSize:    int64(size),
		MaxAge:     r.MaxAge,
		MaxBackups: r.MaxBackups,
		Daily:      r.Daily,
	}
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigFile returns the path of the default config file.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath, err := ConfigFile()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Declutter Configuration

# Policy used until settings are changed through the CLI or the review page
defaults:
  threshold_minutes: %d
  auto_approve: %t
  alarm_period_minutes: %d

# Tabs on these sites are left open while media is playing
media:
  patterns:
    - "%s"
  probe_timeout: %s

# Browser connection
browser:
  # Chrome DevTools endpoint, e.g. http://127.0.0.1:9222 (empty disables)
  cdp_url: ""
  # Page opened for reviewing queued tabs
  review_url: %s

# Record of closed tabs, listed by 'declutter history'
history:
  enabled: true
  # Directory (empty means use default: $XDG_DATA_HOME/declutter/history)
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/declutter/declutter.log)
  path: ""
  rotation:
    max_size: %s
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    daemon: info
    engine: info
    selector: info
    browser: info
    watcher: warn
    client: info

# Daemon configuration
daemon:
  # Automatically start the daemon when running declutter commands
  auto_start: true
  # Unix socket path (empty means use default: $XDG_DATA_HOME/declutter/declutter.sock)
  socket_path: ""
  # PID file path (empty means use default: $XDG_DATA_HOME/declutter/declutter.pid)
  pid_path: ""
  # Database directory (empty means use default: $XDG_DATA_HOME/declutter/declutter.db)
  db_path: ""
`, DefaultThresholdMinutes, DefaultAutoApprove, DefaultAlarmPeriodMinutes,
		DefaultMediaPatterns[0], DefaultProbeTimeout, DefaultReviewURL, DefaultHistoryRetentionDays, DefaultLogMaxSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/declutter/ for database, socket, and pid files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns $XDG_STATE_HOME/declutter/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultSocketPath returns the default Unix socket path.
func DefaultSocketPath() string {
	return filepath.Join(DataDir(), "declutter.sock")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "declutter.pid")
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "declutter.db")
}

// DefaultHistoryDir returns the default closed-tab history directory.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return logging.DefaultLogPath()
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
