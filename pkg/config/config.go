package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/slotsync/pkg/types"
	"gopkg.in/yaml.v3"
)

// ScheduleConfig is the fixed scheduling window and roster
type ScheduleConfig struct {
	// StartDate and EndDate bound the window, both inclusive (YYYY-MM-DD).
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	// Roster is the ordered list of people who may claim slots.
	Roster []string `yaml:"roster"`
}

// ServerConfig configures `slotsync serve`
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
}

// ClientConfig configures how a client core reaches the server
type ClientConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// ResyncInterval enables a periodic full fetch; 0 disables it.
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the top-level configuration file
type Config struct {
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			StartDate: "2025-08-29",
			EndDate:   "2025-09-19",
			Roster:    []string{"Karen", "Hillary", "Darlene", "Kelly"},
		},
		Server: ServerConfig{
			Listen:  "127.0.0.1:8080",
			DataDir: "./slotsync-data",
		},
		Client: ClientConfig{
			Endpoint:       "http://127.0.0.1:8080",
			RequestTimeout: 10 * time.Second,
			ReconnectDelay: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Normalize fills zero values with defaults so partial files still work
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Schedule.StartDate == "" {
		c.Schedule.StartDate = def.Schedule.StartDate
	}
	if c.Schedule.EndDate == "" {
		c.Schedule.EndDate = def.Schedule.EndDate
	}
	if c.Schedule.Roster == nil {
		c.Schedule.Roster = def.Schedule.Roster
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = def.Server.DataDir
	}
	if c.Client.Endpoint == "" {
		c.Client.Endpoint = def.Client.Endpoint
	}
	if c.Client.RequestTimeout == 0 {
		c.Client.RequestTimeout = def.Client.RequestTimeout
	}
	if c.Client.ReconnectDelay == 0 {
		c.Client.ReconnectDelay = def.Client.ReconnectDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate checks the window, roster and timeouts
func (c *Config) Validate() error {
	if _, err := c.Range(); err != nil {
		return err
	}

	if len(c.Schedule.Roster) == 0 {
		return errors.New("schedule.roster must not be empty")
	}
	seen := make(map[string]bool, len(c.Schedule.Roster))
	for _, name := range c.Schedule.Roster {
		if strings.TrimSpace(name) == "" {
			return errors.New("schedule.roster contains a blank name")
		}
		if seen[name] {
			return fmt.Errorf("schedule.roster lists %q twice", name)
		}
		seen[name] = true
	}

	if c.Client.RequestTimeout < 0 {
		return errors.New("client.request_timeout must be positive")
	}
	if c.Client.ReconnectDelay < 0 {
		return errors.New("client.reconnect_delay must be positive")
	}
	if c.Client.ResyncInterval < 0 {
		return errors.New("client.resync_interval must not be negative")
	}
	return nil
}

// Range parses the schedule window
func (c *Config) Range() (types.DateRange, error) {
	start, err := types.ParseDate(c.Schedule.StartDate)
	if err != nil {
		return types.DateRange{}, fmt.Errorf("schedule.start_date: %w", err)
	}
	end, err := types.ParseDate(c.Schedule.EndDate)
	if err != nil {
		return types.DateRange{}, fmt.Errorf("schedule.end_date: %w", err)
	}
	return types.NewDateRange(start, end)
}

// Load reads a YAML config file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".slotsync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
