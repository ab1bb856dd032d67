package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"array/internal/logging"
	"array/internal/repository"
	"array/pkg/fileops"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "array" // application name used for config and data directories

const (
	// BackendExec clones with the git binary over SSH.
	BackendExec = "exec"
	// BackendGoGit clones in-process over HTTPS with the keyring token.
	BackendGoGit = "go-git"
)

const (
	defaultPollIntervalMs = 1000
	defaultProbeTimeout   = 5 * time.Second
	defaultMaxOutputBytes = 10 << 20
)

// Config holds user configuration for array.
type Config struct {
	// WorkspaceRoot is the directory repositories are cloned into. It may
	// start with "~".
	WorkspaceRoot string       `yaml:"workspace_root"`
	Remote        RemoteConfig `yaml:"remote"`
	Clone         CloneConfig  `yaml:"clone"`
	Poll          PollConfig   `yaml:"poll"`
	// StatePath overrides the location of the state database.
	StatePath string `yaml:"state_path,omitempty"`
	Version   string `yaml:"version"`   // Track config version
	InitTime  int64  `yaml:"init_time"` // Unix timestamp of first setup
}

type RemoteConfig struct {
	Host string `yaml:"host"`
	User string `yaml:"user"`
}

type CloneConfig struct {
	Backend        string        `yaml:"backend"`
	MaxOutputBytes int           `yaml:"max_output_bytes"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
}

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ConfigPath returns the config file location, honouring ARRAY_CONFIG_PATH.
func ConfigPath() (string, error) {
	if override := os.Getenv("ARRAY_CONFIG_PATH"); override != "" {
		return fileops.ExpandPath(override), nil
	}

	configPath := filepath.Join(xdg.ConfigHome, APP_NAME, "config.yaml")
	logging.Debug("Determined config path", "path", configPath)
	return configPath, nil
}

// Load loads the config from the standard location
// If no config exists, it returns an error indicating first run is needed
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	logging.Debug("Loading config from", "path", configPath)
	if !exists {
		return nil, fmt.Errorf("no configuration found, run `array init <directory>` first")
	}

	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path. Missing sections are filled
// from DefaultConfig.
func LoadFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Clone.Backend {
	case BackendExec, BackendGoGit:
	default:
		return fmt.Errorf("unknown clone backend %q (expected %q or %q)", c.Clone.Backend, BackendExec, BackendGoGit)
	}
	if c.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll interval cannot be negative")
	}
	if c.Clone.MaxOutputBytes < 0 {
		return fmt.Errorf("max output bytes cannot be negative")
	}
	return nil
}

// FindConfigFile returns the path to an existing config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary, err := ConfigPath()
	if err != nil {
		logging.Error("Failed to get config path", "error", err)
		return "", false
	}

	if _, err := os.Stat(primary); err == nil {
		logging.Debug("Config found at primary path", "path", primary)
		return primary, true
	}

	// Return primary path for new config
	return primary, false
}

// IsFirstRun checks if this is the first time the application is run
func IsFirstRun() bool {
	_, exists := FindConfigFile()
	return !exists
}

// DefaultConfig returns a Config with sensible defaults. The workspace root
// is left empty until the user picks one.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			Host: repository.DefaultHost,
			User: "git",
		},
		Clone: CloneConfig{
			Backend:        BackendExec,
			MaxOutputBytes: defaultMaxOutputBytes,
			ProbeTimeout:   defaultProbeTimeout,
		},
		Poll: PollConfig{
			IntervalMs: defaultPollIntervalMs,
		},
		Version:  "1.0",
		InitTime: 0, // Will be set during first save
	}
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	configPath, _ := FindConfigFile()
	return c.SaveTo(configPath)
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may name private hosts
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// SetWorkspaceRoot validates root, creates the directory and stores it in
// the config. The unexpanded form is kept so "~/work" survives a home move.
// The config is not saved.
func (c *Config) SetWorkspaceRoot(root string) error {
	root = strings.TrimSpace(root)
	expanded, err := repository.ExpandWorkspaceRoot(root)
	if err != nil {
		return err
	}
	if fileops.IsReservedDirectory(expanded) {
		return fmt.Errorf("cannot use system directory %s as workspace root", expanded)
	}
	if err := fileops.EnsureDirectoryExists(expanded); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}

	c.WorkspaceRoot = root
	logging.Info("Workspace root updated", "root", root, "expanded", expanded)
	return nil
}

// CreateNewConfig initializes a new configuration with the given workspace
// root and saves it to the standard location.
func CreateNewConfig(workspaceRoot string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.SetWorkspaceRoot(workspaceRoot); err != nil {
		return nil, err
	}

	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	logging.Info("Configuration created successfully", "workspace_root", cfg.WorkspaceRoot)
	return &cfg, nil
}

// PollInterval returns the reconciliation poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.Poll.IntervalMs <= 0 {
		return defaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// ProbeTimeout returns the connectivity probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	if c.Clone.ProbeTimeout <= 0 {
		return defaultProbeTimeout
	}
	return c.Clone.ProbeTimeout
}

// Host returns the configured remote host or the default.
func (c *Config) Host() string {
	if c.Remote.Host == "" {
		return repository.DefaultHost
	}
	return c.Remote.Host
}

// ResolvedStatePath returns where the state database lives:
// ARRAY_STATE_PATH, then StatePath, then xdg.DataHome/array/state.db.
func (c *Config) ResolvedStatePath() string {
	if override := os.Getenv("ARRAY_STATE_PATH"); override != "" {
		return fileops.ExpandPath(override)
	}
	if c.StatePath != "" {
		return fileops.ExpandPath(c.StatePath)
	}
	return filepath.Join(xdg.DataHome, APP_NAME, "state.db")
}
