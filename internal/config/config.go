// Package config holds runtime settings and the configuration file store.
//
// Two files are involved: the OpenClaw config document, which is read and
// rewritten by Store, and the optional openclaw-secure preferences file,
// loaded by LoadPreferences. Settings resolve as flag, then preference,
// then built-in default.
package config

import (
	"time"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/logging"
)

// Config holds the runtime configuration shared by all commands
type Config struct {
	Path            string // --config flag, empty when unset
	BackendName     string // --backend flag, empty when unset
	PreferencesPath string
	Logger          *logging.Logger
	Preferences     Preferences
	Store           *Store
}

// New creates a runtime config with defaults applied
func New(logger *logging.Logger) *Config {
	return &Config{
		PreferencesPath: catalog.PreferencesPath,
		Logger:          logger,
		Store:           NewStore(),
	}
}

// LoadPreferences populates c.Preferences from c.PreferencesPath
func (c *Config) LoadPreferences() {
	c.Preferences = LoadPreferences(c.PreferencesPath, c.Logger)
}

// ConfigPath returns the expanded path of the OpenClaw config file
func (c *Config) ConfigPath() string {
	switch {
	case c.Path != "":
		return ExpandPath(c.Path)
	case c.Preferences.ConfigPath != "":
		return ExpandPath(c.Preferences.ConfigPath)
	default:
		return ExpandPath(catalog.DefaultConfigPath)
	}
}

// Backend returns the selected backend name
func (c *Config) Backend() string {
	switch {
	case c.BackendName != "":
		return c.BackendName
	case c.Preferences.Backend != "":
		return c.Preferences.Backend
	default:
		return catalog.DefaultBackend
	}
}

// BackendOptions returns the preference options for a backend, never nil
func (c *Config) BackendOptions(name string) map[string]any {
	if opts, ok := c.Preferences.Backends[name]; ok && opts != nil {
		return opts
	}
	return map[string]any{}
}

// HealthTimeout returns flagMs if positive, else the preference, else the default
func (c *Config) HealthTimeout(flagMs int) time.Duration {
	return pickDuration(flagMs, c.Preferences.TimeoutMs, catalog.DefaultTimeout)
}

// GracePeriod returns flagMs if non-negative, else the preference, else the default
func (c *Config) GracePeriod(flagMs int) time.Duration {
	if flagMs >= 0 {
		return time.Duration(flagMs) * time.Millisecond
	}
	if c.Preferences.GracePeriodMs > 0 {
		return time.Duration(c.Preferences.GracePeriodMs) * time.Millisecond
	}
	return catalog.DefaultGracePeriod
}

// GatewayCommand returns the shell command used by start
func (c *Config) GatewayCommand(flag string) string {
	switch {
	case flag != "":
		return flag
	case c.Preferences.GatewayCommand != "":
		return c.Preferences.GatewayCommand
	default:
		return catalog.DefaultGatewayCommand
	}
}

// HealthPort returns the gateway port polled by start
func (c *Config) HealthPort(flag int) int {
	switch {
	case flag > 0:
		return flag
	case c.Preferences.HealthPort > 0:
		return c.Preferences.HealthPort
	default:
		return catalog.DefaultHealthPort
	}
}

func pickDuration(flagMs, prefMs int, def time.Duration) time.Duration {
	if flagMs > 0 {
		return time.Duration(flagMs) * time.Millisecond
	}
	if prefMs > 0 {
		return time.Duration(prefMs) * time.Millisecond
	}
	return def
}
