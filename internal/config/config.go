package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/skiff/internal/logging"
	"github.com/dshills/skiff/internal/lsp"
)

// Config is the root of the editor configuration. Field tags cover all
// three file formats; the Lua loader reuses the JSON tags.
type Config struct {
	LogLevel string    `toml:"log_level" yaml:"log_level" json:"log_level"`
	LogFile  string    `toml:"log_file" yaml:"log_file" json:"log_file"`
	UI       UIConfig  `toml:"ui" yaml:"ui" json:"ui"`
	LSP      LSPConfig `toml:"lsp" yaml:"lsp" json:"lsp"`
}

// UIConfig holds terminal UI settings.
type UIConfig struct {
	// FrameMS is the render loop interval in milliseconds.
	FrameMS int `toml:"frame_ms" yaml:"frame_ms" json:"frame_ms"`
	// InlayHints requests inlay hints for the visible buffer.
	InlayHints bool `toml:"inlay_hints" yaml:"inlay_hints" json:"inlay_hints"`
}

// LSPConfig holds language server settings keyed by language ID.
type LSPConfig struct {
	// Root overrides the workspace root sent to servers. Empty means
	// the process working directory.
	Root    string                 `toml:"root" yaml:"root" json:"root"`
	Servers map[string]ServerEntry `toml:"servers" yaml:"servers" json:"servers"`
}

// ServerEntry configures one language server. Enabled and AutoStart are
// pointers so an entry that only overrides the command keeps the
// built-in defaults for both; decoding into a fresh struct would
// otherwise read them as false.
type ServerEntry struct {
	Command           string   `toml:"command" yaml:"command" json:"command"`
	Args              []string `toml:"args" yaml:"args" json:"args"`
	Enabled           *bool    `toml:"enabled" yaml:"enabled" json:"enabled"`
	AutoStart         *bool    `toml:"autostart" yaml:"autostart" json:"autostart"`
	QueueDepth        int      `toml:"queue_depth" yaml:"queue_depth" json:"queue_depth"`
	StartupTimeoutMS  int      `toml:"startup_timeout_ms" yaml:"startup_timeout_ms" json:"startup_timeout_ms"`
	ShutdownTimeoutMS int      `toml:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" json:"shutdown_timeout_ms"`
}

// DefaultFrameMS is the render loop interval used when the config file
// does not set one.
const DefaultFrameMS = 16

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		UI: UIConfig{
			FrameMS: DefaultFrameMS,
		},
		LSP: LSPConfig{
			Servers: map[string]ServerEntry{},
		},
	}
}

// Validate checks field values and returns every problem found joined
// into one error. Each problem is a *ValidationError.
func (c *Config) Validate() error {
	var errs []error

	if !validLogLevel(c.LogLevel) {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown level %q (want debug, info, warn, or error)", c.LogLevel),
		})
	}
	if c.UI.FrameMS < 0 {
		errs = append(errs, &ValidationError{Field: "ui.frame_ms", Message: "must not be negative"})
	}
	for lang, entry := range c.LSP.Servers {
		if entry.QueueDepth < 0 {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("lsp.servers.%s.queue_depth", lang),
				Message: "must not be negative",
			})
		}
		if entry.StartupTimeoutMS < 0 {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("lsp.servers.%s.startup_timeout_ms", lang),
				Message: "must not be negative",
			})
		}
		if entry.ShutdownTimeoutMS < 0 {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("lsp.servers.%s.shutdown_timeout_ms", lang),
				Message: "must not be negative",
			})
		}
	}

	return errors.Join(errs...)
}

func validLogLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// LogLevelValue returns the configured log level in logging's terms.
func (c *Config) LogLevelValue() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

// FrameInterval returns the render loop interval as a duration.
func (c *Config) FrameInterval() time.Duration {
	ms := c.UI.FrameMS
	if ms <= 0 {
		ms = DefaultFrameMS
	}
	return time.Duration(ms) * time.Millisecond
}

// ServerConfigs merges the configured server entries over the built-in
// server table and returns the result in the form the LSP manager
// consumes. Entries for languages without a built-in default are
// included as-is; built-in languages keep their defaults for any field
// the entry leaves unset.
func (c *Config) ServerConfigs() map[string]lsp.ServerConfig {
	out := lsp.DefaultServerConfigs()
	for lang, entry := range c.LSP.Servers {
		base, ok := out[lang]
		if !ok {
			base = lsp.ServerConfig{Enabled: true, AutoStart: true}
		}
		out[lang] = entry.apply(base)
	}
	return out
}

// apply overlays the entry onto a base config, keeping base values for
// unset fields.
func (e ServerEntry) apply(base lsp.ServerConfig) lsp.ServerConfig {
	if e.Command != "" {
		// Args travel with the command, even when empty.
		base.Command = e.Command
		base.Args = append([]string(nil), e.Args...)
	} else if len(e.Args) > 0 {
		base.Args = append([]string(nil), e.Args...)
	}
	if e.Enabled != nil {
		base.Enabled = *e.Enabled
	}
	if e.AutoStart != nil {
		base.AutoStart = *e.AutoStart
	}
	if e.QueueDepth > 0 {
		base.Limits.QueueDepth = e.QueueDepth
	}
	if e.StartupTimeoutMS > 0 {
		base.Limits.StartupTimeout = time.Duration(e.StartupTimeoutMS) * time.Millisecond
	}
	if e.ShutdownTimeoutMS > 0 {
		base.Limits.ShutdownTimeout = time.Duration(e.ShutdownTimeoutMS) * time.Millisecond
	}
	return base
}
