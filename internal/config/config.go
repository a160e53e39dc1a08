// Package config loads calculator settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full set of calculator settings.
type Config struct {
	// Digits is the number of significant digits in results.
	Digits int `toml:"digits"`
	// Prompt is the REPL prompt.
	Prompt string `toml:"prompt"`
	// HistoryFile is where the REPL keeps line-editing history. Empty
	// disables it.
	HistoryFile string `toml:"history_file"`
	// HistoryWindow is the number of entries :history shows.
	HistoryWindow int `toml:"history_window"`
	// MaxInput is the longest line, in runes, that is processed.
	MaxInput int `toml:"max_input"`
	// MaxDepth is the deepest nesting the parser accepts.
	MaxDepth int `toml:"max_depth"`
	// Echo prints each expression's parse tree before its result.
	Echo bool `toml:"echo"`

	Log     Log     `toml:"log"`
	Journal Journal `toml:"journal"`
}

// Log configures structured logging.
type Log struct {
	// Level is one of debug, info, warn, error, or none.
	Level string `toml:"level"`
	// File is the log destination. Empty means stderr.
	File string `toml:"file"`
}

// Journal configures the optional SQL journal of history entries.
type Journal struct {
	// Driver is sqlite3, mysql, or postgres. Empty disables the journal.
	Driver string `toml:"driver"`
	// DSN is the driver-specific data source name.
	DSN string `toml:"dsn"`
}

// Default returns the settings used when no file overrides them.
func Default() Config {
	c := Config{
		Digits:        28,
		Prompt:        "calc> ",
		HistoryWindow: 50,
		MaxInput:      4096,
		MaxDepth:      200,
		Log:           Log{Level: "none"},
	}
	if dir, err := os.UserConfigDir(); err == nil {
		c.HistoryFile = filepath.Join(dir, "calc", "history")
	}
	return c
}

// DefaultPath returns the location of the configuration file used when none
// is named, or the empty string if there is no user configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "calc", "config.toml")
}

// Load reads settings from a TOML file over the defaults. If optional is
// true, a missing file gives the defaults without error. Keys that name no
// setting are an error.
func Load(path string, optional bool) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("reading config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks that settings are in range.
func (c *Config) Validate() error {
	switch {
	case c.Digits < 1 || c.Digits > 1000:
		return fmt.Errorf("digits must be between 1 and 1000, not %d", c.Digits)
	case c.HistoryWindow < 1:
		return fmt.Errorf("history_window must be positive, not %d", c.HistoryWindow)
	case c.MaxInput < 1:
		return fmt.Errorf("max_input must be positive, not %d", c.MaxInput)
	case c.MaxDepth < 1:
		return fmt.Errorf("max_depth must be positive, not %d", c.MaxDepth)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "none", "":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Journal.Driver {
	case "", "sqlite3", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	if c.Journal.Driver != "" && c.Journal.DSN == "" {
		return errors.New("journal driver given without a dsn")
	}
	return nil
}
