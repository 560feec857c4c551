// Package config loads the settings of the sas7bdat command.
//
// Settings are layered, lowest precedence first: built-in defaults, a
// YAML file, SAS7BDAT_ environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultOutput       = "table"
	DefaultLogLevel     = "warn"
	DefaultBufferLength = 1000
	EnvPrefix           = "SAS7BDAT_"
)

// Output formats for the read, metadata and unique commands.
var Outputs = []string{"table", "json", "csv", "objects"}

// LogLevels lists the accepted log levels.
var LogLevels = []string{"debug", "info", "warn", "error", "none"}

// Config holds the command settings.
type Config struct {
	Output       string `koanf:"output"`
	LogLevel     string `koanf:"log_level"`
	Encoding     string `koanf:"encoding"`
	BufferLength int    `koanf:"buffer_length"`
	MetricsFile  string `koanf:"metrics_file"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// findConfigFile returns explicit, or the first default config file
// present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"sas7bdat.yaml", "sas7bdat.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads the configuration.  cfgFile, when set, must exist.  Only the
// flags that were set on the command line override other layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"output":        DefaultOutput,
		"log_level":     DefaultLogLevel,
		"encoding":      "",
		"buffer_length": DefaultBufferLength,
		"metrics_file":  "",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// SAS7BDAT_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values of c.
func (c *Config) Validate() error {
	if !slices.Contains(Outputs, c.Output) {
		return fmt.Errorf("invalid output %q: must be one of %s", c.Output, strings.Join(Outputs, ", "))
	}
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q: must be one of %s", c.LogLevel, strings.Join(LogLevels, ", "))
	}
	if c.BufferLength <= 0 {
		return fmt.Errorf("invalid buffer length %d: must be positive", c.BufferLength)
	}
	return nil
}
