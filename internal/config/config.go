// Package config handles configuration loading and validation for movephotos.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"movephotos/internal/audit"
	"movephotos/internal/deduction"
	"movephotos/internal/filter"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound      ConfigErrorType = "FILE_NOT_FOUND"
	InvalidFormat     ConfigErrorType = "INVALID_FORMAT"
	UnsupportedFormat ConfigErrorType = "UNSUPPORTED_FORMAT"
	ValidationError   ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		if e.Message != "" {
			return fmt.Sprintf("cannot read configuration file %s: %s", e.Path, e.Message)
		}
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidFormat:
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	case UnsupportedFormat:
		return fmt.Sprintf("unsupported configuration format %q (use .json, .yaml, .yml or .toml)", filepath.Ext(e.Path))
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// WatchConfig holds settings for watch mode.
type WatchConfig struct {
	DebounceSeconds float64  `json:"debounceSeconds" yaml:"debounceSeconds" toml:"debounceSeconds"`
	IgnorePatterns  []string `json:"ignorePatterns" yaml:"ignorePatterns" toml:"ignorePatterns"`
}

// Configuration holds all settings for movephotos.
type Configuration struct {
	UnwantedPatterns []string           `json:"unwantedPatterns" yaml:"unwantedPatterns" toml:"unwantedPatterns"`
	Strategies       []string           `json:"strategies" yaml:"strategies" toml:"strategies"`
	Concurrency      int                `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	HashCache        string             `json:"hashCache,omitempty" yaml:"hashCache,omitempty" toml:"hashCache,omitempty"`
	FollowSymlinks   bool               `json:"followSymlinks" yaml:"followSymlinks" toml:"followSymlinks"`
	Audit            *audit.AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty" toml:"audit,omitempty"`
	Watch            WatchConfig        `json:"watch" yaml:"watch" toml:"watch"`
}

// DefaultDebounceSeconds is the settle time for watch mode.
const DefaultDebounceSeconds = 2.0

// Default returns the configuration used when no file is given.
func Default() *Configuration {
	c := &Configuration{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values with their defaults. An empty audit
// log directory leaves auditing disabled.
func (c *Configuration) ApplyDefaults() {
	if len(c.UnwantedPatterns) == 0 {
		c.UnwantedPatterns = filter.DefaultUnwantedPatterns()
	}
	if len(c.Strategies) == 0 {
		c.Strategies = deduction.DefaultStrategyNames()
	}
	if c.Concurrency == 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.Audit == nil {
		c.Audit = &audit.AuditConfig{}
	}
	if c.Watch.DebounceSeconds == 0 {
		c.Watch.DebounceSeconds = DefaultDebounceSeconds
	}
	if len(c.Watch.IgnorePatterns) == 0 {
		c.Watch.IgnorePatterns = filter.PartialDownloadPatterns()
	}
}

// Validate checks the configuration and returns the first error found.
func (c *Configuration) Validate() error {
	result := ValidateConfig(c)
	if result.Valid {
		return nil
	}
	first := result.Errors[0]
	return &ConfigError{
		Type:    ValidationError,
		Message: fmt.Sprintf("%s: %s", first.Field, first.Message),
	}
}

// Load reads, parses, defaults and validates a configuration file. The
// format is chosen by extension.
func Load(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Type: FileNotFound, Path: filePath}
		}
		return nil, &ConfigError{Type: FileNotFound, Path: filePath, Message: err.Error()}
	}

	config, err := Parse(filePath, data)
	if err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes data in the format implied by name's extension. Unknown
// fields are rejected so typos do not silently fall back to defaults.
func Parse(name string, data []byte) (*Configuration, error) {
	var config Configuration
	var err error

	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&config)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&config)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case ".toml":
		var md toml.MetaData
		md, err = toml.Decode(string(data), &config)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown field %q", undecoded[0].String())
			}
		}
	default:
		return nil, &ConfigError{Type: UnsupportedFormat, Path: name}
	}

	if err != nil {
		return nil, &ConfigError{Type: InvalidFormat, Path: name, Message: err.Error()}
	}
	return &config, nil
}
