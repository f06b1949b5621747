// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollamachat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file location:
//   - ~/.ollamachat/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollamachat configuration.
type Config struct {
	// Server settings
	Server ServerConfig `toml:"server"`

	// Chat settings
	Chat ChatConfig `toml:"chat"`

	// Generation parameters
	Generation GenerationConfig `toml:"generation"`

	// Logging settings
	Log LogConfig `toml:"log"`
}

// ServerConfig contains inference server connection settings.
type ServerConfig struct {
	// URL is the base URL of the inference server
	URL string `toml:"url"`
	// Autostart attempts to launch a local server when it is not running
	Autostart bool `toml:"autostart"`
}

// ChatConfig contains conversation settings.
type ChatConfig struct {
	// Model is the preferred model; empty selects the first available
	Model string `toml:"model"`
	// DocumentModel answers questions about extracted documents
	DocumentModel string `toml:"document_model"`
	// SystemPrompt is sent ahead of the history on every request
	SystemPrompt string `toml:"system_prompt"`
}

// GenerationConfig contains sampling parameters. Zero values mean "unset"
// and are not sent to the server.
type GenerationConfig struct {
	Temperature   float64 `toml:"temperature"`
	TopK          int     `toml:"top_k"`
	TopP          float64 `toml:"top_p"`
	RepeatPenalty float64 `toml:"repeat_penalty"`
	NumCtx        int     `toml:"num_ctx"`
	NumPredict    int     `toml:"num_predict"`
	Seed          int     `toml:"seed"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `toml:"level"`
	// Path is the log file path (empty = stderr)
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:       "http://localhost:11434",
			Autostart: true,
		},
		Chat: ChatConfig{
			Model:         "",
			DocumentModel: "llama3.2",
			SystemPrompt:  "",
		},
		Generation: GenerationConfig{
			Temperature: 0, // server default
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the ollamachat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollamachat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults
// when the file does not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# ollamachat configuration file")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns the first error found.
func (c *Config) Validate() error {
	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ValidationError{
				Field:   "server.url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Server.URL),
			}
		}
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return ValidationError{
			Field:   "generation.temperature",
			Message: fmt.Sprintf("must be between 0.0 and 2.0, got %g", c.Generation.Temperature),
		}
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return ValidationError{
			Field:   "generation.top_p",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %g", c.Generation.TopP),
		}
	}
	if c.Generation.TopK < 0 {
		return ValidationError{
			Field:   "generation.top_k",
			Message: "must be non-negative",
		}
	}
	if c.Generation.NumCtx < 0 {
		return ValidationError{
			Field:   "generation.num_ctx",
			Message: "must be non-negative",
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		}
	}

	return nil
}

// SetDefaults fills in any missing values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Chat.DocumentModel == "" {
		c.Chat.DocumentModel = defaults.Chat.DocumentModel
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMACHAT_URL: overrides server.url
//   - OLLAMACHAT_MODEL: overrides chat.model
//   - OLLAMACHAT_DOCUMENT_MODEL: overrides chat.document_model
//   - OLLAMACHAT_SYSTEM_PROMPT: overrides chat.system_prompt
//   - OLLAMACHAT_TEMPERATURE: overrides generation.temperature
//   - OLLAMACHAT_LOG_LEVEL: overrides log.level
//   - OLLAMACHAT_NO_AUTOSTART: set to "1" or "true" to disable server autostart
func (c *Config) ApplyEnvOverrides() {
	if serverURL := os.Getenv("OLLAMACHAT_URL"); serverURL != "" {
		c.Server.URL = serverURL
	}

	if model := os.Getenv("OLLAMACHAT_MODEL"); model != "" {
		c.Chat.Model = model
	}

	if docModel := os.Getenv("OLLAMACHAT_DOCUMENT_MODEL"); docModel != "" {
		c.Chat.DocumentModel = docModel
	}

	if prompt := os.Getenv("OLLAMACHAT_SYSTEM_PROMPT"); prompt != "" {
		c.Chat.SystemPrompt = prompt
	}

	if temp := os.Getenv("OLLAMACHAT_TEMPERATURE"); temp != "" {
		if parsed, err := strconv.ParseFloat(temp, 64); err == nil {
			c.Generation.Temperature = parsed
		}
	}

	if level := os.Getenv("OLLAMACHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if noStart := os.Getenv("OLLAMACHAT_NO_AUTOSTART"); noStart != "" {
		if noStart == "1" || strings.ToLower(noStart) == "true" {
			c.Server.Autostart = false
		}
	}
}
