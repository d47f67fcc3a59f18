// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for chatterm.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.chatterm/config.toml
//   - ~/.chatterm/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/chatterm/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatterm configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Debug enables the client log file (~/.chatterm/chatterm.log)
	Debug bool `toml:"debug" json:"debug"`

	Client     ClientConfig     `toml:"client" json:"client"`
	Typewriter TypewriterConfig `toml:"typewriter" json:"typewriter"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Ollama     OllamaConfig     `toml:"ollama" json:"ollama"`
	Gemini     GeminiConfig     `toml:"gemini" json:"gemini"`
	UI         UIConfig         `toml:"ui" json:"ui"`
}

// ClientConfig controls how the chat client reaches the backend.
type ClientConfig struct {
	// BaseURL is the backend origin, e.g. "http://127.0.0.1:5000"
	BaseURL    string `toml:"base_url" json:"base_url"`
	ChatPath   string `toml:"chat_path" json:"chat_path"`
	SearchPath string `toml:"search_path" json:"search_path"`
	// RequestTimeoutSecs bounds each request (0 = no timeout)
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// TypewriterConfig tunes the bot reply animation.
type TypewriterConfig struct {
	SpeedMs           int  `toml:"speed_ms" json:"speed_ms"`
	JitterMs          int  `toml:"jitter_ms" json:"jitter_ms"`
	PunctuationFactor int  `toml:"punctuation_factor" json:"punctuation_factor"`
	Disabled          bool `toml:"disabled" json:"disabled"`
}

// ServerConfig contains the backend server settings.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// Provider selects the LLM backend: "ollama" or "gemini"
	Provider string `toml:"provider" json:"provider"`
	// RateLimitPerMinute caps /chat requests per client IP (0 disables)
	RateLimitPerMinute int      `toml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	CORSOrigins        []string `toml:"cors_origins" json:"cors_origins"`
	// SearchBackend is "duckduckgo" (falls back to the LLM) or "llm"
	SearchBackend    string `toml:"search_backend" json:"search_backend"`
	MaxSearchResults int    `toml:"max_search_results" json:"max_search_results"`
}

// OllamaConfig contains local Ollama configuration.
type OllamaConfig struct {
	URL         string `toml:"url" json:"url"`
	Model       string `toml:"model" json:"model"`
	VisionModel string `toml:"vision_model" json:"vision_model"`
}

// GeminiConfig contains Google Gemini configuration.
type GeminiConfig struct {
	APIKey      string `toml:"api_key" json:"api_key"`
	Model       string `toml:"model" json:"model"`
	VisionModel string `toml:"vision_model" json:"vision_model"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// PrefsPath is the preference database (empty = ~/.chatterm/prefs.db)
	PrefsPath string `toml:"prefs_path" json:"prefs_path"`
	// ShowImages draws attached images inline on kitty/iTerm terminals (plain mode)
	ShowImages bool `toml:"show_images" json:"show_images"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Client: ClientConfig{
			BaseURL:    "http://127.0.0.1:5000",
			ChatPath:   "/chat",
			SearchPath: "/search",
		},
		Typewriter: TypewriterConfig{
			SpeedMs:           30,
			JitterMs:          20,
			PunctuationFactor: 3,
		},
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               5000,
			Provider:           "ollama",
			RateLimitPerMinute: 30,
			CORSOrigins:        []string{"*"},
			SearchBackend:      "duckduckgo",
			MaxSearchResults:   4,
		},
		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			Model:       "llama3.2",
			VisionModel: "llava",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-1.5-flash",
			VisionModel: "gemini-1.5-flash",
		},
		UI: UIConfig{
			ShowImages: true,
		},
	}
}

// RequestTimeout returns the client request timeout as a duration.
func (c ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// Addr returns host:port for the backend listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatterm configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CHATTERM_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatterm"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// PrefsPath returns the preference database location.
func (c *Config) PrefsPath() (string, error) {
	if c.UI.PrefsPath != "" {
		return c.UI.PrefsPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prefs.db"), nil
}

// LogPath returns the client debug log location.
func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chatterm.log"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions keeps config files at 0600 since they may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg, err := LoadFromPath(tomlPath)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg, err := LoadFromPath(jsonPath)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Defaults are still usable when a file failed to parse.
	return cfg, loadErr
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
// Booleans are left alone: a zero value there is a real choice.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Version == "" {
		cfg.Version = d.Version
	}

	// Client
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = d.Client.BaseURL
	}
	if cfg.Client.ChatPath == "" {
		cfg.Client.ChatPath = d.Client.ChatPath
	}
	if cfg.Client.SearchPath == "" {
		cfg.Client.SearchPath = d.Client.SearchPath
	}

	// Typewriter
	if cfg.Typewriter.SpeedMs == 0 {
		cfg.Typewriter.SpeedMs = d.Typewriter.SpeedMs
	}
	if cfg.Typewriter.JitterMs == 0 {
		cfg.Typewriter.JitterMs = d.Typewriter.JitterMs
	}
	if cfg.Typewriter.PunctuationFactor == 0 {
		cfg.Typewriter.PunctuationFactor = d.Typewriter.PunctuationFactor
	}

	// Server
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Provider == "" {
		cfg.Server.Provider = d.Server.Provider
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = d.Server.CORSOrigins
	}
	if cfg.Server.SearchBackend == "" {
		cfg.Server.SearchBackend = d.Server.SearchBackend
	}
	if cfg.Server.MaxSearchResults == 0 {
		cfg.Server.MaxSearchResults = d.Server.MaxSearchResults
	}

	// Ollama
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = d.Ollama.URL
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = d.Ollama.Model
	}
	if cfg.Ollama.VisionModel == "" {
		cfg.Ollama.VisionModel = d.Ollama.VisionModel
	}

	// Gemini
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = d.Gemini.Model
	}
	if cfg.Gemini.VisionModel == "" {
		cfg.Gemini.VisionModel = d.Gemini.VisionModel
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg as TOML with a header comment, mode 0600.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# chatterm configuration file\n")
	b.WriteString("# Generated by chatterm - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
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

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateHTTPURL(c.Client.BaseURL); err != nil {
		errs = append(errs, ValidationError{Field: "client.base_url", Message: err.Error()})
	}
	for field, p := range map[string]string{"client.chat_path": c.Client.ChatPath, "client.search_path": c.Client.SearchPath} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("path '%s' must start with /", p)})
		}
	}
	if c.Client.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "client.request_timeout_secs", Message: "must not be negative"})
	}

	if c.Typewriter.SpeedMs < 0 || c.Typewriter.JitterMs < 0 {
		errs = append(errs, ValidationError{Field: "typewriter", Message: "speed_ms and jitter_ms must not be negative"})
	}
	if c.Typewriter.PunctuationFactor < 1 {
		errs = append(errs, ValidationError{Field: "typewriter.punctuation_factor", Message: "must be at least 1"})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", c.Server.Port),
		})
	}
	switch strings.ToLower(c.Server.Provider) {
	case "ollama", "gemini":
	default:
		errs = append(errs, ValidationError{
			Field:   "server.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: ollama, gemini", c.Server.Provider),
		})
	}
	switch strings.ToLower(c.Server.SearchBackend) {
	case "duckduckgo", "llm":
	default:
		errs = append(errs, ValidationError{
			Field:   "server.search_backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: duckduckgo, llm", c.Server.SearchBackend),
		})
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit_per_minute", Message: "must not be negative"})
	}
	if c.Server.MaxSearchResults < 1 || c.Server.MaxSearchResults > 20 {
		errs = append(errs, ValidationError{Field: "server.max_search_results", Message: "must be between 1 and 20"})
	}

	if err := validateHTTPURL(c.Ollama.URL); err != nil {
		errs = append(errs, ValidationError{Field: "ollama.url", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL '%s' must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL '%s' has no host", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - CHATTERM_BASE_URL: overrides client.base_url
//   - CHATTERM_PROVIDER: overrides server.provider
//   - CHATTERM_OLLAMA_URL: overrides ollama.url
//   - CHATTERM_MODEL: overrides ollama.model and gemini.model
//   - CHATTERM_DEBUG: enables the client log file
//   - GEMINI_API_KEY: overrides gemini.api_key
//   - PORT: overrides server.port
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATTERM_BASE_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv("CHATTERM_PROVIDER"); v != "" {
		c.Server.Provider = v
	}
	if v := os.Getenv("CHATTERM_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("CHATTERM_MODEL"); v != "" {
		c.Ollama.Model = v
		c.Gemini.Model = v
	}
	if v := os.Getenv("CHATTERM_DEBUG"); v != "" {
		c.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// String renders the configuration as TOML with secrets masked.
func (c *Config) String() string {
	clone := *c
	if clone.Gemini.APIKey != "" {
		clone.Gemini.APIKey = util.MaskSecret(clone.Gemini.APIKey)
	}
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(&clone); err != nil {
		return fmt.Sprintf("<config encode error: %v>", err)
	}
	return b.String()
}
