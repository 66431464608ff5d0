package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Library Library `toml:"library"`
	Audio   Audio   `toml:"audio"`
	Cache   Cache   `toml:"cache"`
	Logging Logging `toml:"logging"`
}

// Library contains music library configuration
type Library struct {
	Path             string   `toml:"path"`
	SupportedFormats []string `toml:"supported_formats"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
}

// Audio contains playback configuration
type Audio struct {
	BlockSizeFrames int    `toml:"block_size_frames"`
	DefaultVolume   int    `toml:"default_volume"` // 0-100
	LoopMode        string `toml:"loop_mode"`      // none, song or list
}

// Cache contains metadata cache configuration
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	libraryPath := "./music"
	if home, err := os.UserHomeDir(); err == nil {
		libraryPath = filepath.Join(home, "Music")
	}

	return &Config{
		Library: Library{
			Path:             libraryPath,
			SupportedFormats: []string{".wav", ".mp3", ".flac"},
			WatchForChanges:  true,
			ScanOnStartup:    true,
		},
		Audio: Audio{
			BlockSizeFrames: 2048,
			DefaultVolume:   100,
			LoopMode:        "none",
		},
		Cache: Cache{
			Enabled: true,
			Path:    "./rubato.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides (loaded from .env by the caller)
	if p := os.Getenv("RUBATO_LIBRARY"); p != "" {
		cfg.Library.Path = p
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Rubato Music Player Configuration
# This file contains all configuration options for the Rubato music player.
# Edit the values below to customize playback and library settings.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate library config
	if c.Library.Path == "" {
		return fmt.Errorf("music library path cannot be empty")
	}
	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	// Validate audio config
	if c.Audio.BlockSizeFrames < 64 || c.Audio.BlockSizeFrames > 65536 {
		return fmt.Errorf("audio block size must be between 64 and 65536 frames")
	}
	if c.Audio.DefaultVolume < 0 || c.Audio.DefaultVolume > 100 {
		return fmt.Errorf("default volume must be between 0 and 100")
	}
	validLoopModes := map[string]bool{
		"none": true, "song": true, "list": true,
	}
	if !validLoopModes[c.Audio.LoopMode] {
		return fmt.Errorf("invalid loop mode: %s (must be none, song, or list)", c.Audio.LoopMode)
	}

	// Validate cache config
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache path cannot be empty when cache is enabled")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Library.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
