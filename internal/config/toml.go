// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IBLREPLAY_"

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Assets   AssetsConfig   `toml:"assets" envPrefix:"ASSETS_"`
	Playback PlaybackConfig `toml:"playback" envPrefix:"PLAYBACK_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// AssetsConfig maps asset-source settings.
type AssetsConfig struct {
	Root        *string `toml:"root" env:"ROOT"`
	Prefix      *string `toml:"prefix" env:"PREFIX"`
	CacheDir    *string `toml:"cache-dir" env:"CACHE_DIR"`
	HTTPTimeout *string `toml:"http-timeout" env:"HTTP_TIMEOUT"`
	SessionList *string `toml:"session-list" env:"SESSION_LIST"`
}

// PlaybackConfig maps replay settings.
type PlaybackConfig struct {
	Rate        *float64 `toml:"rate" env:"RATE"`
	MinRate     *float64 `toml:"min-rate" env:"MIN_RATE"`
	MaxRate     *float64 `toml:"max-rate" env:"MAX_RATE"`
	VideoOffset *float64 `toml:"video-offset" env:"VIDEO_OFFSET"`
	FPS         *int     `toml:"fps" env:"FPS"`
	DisplayMode *string  `toml:"display-mode" env:"DISPLAY_MODE"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level" env:"LEVEL"`
	File  *string `toml:"file" env:"FILE"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any IBLREPLAY_* variables that are set.
// Unset variables leave the file values in place.
func ApplyEnv(cfg *FileConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse env: %w", err)
	}
	return nil
}

// Load reads the config file and applies environment overrides.
func Load(path string) (FileConfig, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return FileConfig{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}
