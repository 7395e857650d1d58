// Package config loads the service configuration: a JSON file with
// defaults for everything, plus environment overrides for secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds every knob the service reads at startup.
type Config struct {
	Port string `json:"port"`

	ChainID   uint64 `json:"chainId"`
	ChainName string `json:"chainName"` // DEX provider chain identifier, e.g. "base"

	ExplorerBaseURL string `json:"explorerBaseUrl"`
	ExplorerAPIKey  string `json:"explorerApiKey"`
	DexBaseURL      string `json:"dexBaseUrl"`
	SocialBaseURL   string `json:"socialBaseUrl"`

	CachePath          string `json:"cachePath"`
	MinRequestInterval int    `json:"minRequestIntervalMs"`
	MaxSearchResults   int    `json:"maxSearchResults"`
}

// Load reads the optional JSON config at path, applies defaults, then
// environment overrides. A missing file is fine; a malformed one is not.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 8453
	}
	if cfg.ChainName == "" {
		cfg.ChainName = "base"
	}
	if cfg.ExplorerBaseURL == "" {
		cfg.ExplorerBaseURL = "https://api.etherscan.io/v2"
	}
	if cfg.DexBaseURL == "" {
		cfg.DexBaseURL = "https://api.dexscreener.com"
	}
	if cfg.SocialBaseURL == "" {
		cfg.SocialBaseURL = "https://api.web3.bio"
	}
	if cfg.CachePath == "" {
		cfg.CachePath = "sniffer-cache.json"
	}
	if cfg.MinRequestInterval <= 0 {
		cfg.MinRequestInterval = 250
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 100
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("EXPLORER_API_KEY"); v != "" {
		cfg.ExplorerAPIKey = v
	}
	if v := os.Getenv("SNIFFER_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
}

func validate(cfg *Config) error {
	if cfg.ChainID == 0 {
		return fmt.Errorf("chainId must be set")
	}
	if cfg.ChainName == "" {
		return fmt.Errorf("chainName must be set")
	}
	if cfg.MaxSearchResults <= 0 {
		return fmt.Errorf("maxSearchResults must be positive, got %d", cfg.MaxSearchResults)
	}
	return nil
}
