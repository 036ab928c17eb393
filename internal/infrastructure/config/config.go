package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the demo client's configuration.
type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Realtime struct {
		URL string `yaml:"url"`
	} `yaml:"realtime"`
	Auth struct {
		Token string `yaml:"token"`
	} `yaml:"auth"`
	Redis struct {
		URL string `yaml:"url"` // optional; empty disables the warm-start snapshot
	} `yaml:"redis"`
	User struct {
		ID string `yaml:"id"`
	} `yaml:"user"`
	Timers struct {
		PresenceIntervalSeconds int `yaml:"presence_interval_seconds"`
		TypingIdleSeconds       int `yaml:"typing_idle_seconds"`
	} `yaml:"timers"`
}

// Load reads configuration from the YAML file, then applies environment
// overrides (CHAT_API_URL, CHAT_WS_URL, CHAT_TOKEN, REDIS_URL, CHAT_USER_ID).
// A missing file is not an error when the environment carries everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if file, err := os.Open(path); err == nil {
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}

	if v := os.Getenv("CHAT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CHAT_WS_URL"); v != "" {
		cfg.Realtime.URL = v
	}
	if v := os.Getenv("CHAT_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("CHAT_USER_ID"); v != "" {
		cfg.User.ID = v
	}

	if cfg.API.BaseURL == "" || cfg.Realtime.URL == "" {
		return nil, fmt.Errorf("config: api.base_url and realtime.url are required")
	}
	if cfg.User.ID == "" {
		return nil, fmt.Errorf("config: user.id is required")
	}
	return cfg, nil
}
