package config

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/draftwire/draftwire/internal/usage"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	StepAPI  StepAPI  `yaml:"step_api"`
	Pricing  Pricing  `yaml:"pricing"`
	Pipeline Pipeline `yaml:"pipeline"`
	Notify   Notify   `yaml:"notify"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type StepAPI struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Pricing struct {
	Models map[string]usage.ModelPrice `yaml:"models"`
}

type Pipeline struct {
	// MinArticleLength is the smallest final article (in bytes) the aggregate
	// pipeline will accept as a success.
	MinArticleLength int `yaml:"min_article_length"`
}

type Notify struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for draftwire.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "draftwire")
}

// DataDir returns the XDG data directory for draftwire.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "draftwire")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/draftwire/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'draftwire init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	// A missing step API URL is not fatal: requests will simply fail at call
	// time, and commands that never touch the step API still work.
	if cfg.StepAPI.BaseURL == "" {
		log.Println("Warning: step_api.base_url is not set; pipeline runs will fail")
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		StepAPI: StepAPI{
			TimeoutSeconds: 120,
		},
		Pricing: Pricing{
			Models: map[string]usage.ModelPrice{
				"claude-3-5-sonnet": {Input: 3, Output: 15},
				"gpt-4o":            {Input: 2.5, Output: 10},
				"gpt-4o-mini":       {Input: 0.15, Output: 0.6},
			},
		},
		Pipeline: Pipeline{MinArticleLength: 250},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.StepAPI.TimeoutSeconds <= 0 {
		cfg.StepAPI.TimeoutSeconds = 120
	}
	if cfg.Pipeline.MinArticleLength <= 0 {
		cfg.Pipeline.MinArticleLength = 250
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// PriceTable returns the configured model price table.
func (c *Config) PriceTable() usage.PriceTable {
	return usage.PriceTable(c.Pricing.Models)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
