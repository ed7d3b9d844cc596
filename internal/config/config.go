package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project     string            `yaml:"project"`
	Version     int               `yaml:"version"`
	Database    DatabaseConfig    `yaml:"database"`
	Content     ContentConfig     `yaml:"content"`
	PersonaFile string            `yaml:"persona_file"`
	Progression ProgressionConfig `yaml:"progression"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"NOCTURNE_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"NOCTURNE_DB_DSN"`
}

type ContentConfig struct {
	Paths   []string `yaml:"paths"`
	Exclude []string `yaml:"exclude"`
}

type ProgressionConfig struct {
	// LevelThresholds[n] is the points total required to advance past
	// level n+1. Must be non-decreasing.
	LevelThresholds []int `yaml:"level_thresholds"`
}

type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes"`
}

type LogConfig struct {
	Mode string `yaml:"mode" env:"NOCTURNE_LOG_MODE"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyConfigDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func applyConfigDefaults(cfg *ProjectConfig) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if len(cfg.Content.Paths) == 0 {
		cfg.Content.Paths = []string{"content"}
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 512
	}
	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 5
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "dev"
	}
	if cfg.PersonaFile == "" {
		cfg.PersonaFile = "persona.yaml"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if !sort.IntsAreSorted(cfg.Progression.LevelThresholds) {
		return fmt.Errorf("level thresholds must be non-decreasing")
	}
	for i, threshold := range cfg.Progression.LevelThresholds {
		if threshold <= 0 {
			return fmt.Errorf("level threshold %d must be positive", i)
		}
	}
	return nil
}
