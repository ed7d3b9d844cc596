package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nocturne.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	path := writeConfig(t, `project: midnight-garden
version: 1
database:
  driver: sqlite
  dsn: nocturne.db
progression:
  level_thresholds: [100, 250, 500]
`)

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project != "midnight-garden" {
		t.Errorf("project = %q", cfg.Project)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "nocturne.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Cache.MaxEntries != 512 || cfg.Cache.TTLMinutes != 5 {
		t.Errorf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.PersonaFile != "persona.yaml" {
		t.Errorf("persona file = %q", cfg.PersonaFile)
	}
	if len(cfg.Progression.LevelThresholds) != 3 {
		t.Errorf("thresholds = %v", cfg.Progression.LevelThresholds)
	}
}

func TestLoadProjectConfig_EnvOverride(t *testing.T) {
	t.Setenv("NOCTURNE_DB_DSN", "postgres://localhost/nocturne")
	t.Setenv("NOCTURNE_DB_DRIVER", "postgres")

	path := writeConfig(t, `project: midnight-garden
version: 1
database:
  driver: sqlite
  dsn: nocturne.db
`)

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want env override", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://localhost/nocturne" {
		t.Errorf("dsn = %q, want env override", cfg.Database.DSN)
	}
}

func TestLoadProjectConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing project", "version: 1\ndatabase:\n  dsn: x\n"},
		{"bad version", "project: p\nversion: 2\ndatabase:\n  dsn: x\n"},
		{"missing dsn", "project: p\nversion: 1\n"},
		{"bad driver", "project: p\nversion: 1\ndatabase:\n  driver: oracle\n  dsn: x\n"},
		{"unsorted thresholds", "project: p\nversion: 1\ndatabase:\n  dsn: x\nprogression:\n  level_thresholds: [200, 100]\n"},
		{"zero threshold", "project: p\nversion: 1\ndatabase:\n  dsn: x\nprogression:\n  level_thresholds: [0, 100]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadProjectConfig(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
