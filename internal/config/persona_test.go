package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPersona_Valid(t *testing.T) {
	if err := validatePersona(DefaultPersona()); err != nil {
		t.Fatalf("default persona invalid: %v", err)
	}
}

func TestLoadPersona_MissingFileUsesDefault(t *testing.T) {
	persona, err := LoadPersona(filepath.Join(t.TempDir(), "persona.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(persona.Traits) != 4 {
		t.Fatalf("traits = %d, want 4", len(persona.Traits))
	}
	if persona.Thresholds["fragment"] != 95 {
		t.Errorf("fragment threshold = %g", persona.Thresholds["fragment"])
	}
}

func TestLoadPersona_File(t *testing.T) {
	content := `version: 1
traits:
  - name: mysterious
    patterns:
      - { pattern: "secrets?", weight: 3 }
    bonuses:
      - { kind: ellipsis, points: 2 }
  - name: seductive
    patterns:
      - { pattern: "charm", weight: 3 }
  - name: emotionally_complex
    patterns:
      - { pattern: "heart", weight: 3 }
  - name: intellectually_engaging
    patterns:
      - { pattern: "ponder", weight: 3 }
violations:
  - name: technical_language
    disqualifying: true
    patterns: ["\\bsystem\\b"]
thresholds:
  fragment: 90
`
	path := filepath.Join(t.TempDir(), "persona.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	persona, err := LoadPersona(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if persona.Thresholds["fragment"] != 90 {
		t.Errorf("threshold = %g, want 90", persona.Thresholds["fragment"])
	}
	if !persona.Violations[0].Disqualifying {
		t.Error("expected disqualifying violation rule")
	}
	// Defaults backfill the maps the file leaves out.
	if len(persona.Fallbacks) == 0 || len(persona.Denials) == 0 {
		t.Error("expected default fallback and denial templates")
	}
}

func TestValidatePersona_Rejections(t *testing.T) {
	base := func() *Persona {
		persona := DefaultPersona()
		return persona
	}

	tests := []struct {
		name   string
		mutate func(*Persona)
	}{
		{"bad version", func(p *Persona) { p.Version = 3 }},
		{"unknown trait", func(p *Persona) { p.Traits[0].Name = "brooding" }},
		{"missing trait", func(p *Persona) { p.Traits = p.Traits[:3] }},
		{"duplicate trait", func(p *Persona) { p.Traits[1].Name = p.Traits[0].Name }},
		{"empty pattern", func(p *Persona) { p.Traits[0].Patterns[0].Pattern = " " }},
		{"zero weight", func(p *Persona) { p.Traits[0].Patterns[0].Weight = 0 }},
		{"unknown bonus", func(p *Persona) { p.Traits[0].Bonuses[0].Kind = "rhyme" }},
		{"unnamed violation", func(p *Persona) { p.Violations[0].Name = "" }},
		{"empty violation", func(p *Persona) { p.Violations[0].Patterns = nil }},
		{"threshold range", func(p *Persona) { p.Thresholds["fragment"] = 120 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persona := base()
			tt.mutate(persona)
			if err := validatePersona(persona); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
