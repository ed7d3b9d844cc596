package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona defines the character model candidate text is scored against:
// per-trait pattern rules, disqualifying violation rules, pass thresholds
// per content context, and the pre-certified template texts.
type Persona struct {
	Version      int                `yaml:"version"`
	Traits       []TraitRules       `yaml:"traits"`
	Violations   []ViolationRules   `yaml:"violations"`
	Thresholds   map[string]float64 `yaml:"thresholds"`
	Fallbacks    map[string]string  `yaml:"fallbacks"`
	Denials      map[string]string  `yaml:"denials"`
	StyleAccents map[string]string  `yaml:"style_accents"`
}

type TraitRules struct {
	Name     string            `yaml:"name"`
	Patterns []WeightedPattern `yaml:"patterns"`
	Bonuses  []Bonus           `yaml:"bonuses"`
}

type WeightedPattern struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

// Bonus is a flat structural bonus applied on top of pattern scoring.
// Kinds: "ellipsis" (text contains a trailing-off ellipsis),
// "multi_question" (at least two question marks), and "per_question"
// (Points per question mark, limited by Cap).
type Bonus struct {
	Kind   string  `yaml:"kind"`
	Points float64 `yaml:"points"`
	Cap    float64 `yaml:"cap"`
}

type ViolationRules struct {
	Name          string   `yaml:"name"`
	Disqualifying bool     `yaml:"disqualifying"`
	Patterns      []string `yaml:"patterns"`
}

var traitNames = []string{
	"mysterious",
	"seductive",
	"emotionally_complex",
	"intellectually_engaging",
}

var bonusKinds = map[string]struct{}{
	"ellipsis":       {},
	"multi_question": {},
	"per_question":   {},
}

// LoadPersona reads a persona rule file. A missing file is not an error;
// the built-in default persona is returned instead.
func LoadPersona(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPersona(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading persona: %w", err)
	}

	var persona Persona
	if err := yaml.Unmarshal(data, &persona); err != nil {
		return nil, fmt.Errorf("loading persona: %w", err)
	}

	applyPersonaDefaults(&persona)

	if err := validatePersona(&persona); err != nil {
		return nil, fmt.Errorf("loading persona: %w", err)
	}

	return &persona, nil
}

func applyPersonaDefaults(persona *Persona) {
	defaults := DefaultPersona()
	if persona.Thresholds == nil {
		persona.Thresholds = defaults.Thresholds
	}
	if persona.Fallbacks == nil {
		persona.Fallbacks = defaults.Fallbacks
	}
	if persona.Denials == nil {
		persona.Denials = defaults.Denials
	}
}

func validatePersona(persona *Persona) error {
	if persona.Version != 1 {
		return fmt.Errorf("unsupported version: %d", persona.Version)
	}

	seen := make(map[string]struct{})
	for _, trait := range persona.Traits {
		name := strings.ToLower(strings.TrimSpace(trait.Name))
		if !containsName(traitNames, name) {
			return fmt.Errorf("unknown trait: %q", trait.Name)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("duplicate trait: %s", name)
		}
		seen[name] = struct{}{}

		if len(trait.Patterns) == 0 {
			return fmt.Errorf("trait %s has no patterns", name)
		}
		for i, pattern := range trait.Patterns {
			if strings.TrimSpace(pattern.Pattern) == "" {
				return fmt.Errorf("trait %s pattern %d is empty", name, i)
			}
			if pattern.Weight <= 0 {
				return fmt.Errorf("trait %s pattern %d weight must be positive", name, i)
			}
		}
		for _, bonus := range trait.Bonuses {
			if _, ok := bonusKinds[bonus.Kind]; !ok {
				return fmt.Errorf("trait %s has unknown bonus kind: %q", name, bonus.Kind)
			}
			if bonus.Points <= 0 {
				return fmt.Errorf("trait %s bonus %s points must be positive", name, bonus.Kind)
			}
		}
	}
	if len(seen) != len(traitNames) {
		return fmt.Errorf("all four traits must be defined (got %d)", len(seen))
	}

	violationNames := make(map[string]struct{})
	for _, violation := range persona.Violations {
		name := strings.TrimSpace(violation.Name)
		if name == "" {
			return fmt.Errorf("violation rule name is required")
		}
		if _, exists := violationNames[name]; exists {
			return fmt.Errorf("duplicate violation rule: %s", name)
		}
		violationNames[name] = struct{}{}
		if len(violation.Patterns) == 0 {
			return fmt.Errorf("violation rule %s has no patterns", name)
		}
	}

	for context, threshold := range persona.Thresholds {
		if threshold < 0 || threshold > 100 {
			return fmt.Errorf("threshold for %s out of range: %g", context, threshold)
		}
	}

	return nil
}

func containsName(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
