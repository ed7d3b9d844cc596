// Package persona scores text against a fixed four-trait character model.
// Rule tables are compiled once at load and immutable afterwards; scoring is
// pure, so identical input always produces identical scores.
package persona

import (
	"fmt"
	"regexp"
	"strings"

	"nocturne/internal/config"
)

type Trait string

const (
	TraitMysterious             Trait = "mysterious"
	TraitSeductive              Trait = "seductive"
	TraitEmotionallyComplex     Trait = "emotionally_complex"
	TraitIntellectuallyEngaging Trait = "intellectually_engaging"
)

// Traits is the fixed scoring order.
var Traits = []Trait{
	TraitMysterious,
	TraitSeductive,
	TraitEmotionallyComplex,
	TraitIntellectuallyEngaging,
}

const (
	// MaxPerTrait caps each trait's contribution.
	MaxPerTrait = 25.0
	// MaxOverall is the cap on the summed trait scores.
	MaxOverall = 100.0
)

type Scores map[Trait]float64

func (s Scores) Total() float64 {
	var total float64
	for _, trait := range Traits {
		total += s[trait]
	}
	return total
}

func (s Scores) Clone() Scores {
	clone := make(Scores, len(s))
	for trait, score := range s {
		clone[trait] = score
	}
	return clone
}

type weightedRule struct {
	re     *regexp.Regexp
	weight float64
}

type bonusRule struct {
	kind   string
	points float64
	cap    float64
}

type compiledTrait struct {
	trait   Trait
	rules   []weightedRule
	bonuses []bonusRule
}

type violationGroup struct {
	name          string
	disqualifying bool
	rules         []*regexp.Regexp
}

// ViolationReport summarizes matches against the violation rule set.
type ViolationReport struct {
	Matches       int
	ViolatedRules []string
	Disqualified  bool
}

// Scorer is an immutable compiled rule table.
type Scorer struct {
	traits     []compiledTrait
	violations []violationGroup
}

var multiQuestionRE = regexp.MustCompile(`\?[^?]*\?`)

// Compile builds a Scorer from persona rules. Patterns compile
// case-insensitively; a bad pattern fails the whole compile.
func Compile(persona *config.Persona) (*Scorer, error) {
	if persona == nil {
		return nil, fmt.Errorf("persona is required")
	}

	scorer := &Scorer{}
	for _, traitCfg := range persona.Traits {
		compiled := compiledTrait{trait: Trait(strings.ToLower(traitCfg.Name))}
		for _, pattern := range traitCfg.Patterns {
			re, err := regexp.Compile("(?i)" + pattern.Pattern)
			if err != nil {
				return nil, fmt.Errorf("compiling trait %s pattern %q: %w", traitCfg.Name, pattern.Pattern, err)
			}
			compiled.rules = append(compiled.rules, weightedRule{re: re, weight: pattern.Weight})
		}
		for _, bonus := range traitCfg.Bonuses {
			compiled.bonuses = append(compiled.bonuses, bonusRule{kind: bonus.Kind, points: bonus.Points, cap: bonus.Cap})
		}
		scorer.traits = append(scorer.traits, compiled)
	}

	for _, violationCfg := range persona.Violations {
		group := violationGroup{name: violationCfg.Name, disqualifying: violationCfg.Disqualifying}
		for _, pattern := range violationCfg.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("compiling violation %s pattern %q: %w", violationCfg.Name, pattern, err)
			}
			group.rules = append(group.rules, re)
		}
		scorer.violations = append(scorer.violations, group)
	}

	return scorer, nil
}

// Score rates text against every trait. Matches are counted, not
// deduplicated, multiplied by the rule weight, then clamped to the trait cap.
func (s *Scorer) Score(text string) Scores {
	scores := make(Scores, len(Traits))
	for _, trait := range Traits {
		scores[trait] = 0
	}
	if strings.TrimSpace(text) == "" {
		return scores
	}

	for _, compiled := range s.traits {
		var score float64
		for _, rule := range compiled.rules {
			matches := rule.re.FindAllStringIndex(text, -1)
			score += float64(len(matches)) * rule.weight
		}
		for _, bonus := range compiled.bonuses {
			score += bonusPoints(text, bonus)
		}
		if score > MaxPerTrait {
			score = MaxPerTrait
		}
		scores[compiled.trait] = score
	}

	return scores
}

// CheckViolations counts matches against the violation rule set and reports
// which rule groups matched. Match counts are not deduplicated.
func (s *Scorer) CheckViolations(text string) ViolationReport {
	report := ViolationReport{}
	for _, group := range s.violations {
		groupMatches := 0
		for _, re := range group.rules {
			groupMatches += len(re.FindAllStringIndex(text, -1))
		}
		if groupMatches == 0 {
			continue
		}
		report.Matches += groupMatches
		report.ViolatedRules = append(report.ViolatedRules, group.name)
		if group.disqualifying {
			report.Disqualified = true
		}
	}
	return report
}

func bonusPoints(text string, bonus bonusRule) float64 {
	switch bonus.kind {
	case "ellipsis":
		if strings.Contains(text, "...") {
			return bonus.points
		}
	case "multi_question":
		if multiQuestionRE.MatchString(text) {
			return bonus.points
		}
	case "per_question":
		points := float64(strings.Count(text, "?")) * bonus.points
		if bonus.cap > 0 && points > bonus.cap {
			points = bonus.cap
		}
		return points
	}
	return 0
}
