// Package validator decides whether candidate text is allowed to reach a
// user, and synthesizes pre-certified fallback text when it is not.
package validator

import (
	"fmt"

	"nocturne/internal/config"
	"nocturne/internal/persona"
)

// Context identifies the kind of content being validated. Each context has
// its own pass threshold.
type Context string

const (
	ContextFragment Context = "fragment"
	ContextMenu     Context = "menu"
	ContextDenial   Context = "denial"
	ContextError    Context = "error"
)

// violationPenalty is subtracted from every trait score per violation match.
const violationPenalty = 3.0

// Result is the outcome of validating one piece of text. Invariant:
// Pass == (OverallScore >= threshold && !Disqualified).
type Result struct {
	OverallScore  float64
	TraitScores   persona.Scores
	Pass          bool
	ViolatedRules []string
	Disqualified  bool
}

type Validator struct {
	scorer     *persona.Scorer
	thresholds map[Context]float64
}

func New(personaCfg *config.Persona) (*Validator, error) {
	scorer, err := persona.Compile(personaCfg)
	if err != nil {
		return nil, fmt.Errorf("compiling persona: %w", err)
	}

	thresholds := make(map[Context]float64, len(personaCfg.Thresholds))
	for context, threshold := range personaCfg.Thresholds {
		thresholds[Context(context)] = threshold
	}
	if _, ok := thresholds[ContextFragment]; !ok {
		return nil, fmt.Errorf("persona defines no fragment threshold")
	}

	return &Validator{scorer: scorer, thresholds: thresholds}, nil
}

// Threshold returns the pass threshold for a context. Unknown contexts use
// the fragment threshold, the strictest default.
func (v *Validator) Threshold(context Context) float64 {
	if threshold, ok := v.thresholds[context]; ok {
		return threshold
	}
	return v.thresholds[ContextFragment]
}

// Validate scores text, applies the violation penalty uniformly across all
// traits, and decides pass/fail. Deterministic: identical arguments always
// produce an identical Result.
func (v *Validator) Validate(text string, context Context) Result {
	scores := v.scorer.Score(text)
	report := v.scorer.CheckViolations(text)

	penalty := violationPenalty * float64(report.Matches)
	if penalty > 0 {
		for trait, score := range scores {
			adjusted := score - penalty
			if adjusted < 0 {
				adjusted = 0
			}
			scores[trait] = adjusted
		}
	}

	overall := scores.Total()
	pass := overall >= v.Threshold(context) && !report.Disqualified

	return Result{
		OverallScore:  overall,
		TraitScores:   scores,
		Pass:          pass,
		ViolatedRules: report.ViolatedRules,
		Disqualified:  report.Disqualified,
	}
}
