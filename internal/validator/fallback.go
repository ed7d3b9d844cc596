package validator

import (
	"fmt"
	"strings"

	"nocturne/internal/config"
)

// Denial template keys, matching access reason codes.
const (
	DenialContentUnavailable   = "content_unavailable"
	DenialTierInsufficient     = "tier_insufficient"
	DenialLevelInsufficient    = "level_insufficient"
	DenialPrerequisitesMissing = "prerequisites_missing"
)

var denialKeys = []string{
	DenialContentUnavailable,
	DenialTierInsufficient,
	DenialLevelInsufficient,
	DenialPrerequisitesMissing,
}

// Synthesizer hands out pre-certified template text: fallbacks when
// candidate text fails validation, and in-narrative denial messages.
type Synthesizer struct {
	fallbacks map[Context]string
	denials   map[string]string
	accents   map[string]string
}

func NewSynthesizer(personaCfg *config.Persona) (*Synthesizer, error) {
	synth := &Synthesizer{
		fallbacks: make(map[Context]string, len(personaCfg.Fallbacks)),
		denials:   make(map[string]string, len(personaCfg.Denials)),
		accents:   make(map[string]string, len(personaCfg.StyleAccents)),
	}
	for context, template := range personaCfg.Fallbacks {
		if strings.TrimSpace(template) == "" {
			return nil, fmt.Errorf("empty fallback template for context %s", context)
		}
		synth.fallbacks[Context(context)] = template
	}
	for _, context := range []Context{ContextFragment, ContextMenu, ContextDenial, ContextError} {
		if _, ok := synth.fallbacks[context]; !ok {
			return nil, fmt.Errorf("missing fallback template for context %s", context)
		}
	}
	for key, template := range personaCfg.Denials {
		if strings.TrimSpace(template) == "" {
			return nil, fmt.Errorf("empty denial template %s", key)
		}
		synth.denials[key] = template
	}
	for _, key := range denialKeys {
		if _, ok := synth.denials[key]; !ok {
			return nil, fmt.Errorf("missing denial template %s", key)
		}
	}
	for style, accent := range personaCfg.StyleAccents {
		synth.accents[style] = accent
	}
	return synth, nil
}

// Fallback returns the template for a context, optionally accented for the
// user's adaptation style. Unknown contexts use the fragment template.
func (s *Synthesizer) Fallback(context Context, styleHint string) string {
	template, ok := s.fallbacks[context]
	if !ok {
		template = s.fallbacks[ContextFragment]
	}
	if accent, ok := s.accents[styleHint]; ok && accent != "" {
		template = template + " " + accent
	}
	return template
}

// Denial returns the in-narrative message for a denial reason key.
func (s *Synthesizer) Denial(key string) string {
	if template, ok := s.denials[key]; ok {
		return template
	}
	return s.denials[DenialContentUnavailable]
}

// Certify validates every template the synthesizer can emit, including every
// style-accented variant. Templates must pass so that a fallback can never
// itself trigger another fallback.
func Certify(v *Validator, s *Synthesizer) error {
	var failures []string

	for context, template := range s.fallbacks {
		if result := v.Validate(template, context); !result.Pass {
			failures = append(failures, fmt.Sprintf("fallback %s scored %.1f", context, result.OverallScore))
		}
		for style := range s.accents {
			accented := s.Fallback(context, style)
			if result := v.Validate(accented, context); !result.Pass {
				failures = append(failures, fmt.Sprintf("fallback %s with accent %s scored %.1f", context, style, result.OverallScore))
			}
		}
	}

	for key, template := range s.denials {
		if result := v.Validate(template, ContextDenial); !result.Pass {
			failures = append(failures, fmt.Sprintf("denial %s scored %.1f", key, result.OverallScore))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("template certification failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
