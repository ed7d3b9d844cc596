// Package parser reads authored fragment files: YAML frontmatter for the
// fragment's shape, markdown body for its narrative content.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"nocturne/internal/story"
)

var (
	ErrNoFrontmatter = errors.New("no frontmatter found")
	ErrInvalidYAML   = errors.New("invalid YAML in frontmatter")
	ErrMissingType   = errors.New("frontmatter missing required 'type' field")
	ErrMissingBody   = errors.New("fragment body is empty")
)

// Document is one parsed fragment file, still in authored form.
type Document struct {
	ID            string      `yaml:"id"`
	Title         string      `yaml:"title"`
	Type          string      `yaml:"type"`
	Tier          string      `yaml:"tier"`
	MinLevel      int         `yaml:"min_level"`
	RequiredClues []string    `yaml:"required_clues"`
	AllowRevisit  bool        `yaml:"allow_revisit"`
	Active        *bool       `yaml:"active"`
	Trigger       TriggerDoc  `yaml:"trigger"`
	Choices       []ChoiceDoc `yaml:"choices"`

	Body       string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

type TriggerDoc struct {
	BasePoints     int      `yaml:"base_points"`
	Unlocks        []string `yaml:"unlocks"`
	NarrativeFlags []string `yaml:"narrative_flags"`
}

type ChoiceDoc struct {
	ID               string         `yaml:"id"`
	Label            string         `yaml:"label"`
	PointsReward     int            `yaml:"points_reward"`
	Unlocks          []string       `yaml:"unlocks"`
	ArchetypeWeights map[string]int `yaml:"archetype_weights"`
	Destination      string         `yaml:"destination"`
}

func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(content, "\ufeff\n\r\t ")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len("---\n"):]
	end := bytes.Index(rest, []byte("---\n"))
	if end == -1 {
		return nil, ErrNoFrontmatter
	}

	yamlBytes := rest[:end]
	body := string(rest[end+len("---\n"):])

	var doc Document
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return nil, ErrInvalidYAML
	}

	if strings.TrimSpace(doc.Type) == "" {
		return nil, ErrMissingType
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrMissingBody
	}

	doc.Body = strings.TrimSpace(body)
	return &doc, nil
}

// Fragment converts the authored document into the domain type. id is the
// fragment id to use when the document does not name one.
func (d *Document) Fragment(id string) (*story.Fragment, error) {
	fragmentType, err := story.ParseFragmentType(d.Type)
	if err != nil {
		return nil, err
	}
	tier, err := story.ParseTier(d.Tier)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(d.ID) != "" {
		id = strings.TrimSpace(d.ID)
	}
	minLevel := d.MinLevel
	if minLevel == 0 {
		minLevel = 1
	}
	active := true
	if d.Active != nil {
		active = *d.Active
	}

	fragment := &story.Fragment{
		ID:            id,
		Title:         d.Title,
		Content:       d.Body,
		Type:          fragmentType,
		RequiredClues: d.RequiredClues,
		Tier:          tier,
		MinLevel:      minLevel,
		Trigger: story.Trigger{
			BasePoints:     d.Trigger.BasePoints,
			Unlocks:        d.Trigger.Unlocks,
			NarrativeFlags: d.Trigger.NarrativeFlags,
		},
		AllowRevisit: d.AllowRevisit,
		Active:       active,
		SourceFile:   d.SourceFile,
	}
	for _, choice := range d.Choices {
		fragment.Choices = append(fragment.Choices, story.Choice{
			ID:               choice.ID,
			Label:            choice.Label,
			PointsReward:     choice.PointsReward,
			Unlocks:          choice.Unlocks,
			ArchetypeWeights: choice.ArchetypeWeights,
			DestinationID:    choice.Destination,
		})
	}

	if err := story.Validate(fragment); err != nil {
		return nil, fmt.Errorf("invalid fragment: %w", err)
	}
	return fragment, nil
}
