package story

import (
	"fmt"
	"strings"
)

// FragmentType classifies a narrative fragment.
type FragmentType string

const (
	TypeStory    FragmentType = "STORY"
	TypeDecision FragmentType = "DECISION"
	TypeInfo     FragmentType = "INFO"
)

// Tier is the subscription tier required to view a fragment.
type Tier int

const (
	TierFree Tier = 0
	Tier1    Tier = 1
	Tier2    Tier = 2
)

// Trigger describes the effects applied when a fragment is completed.
type Trigger struct {
	BasePoints     int
	Unlocks        []string
	NarrativeFlags []string
}

// Choice is one selectable option of a DECISION fragment.
type Choice struct {
	ID               string
	Label            string
	PointsReward     int
	Unlocks          []string
	ArchetypeWeights map[string]int
	DestinationID    string
}

// Fragment is one immutable unit of narrative content.
type Fragment struct {
	ID            string
	Title         string
	Content       string
	Type          FragmentType
	Choices       []Choice
	RequiredClues []string
	Tier          Tier
	MinLevel      int
	Trigger       Trigger
	AllowRevisit  bool
	Active        bool
	SourceFile    string
	SourceHash    string
}

// FragmentSummary is a lightweight listing row.
type FragmentSummary struct {
	ID       string
	Title    string
	Type     FragmentType
	Tier     Tier
	MinLevel int
	Active   bool
}

func (f *Fragment) IsDecision() bool {
	return f.Type == TypeDecision
}

// ChoiceByID returns the choice with the given id, if present.
func (f *Fragment) ChoiceByID(id string) (Choice, bool) {
	for _, choice := range f.Choices {
		if choice.ID == id {
			return choice, true
		}
	}
	return Choice{}, false
}

// FullText joins the fragment's displayable text: title, content, and choice
// labels, the way they reach the user.
func (f *Fragment) FullText() string {
	parts := make([]string, 0, 2+len(f.Choices))
	if strings.TrimSpace(f.Title) != "" {
		parts = append(parts, f.Title)
	}
	parts = append(parts, f.Content)
	for _, choice := range f.Choices {
		parts = append(parts, choice.Label)
	}
	return strings.Join(parts, "\n")
}

func ParseFragmentType(value string) (FragmentType, error) {
	switch FragmentType(strings.ToUpper(strings.TrimSpace(value))) {
	case TypeStory:
		return TypeStory, nil
	case TypeDecision:
		return TypeDecision, nil
	case TypeInfo:
		return TypeInfo, nil
	}
	return "", fmt.Errorf("unknown fragment type: %q", value)
}

func ParseTier(value string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "FREE":
		return TierFree, nil
	case "TIER1", "VIP1":
		return Tier1, nil
	case "TIER2", "VIP2":
		return Tier2, nil
	}
	return TierFree, fmt.Errorf("unknown tier: %q", value)
}

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "TIER1"
	case Tier2:
		return "TIER2"
	default:
		return "FREE"
	}
}

// Validate checks fragment shape at the storage boundary.
func Validate(f *Fragment) error {
	if f == nil {
		return fmt.Errorf("fragment is nil")
	}
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("fragment id is required")
	}
	if strings.TrimSpace(f.Content) == "" {
		return fmt.Errorf("fragment %s content is required", f.ID)
	}
	switch f.Type {
	case TypeStory, TypeInfo:
		if len(f.Choices) > 0 {
			return fmt.Errorf("fragment %s is %s and must not have choices", f.ID, f.Type)
		}
	case TypeDecision:
		if len(f.Choices) == 0 {
			return fmt.Errorf("fragment %s is DECISION and must have at least one choice", f.ID)
		}
	default:
		return fmt.Errorf("fragment %s has unknown type: %q", f.ID, f.Type)
	}
	if f.Tier < TierFree || f.Tier > Tier2 {
		return fmt.Errorf("fragment %s has invalid tier: %d", f.ID, f.Tier)
	}
	if f.MinLevel < 1 {
		return fmt.Errorf("fragment %s min level must be at least 1", f.ID)
	}

	seen := make(map[string]struct{})
	for i, choice := range f.Choices {
		if strings.TrimSpace(choice.ID) == "" {
			return fmt.Errorf("fragment %s choice %d id is required", f.ID, i)
		}
		if strings.TrimSpace(choice.Label) == "" {
			return fmt.Errorf("fragment %s choice %s label is required", f.ID, choice.ID)
		}
		if _, exists := seen[choice.ID]; exists {
			return fmt.Errorf("fragment %s has duplicate choice id: %s", f.ID, choice.ID)
		}
		seen[choice.ID] = struct{}{}
	}

	return nil
}
