package story

import (
	"strings"
	"testing"
)

func validDecision() *Fragment {
	return &Fragment{
		ID:       "frag-1",
		Title:    "A Door Ajar",
		Content:  "The corridor narrows...",
		Type:     TypeDecision,
		Tier:     TierFree,
		MinLevel: 1,
		Active:   true,
		Choices: []Choice{
			{ID: "open", Label: "Push the door open", PointsReward: 10},
			{ID: "wait", Label: "Wait and listen", PointsReward: 5},
		},
	}
}

func TestValidate_Decision(t *testing.T) {
	if err := Validate(validDecision()); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fragment)
	}{
		{"missing id", func(f *Fragment) { f.ID = " " }},
		{"missing content", func(f *Fragment) { f.Content = "" }},
		{"decision without choices", func(f *Fragment) { f.Choices = nil }},
		{"unknown type", func(f *Fragment) { f.Type = "RIDDLE" }},
		{"zero min level", func(f *Fragment) { f.MinLevel = 0 }},
		{"invalid tier", func(f *Fragment) { f.Tier = Tier(7) }},
		{"duplicate choice id", func(f *Fragment) { f.Choices[1].ID = "open" }},
		{"empty choice label", func(f *Fragment) { f.Choices[0].Label = "" }},
		{"story with choices", func(f *Fragment) { f.Type = TypeStory }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validDecision()
			tt.mutate(f)
			if err := Validate(f); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseFragmentType(t *testing.T) {
	for input, want := range map[string]FragmentType{
		"story":    TypeStory,
		"DECISION": TypeDecision,
		" info ":   TypeInfo,
	} {
		got, err := ParseFragmentType(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Errorf("parse %q = %s, want %s", input, got, want)
		}
	}
	if _, err := ParseFragmentType("chapter"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseTier(t *testing.T) {
	for input, want := range map[string]Tier{
		"":      TierFree,
		"FREE":  TierFree,
		"tier1": Tier1,
		"VIP2":  Tier2,
	} {
		got, err := ParseTier(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Errorf("parse %q = %d, want %d", input, got, want)
		}
	}
	if _, err := ParseTier("gold"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestChoiceByID(t *testing.T) {
	f := validDecision()
	choice, ok := f.ChoiceByID("wait")
	if !ok || choice.PointsReward != 5 {
		t.Fatalf("ChoiceByID(wait) = %+v, %v", choice, ok)
	}
	if _, ok := f.ChoiceByID("run"); ok {
		t.Fatal("expected missing choice")
	}
}

func TestFullText(t *testing.T) {
	f := validDecision()
	text := f.FullText()
	for _, want := range []string{"A Door Ajar", "The corridor narrows...", "Push the door open", "Wait and listen"} {
		if !strings.Contains(text, want) {
			t.Errorf("full text missing %q", want)
		}
	}
}
