package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"nocturne/internal/engine"
	"nocturne/internal/store"
	"nocturne/internal/story"
	"nocturne/internal/validator"
)

type GetNextContentInput struct {
	UserID     int64  `json:"user_id" jsonschema:"platform user id"`
	FragmentID string `json:"fragment_id,omitempty" jsonschema:"request a specific fragment instead of the user's current one"`
	Style      string `json:"style,omitempty" jsonschema:"optional style adaptation id"`
}

type SubmitDecisionInput struct {
	UserID     int64  `json:"user_id" jsonschema:"platform user id"`
	FragmentID string `json:"fragment_id" jsonschema:"decision fragment id"`
	ChoiceID   string `json:"choice_id" jsonschema:"id of the chosen option"`
	Style      string `json:"style,omitempty" jsonschema:"optional style adaptation id"`
}

type GetProgressInput struct {
	UserID int64 `json:"user_id" jsonschema:"platform user id"`
}

type ValidateTextInput struct {
	Text    string `json:"text" jsonschema:"text to score against the persona"`
	Context string `json:"context,omitempty" jsonschema:"fragment, menu, denial, or error"`
	Style   string `json:"style,omitempty" jsonschema:"optional style adaptation id"`
}

type ListFragmentsInput struct {
	Type       string `json:"type,omitempty" jsonschema:"STORY, DECISION, or INFO"`
	ActiveOnly bool   `json:"active_only,omitempty" jsonschema:"exclude inactive fragments"`
}

type SetMultiplierInput struct {
	UserID     int64   `json:"user_id" jsonschema:"platform user id"`
	Multiplier float64 `json:"multiplier" jsonschema:"reward multiplier, clamped to [0.5, 2.0] at resolution time"`
}

type DenialOutput struct {
	Reason       string   `json:"reason"`
	Missing      []string `json:"missing,omitempty"`
	Message      string   `json:"message"`
	Alternatives []string `json:"alternatives,omitempty"`
}

type ChoiceOutput struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ContentOutput struct {
	FragmentID   string         `json:"fragment_id,omitempty"`
	Title        string         `json:"title,omitempty"`
	Body         string         `json:"body,omitempty"`
	Type         string         `json:"type,omitempty"`
	Choices      []ChoiceOutput `json:"choices,omitempty"`
	UsedFallback bool           `json:"used_fallback,omitempty"`
	Denial       *DenialOutput  `json:"denial,omitempty"`
}

type DecisionRecordOutput struct {
	ID             string   `json:"id"`
	FragmentID     string   `json:"fragment_id"`
	ChoiceID       string   `json:"choice_id"`
	PointsAwarded  int      `json:"points_awarded"`
	CluesUnlocked  []string `json:"clues_unlocked,omitempty"`
	NarrativeFlags []string `json:"narrative_flags,omitempty"`
	MadeAt         string   `json:"made_at"`
}

type DecisionOutput struct {
	Record         *DecisionRecordOutput `json:"record,omitempty"`
	Replayed       bool                  `json:"replayed,omitempty"`
	LevelsGained   int                   `json:"levels_gained,omitempty"`
	NextFragmentID string                `json:"next_fragment_id,omitempty"`
	ArchetypeHints map[string]int        `json:"archetype_hints,omitempty"`
	Blocked        *DenialOutput         `json:"blocked,omitempty"`
	Next           *ContentOutput        `json:"next,omitempty"`
	Denial         *DenialOutput         `json:"denial,omitempty"`
}

type ProgressOutput struct {
	UserID            int64    `json:"user_id"`
	Level             int      `json:"level"`
	VIPTier           string   `json:"vip_tier"`
	PointsTotal       int      `json:"points_total"`
	UnlockedClues     []string `json:"unlocked_clues,omitempty"`
	VisitedCount      int      `json:"visited_count"`
	CompletedCount    int      `json:"completed_count"`
	ActiveFragments   int      `json:"active_fragments"`
	CompletionPercent float64  `json:"completion_percent"`
	CurrentFragmentID string   `json:"current_fragment_id,omitempty"`
}

type ValidateTextOutput struct {
	OverallScore  float64            `json:"overall_score"`
	TraitScores   map[string]float64 `json:"trait_scores"`
	Pass          bool               `json:"pass"`
	ViolatedRules []string           `json:"violated_rules,omitempty"`
	Disqualified  bool               `json:"disqualified,omitempty"`
}

type FragmentSummaryOutput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Tier     string `json:"tier"`
	MinLevel int    `json:"min_level"`
	Active   bool   `json:"active"`
}

type ListFragmentsOutput struct {
	Fragments []FragmentSummaryOutput `json:"fragments"`
}

type SetMultiplierOutput struct {
	UserID     int64   `json:"user_id"`
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_next_content",
		Description: "Deliver the next story fragment for a user, or an in-world denial",
	}, s.handleGetNextContent)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "submit_decision",
		Description: "Resolve a user's choice on a decision fragment",
	}, s.handleSubmitDecision)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_progress",
		Description: "Report a user's level, points, clues, and completion",
	}, s.handleGetProgress)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "validate_text",
		Description: "Score arbitrary text against the persona profile",
	}, s.handleValidateText)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_fragments",
		Description: "List story fragments with optional filters",
	}, s.handleListFragments)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "set_archetype_multiplier",
		Description: "Set a user's reward multiplier from upstream archetype analysis",
	}, s.handleSetMultiplier)
}

func (s *Server) handleGetNextContent(ctx context.Context, req *sdk.CallToolRequest, input GetNextContentInput) (*sdk.CallToolResult, ContentOutput, error) {
	if input.UserID == 0 {
		return nil, ContentOutput{}, fmt.Errorf("user_id is required")
	}
	view, err := s.engine.GetNextContent(ctx, input.UserID, input.FragmentID, input.Style)
	if err != nil {
		return nil, ContentOutput{}, err
	}
	return nil, contentOutputFromView(view), nil
}

func (s *Server) handleSubmitDecision(ctx context.Context, req *sdk.CallToolRequest, input SubmitDecisionInput) (*sdk.CallToolResult, DecisionOutput, error) {
	if input.UserID == 0 {
		return nil, DecisionOutput{}, fmt.Errorf("user_id is required")
	}
	if input.FragmentID == "" || input.ChoiceID == "" {
		return nil, DecisionOutput{}, fmt.Errorf("fragment_id and choice_id are required")
	}
	view, err := s.engine.SubmitDecision(ctx, input.UserID, input.FragmentID, input.ChoiceID, input.Style)
	if err != nil {
		return nil, DecisionOutput{}, err
	}

	out := DecisionOutput{
		Replayed:       view.Replayed,
		LevelsGained:   view.LevelsGained,
		NextFragmentID: view.NextFragmentID,
		ArchetypeHints: view.ArchetypeHints,
		Blocked:        denialOutputFromView(view.Blocked),
		Denial:         denialOutputFromView(view.Denial),
	}
	if view.Record != nil {
		out.Record = &DecisionRecordOutput{
			ID:             view.Record.ID,
			FragmentID:     view.Record.FragmentID,
			ChoiceID:       view.Record.ChoiceID,
			PointsAwarded:  view.Record.PointsAwarded,
			CluesUnlocked:  append([]string{}, view.Record.CluesUnlocked...),
			NarrativeFlags: append([]string{}, view.Record.NarrativeFlags...),
			MadeAt:         view.Record.MadeAt.UTC().Format(time.RFC3339),
		}
	}
	if view.Next != nil {
		next := contentOutputFromView(view.Next)
		out.Next = &next
	}
	return nil, out, nil
}

func (s *Server) handleGetProgress(ctx context.Context, req *sdk.CallToolRequest, input GetProgressInput) (*sdk.CallToolResult, ProgressOutput, error) {
	if input.UserID == 0 {
		return nil, ProgressOutput{}, fmt.Errorf("user_id is required")
	}
	view, err := s.engine.GetProgress(ctx, input.UserID)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	return nil, ProgressOutput{
		UserID:            view.UserID,
		Level:             view.Level,
		VIPTier:           view.VIPTier.String(),
		PointsTotal:       view.PointsTotal,
		UnlockedClues:     append([]string{}, view.UnlockedClues...),
		VisitedCount:      view.VisitedCount,
		CompletedCount:    view.CompletedCount,
		ActiveFragments:   view.ActiveFragments,
		CompletionPercent: view.CompletionPercent,
		CurrentFragmentID: view.CurrentFragmentID,
	}, nil
}

func (s *Server) handleValidateText(ctx context.Context, req *sdk.CallToolRequest, input ValidateTextInput) (*sdk.CallToolResult, ValidateTextOutput, error) {
	if input.Text == "" {
		return nil, ValidateTextOutput{}, fmt.Errorf("text is required")
	}
	validationContext, err := parseContext(input.Context)
	if err != nil {
		return nil, ValidateTextOutput{}, err
	}
	result := s.engine.ValidateText(input.Text, validationContext, input.Style)

	traits := make(map[string]float64, len(result.TraitScores))
	for trait, score := range result.TraitScores {
		traits[string(trait)] = score
	}
	return nil, ValidateTextOutput{
		OverallScore:  result.OverallScore,
		TraitScores:   traits,
		Pass:          result.Pass,
		ViolatedRules: append([]string{}, result.ViolatedRules...),
		Disqualified:  result.Disqualified,
	}, nil
}

func (s *Server) handleListFragments(ctx context.Context, req *sdk.CallToolRequest, input ListFragmentsInput) (*sdk.CallToolResult, ListFragmentsOutput, error) {
	filter := store.FragmentFilter{ActiveOnly: input.ActiveOnly}
	if input.Type != "" {
		fragmentType, err := story.ParseFragmentType(input.Type)
		if err != nil {
			return nil, ListFragmentsOutput{}, err
		}
		filter.Type = fragmentType
	}
	items, err := s.catalog.ListFragments(ctx, filter)
	if err != nil {
		return nil, ListFragmentsOutput{}, err
	}

	output := make([]FragmentSummaryOutput, 0, len(items))
	for _, item := range items {
		output = append(output, FragmentSummaryOutput{
			ID:       item.ID,
			Title:    item.Title,
			Type:     string(item.Type),
			Tier:     item.Tier.String(),
			MinLevel: item.MinLevel,
			Active:   item.Active,
		})
	}
	return nil, ListFragmentsOutput{Fragments: output}, nil
}

func (s *Server) handleSetMultiplier(ctx context.Context, req *sdk.CallToolRequest, input SetMultiplierInput) (*sdk.CallToolResult, SetMultiplierOutput, error) {
	if input.UserID == 0 {
		return nil, SetMultiplierOutput{}, fmt.Errorf("user_id is required")
	}
	if input.Multiplier <= 0 {
		return nil, SetMultiplierOutput{}, fmt.Errorf("multiplier must be positive")
	}
	if err := s.catalog.SetArchetypeMultiplier(ctx, input.UserID, input.Multiplier); err != nil {
		return nil, SetMultiplierOutput{}, err
	}
	return nil, SetMultiplierOutput{UserID: input.UserID, Multiplier: input.Multiplier}, nil
}

func parseContext(value string) (validator.Context, error) {
	switch validator.Context(value) {
	case "":
		return validator.ContextFragment, nil
	case validator.ContextFragment, validator.ContextMenu, validator.ContextDenial, validator.ContextError:
		return validator.Context(value), nil
	}
	return "", fmt.Errorf("unknown validation context: %q", value)
}

func contentOutputFromView(view *engine.ContentView) ContentOutput {
	if view == nil {
		return ContentOutput{}
	}
	out := ContentOutput{
		FragmentID:   view.FragmentID,
		Title:        view.Title,
		Body:         view.Body,
		Type:         string(view.Type),
		UsedFallback: view.UsedFallback,
		Denial:       denialOutputFromView(view.Denial),
	}
	for _, choice := range view.Choices {
		out.Choices = append(out.Choices, ChoiceOutput{ID: choice.ID, Label: choice.Label})
	}
	return out
}

func denialOutputFromView(denial *engine.Denial) *DenialOutput {
	if denial == nil {
		return nil
	}
	return &DenialOutput{
		Reason:       string(denial.Reason),
		Missing:      append([]string{}, denial.Missing...),
		Message:      denial.Message,
		Alternatives: append([]string{}, denial.Alternatives...),
	}
}
