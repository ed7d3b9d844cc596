// Package validate is the batch QA pass over authored content: every active
// fragment is scored the way it would be at delivery time, and the story
// graph is checked for dangling references.
package validate

import (
	"context"
	"fmt"
	"strings"

	"nocturne/internal/store"
	"nocturne/internal/story"
	"nocturne/internal/validator"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeBelowThreshold      = "score_below_threshold"
	codeDisqualified        = "disqualifying_violation"
	codeDanglingDestination = "dangling_destination"
	codeUnsatisfiableClue   = "unsatisfiable_clue"
)

type Issue struct {
	Severity   Severity
	Code       string
	Message    string
	FragmentID string
	SourceFile string
}

type Report struct {
	FragmentsChecked int
	Issues           []Issue
}

func (r *Report) Failed() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Store is the read-only slice of storage the QA pass consumes.
type Store interface {
	ListFragments(ctx context.Context, filter store.FragmentFilter) ([]story.FragmentSummary, error)
	GetFragment(ctx context.Context, id string) (*story.Fragment, error)
}

func Run(ctx context.Context, db Store, valid *validator.Validator) (*Report, error) {
	if valid == nil {
		return nil, fmt.Errorf("validator is required")
	}

	summaries, err := db.ListFragments(ctx, store.FragmentFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}

	report := &Report{}
	fragments := make([]*story.Fragment, 0, len(summaries))
	active := make(map[string]bool, len(summaries))
	unlockable := make(map[string]bool)

	for _, summary := range summaries {
		fragment, err := db.GetFragment(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("get fragment %s: %w", summary.ID, err)
		}
		if fragment == nil {
			continue
		}
		fragments = append(fragments, fragment)
		active[fragment.ID] = true
		for _, clue := range fragment.Trigger.Unlocks {
			unlockable[clue] = true
		}
		for _, choice := range fragment.Choices {
			for _, clue := range choice.Unlocks {
				unlockable[clue] = true
			}
		}
	}

	for _, fragment := range fragments {
		report.FragmentsChecked++
		report.Issues = append(report.Issues, checkContent(fragment, valid)...)
		report.Issues = append(report.Issues, checkReferences(fragment, active, unlockable)...)
	}

	return report, nil
}

func checkContent(fragment *story.Fragment, valid *validator.Validator) []Issue {
	result := valid.Validate(fragment.FullText(), validator.ContextFragment)
	if result.Pass {
		return nil
	}

	var issues []Issue
	if result.Disqualified {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       codeDisqualified,
			Message:    fmt.Sprintf("disqualifying violations: %s", strings.Join(result.ViolatedRules, ", ")),
			FragmentID: fragment.ID,
			SourceFile: fragment.SourceFile,
		})
	}
	if result.OverallScore < valid.Threshold(validator.ContextFragment) {
		message := fmt.Sprintf("scored %.1f, threshold %.1f", result.OverallScore, valid.Threshold(validator.ContextFragment))
		if len(result.ViolatedRules) > 0 {
			message += fmt.Sprintf(" (violations: %s)", strings.Join(result.ViolatedRules, ", "))
		}
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       codeBelowThreshold,
			Message:    message,
			FragmentID: fragment.ID,
			SourceFile: fragment.SourceFile,
		})
	}
	return issues
}

func checkReferences(fragment *story.Fragment, active map[string]bool, unlockable map[string]bool) []Issue {
	var issues []Issue
	for _, choice := range fragment.Choices {
		if choice.DestinationID == "" {
			continue
		}
		if !active[choice.DestinationID] {
			issues = append(issues, Issue{
				Severity:   SeverityWarn,
				Code:       codeDanglingDestination,
				Message:    fmt.Sprintf("choice %s points at missing or inactive fragment %s", choice.ID, choice.DestinationID),
				FragmentID: fragment.ID,
				SourceFile: fragment.SourceFile,
			})
		}
	}
	for _, clue := range fragment.RequiredClues {
		if !unlockable[clue] {
			issues = append(issues, Issue{
				Severity:   SeverityWarn,
				Code:       codeUnsatisfiableClue,
				Message:    fmt.Sprintf("required clue %s is never unlocked by any active fragment", clue),
				FragmentID: fragment.ID,
				SourceFile: fragment.SourceFile,
			})
		}
	}
	return issues
}
