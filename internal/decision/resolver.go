// Package decision turns a user's choice into rewards, unlocked
// prerequisites, and the next fragment.
package decision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"nocturne/internal/access"
	"nocturne/internal/progress"
	"nocturne/internal/story"
)

// ErrInvalidChoice reports a decision against a fragment or choice that
// cannot accept it. A client programming error, not a user-facing denial.
var ErrInvalidChoice = errors.New("invalid choice")

const (
	minMultiplier = 0.5
	maxMultiplier = 2.0
)

// MultiplierSource supplies the external archetype scaling factor.
type MultiplierSource interface {
	Multiplier(ctx context.Context, userID int64) (float64, bool, error)
}

// RecordFinder looks up a previously resolved decision.
type RecordFinder interface {
	FindDecisionRecord(ctx context.Context, userID int64, fragmentID string) (*progress.DecisionRecord, error)
}

// FragmentLoader fetches destination fragments for accessibility checks.
type FragmentLoader interface {
	GetFragment(ctx context.Context, id string) (*story.Fragment, error)
}

// Outcome is the complete result of resolving one decision.
type Outcome struct {
	Record          *progress.DecisionRecord
	State           *progress.State
	NextFragmentID  string
	BlockedByAccess bool
	Replayed        bool
	LevelsGained    int
	MultiplierUsed  float64
	ArchetypeHints  map[string]int
}

type Resolver struct {
	records         RecordFinder
	fragments       FragmentLoader
	multipliers     MultiplierSource
	levelThresholds []int
	now             func() time.Time
	newID           func() string
}

func NewResolver(records RecordFinder, fragments FragmentLoader, multipliers MultiplierSource, levelThresholds []int) *Resolver {
	return &Resolver{
		records:         records,
		fragments:       fragments,
		multipliers:     multipliers,
		levelThresholds: levelThresholds,
		now:             time.Now,
		newID:           func() string { return uuid.NewString() },
	}
}

// Resolve computes the consequences of choosing choiceID on a DECISION
// fragment. At-most-once: if a record already exists for the (user,
// fragment) pair and the fragment does not allow revisits, the prior result
// is returned unchanged and no reward is applied again.
func (r *Resolver) Resolve(ctx context.Context, state *progress.State, fragment *story.Fragment, choiceID string) (*Outcome, error) {
	if fragment == nil {
		return nil, fmt.Errorf("%w: fragment is nil", ErrInvalidChoice)
	}
	if !fragment.IsDecision() {
		return nil, fmt.Errorf("%w: fragment %s is %s, not DECISION", ErrInvalidChoice, fragment.ID, fragment.Type)
	}
	choice, ok := fragment.ChoiceByID(choiceID)
	if !ok {
		return nil, fmt.Errorf("%w: fragment %s has no choice %q", ErrInvalidChoice, fragment.ID, choiceID)
	}

	prior, err := r.records.FindDecisionRecord(ctx, state.UserID, fragment.ID)
	if err != nil {
		return nil, fmt.Errorf("finding prior decision: %w", err)
	}
	if prior != nil && !fragment.AllowRevisit {
		return r.replay(ctx, state, fragment, prior)
	}

	if state.HasCompleted(fragment.ID) && !fragment.AllowRevisit {
		// Completed without a record should not happen, but the guard keeps
		// the at-most-once promise either way.
		return nil, fmt.Errorf("%w: fragment %s already completed", ErrInvalidChoice, fragment.ID)
	}

	multiplier := r.lookupMultiplier(ctx, state.UserID)
	points := int(math.Floor(float64(choice.PointsReward+fragment.Trigger.BasePoints) * multiplier))

	updated := state.Clone()
	updated.MarkVisited(fragment.ID)
	updated.MarkCompleted(fragment.ID)
	unlocked := updated.UnlockClues(append(append([]string(nil), fragment.Trigger.Unlocks...), choice.Unlocks...))
	updated.PointsTotal += points
	levelsGained := updated.ApplyLevelThresholds(r.levelThresholds)

	record := &progress.DecisionRecord{
		ID:             r.newID(),
		UserID:         state.UserID,
		FragmentID:     fragment.ID,
		ChoiceID:       choice.ID,
		PointsAwarded:  points,
		CluesUnlocked:  unlocked,
		NarrativeFlags: append([]string(nil), fragment.Trigger.NarrativeFlags...),
		MadeAt:         r.now().UTC(),
	}

	nextID, blocked, err := r.resolveDestination(ctx, updated, choice)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Record:          record,
		State:           updated,
		NextFragmentID:  nextID,
		BlockedByAccess: blocked,
		LevelsGained:    levelsGained,
		MultiplierUsed:  multiplier,
		ArchetypeHints:  choice.ArchetypeWeights,
	}, nil
}

// replay returns a prior decision unchanged, re-deriving only the next
// fragment, whose accessibility may have shifted since the first resolution.
func (r *Resolver) replay(ctx context.Context, state *progress.State, fragment *story.Fragment, prior *progress.DecisionRecord) (*Outcome, error) {
	choice, ok := fragment.ChoiceByID(prior.ChoiceID)
	if !ok {
		// The authored choice set changed after the record was written.
		return &Outcome{Record: prior, State: state, Replayed: true}, nil
	}

	nextID, blocked, err := r.resolveDestination(ctx, state, choice)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Record:          prior,
		State:           state,
		NextFragmentID:  nextID,
		BlockedByAccess: blocked,
		Replayed:        true,
		ArchetypeHints:  choice.ArchetypeWeights,
	}, nil
}

func (r *Resolver) resolveDestination(ctx context.Context, state *progress.State, choice story.Choice) (string, bool, error) {
	if choice.DestinationID == "" {
		return "", false, nil
	}

	destination, err := r.fragments.GetFragment(ctx, choice.DestinationID)
	if err != nil {
		return "", false, fmt.Errorf("loading destination %s: %w", choice.DestinationID, err)
	}

	if decision := access.Check(state, destination); !decision.Granted {
		return "", true, nil
	}
	return choice.DestinationID, false, nil
}

func (r *Resolver) lookupMultiplier(ctx context.Context, userID int64) float64 {
	if r.multipliers == nil {
		return 1.0
	}
	multiplier, ok, err := r.multipliers.Multiplier(ctx, userID)
	if err != nil || !ok {
		return 1.0
	}
	if multiplier < minMultiplier {
		return minMultiplier
	}
	if multiplier > maxMultiplier {
		return maxMultiplier
	}
	return multiplier
}
