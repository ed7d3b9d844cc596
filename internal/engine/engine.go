// Package engine orchestrates one user request: gate the fragment, resolve
// the decision if one was submitted, validate the outgoing text, persist the
// state transition. Every failure path yields a well-formed response.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nocturne/internal/access"
	"nocturne/internal/decision"
	"nocturne/internal/progress"
	"nocturne/internal/store"
	"nocturne/internal/story"
	"nocturne/internal/validator"
)

// maxAlternatives caps the suggested fragments offered with a denial.
const maxAlternatives = 3

// Denial narrates a refused request in-world. It is a normal response, not
// an error.
type Denial struct {
	Reason       access.Reason
	Missing      []string
	Message      string
	Alternatives []string
}

type ChoiceView struct {
	ID    string
	Label string
}

// ContentView is the render-ready result of GetNextContent: either validated
// fragment text or a denial narration, never both.
type ContentView struct {
	FragmentID   string
	Title        string
	Body         string
	Type         story.FragmentType
	Choices      []ChoiceView
	UsedFallback bool
	Score        float64
	Denial       *Denial
}

// DecisionView is the result of SubmitDecision.
type DecisionView struct {
	Record         *progress.DecisionRecord
	Replayed       bool
	LevelsGained   int
	NextFragmentID string
	Blocked        *Denial
	Next           *ContentView
	ArchetypeHints map[string]int
	Denial         *Denial
}

type Engine struct {
	store           store.Store
	validator       *validator.Validator
	synth           *validator.Synthesizer
	cache           *validator.Cache
	resolver        *decision.Resolver
	locks           *userLocks
	levelThresholds []int
	log             *zap.Logger
	now             func() time.Time
}

// New wires the engine and certifies every fallback and denial template, so
// a failed validation can always be recovered without another validation
// failure.
func New(st store.Store, valid *validator.Validator, synth *validator.Synthesizer, cache *validator.Cache, levelThresholds []int, log *zap.Logger) (*Engine, error) {
	if err := validator.Certify(valid, synth); err != nil {
		return nil, fmt.Errorf("certifying templates: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	resolver := decision.NewResolver(st, st, decision.StoreMultiplierSource{Reader: st}, levelThresholds)

	return &Engine{
		store:           st,
		validator:       valid,
		synth:           synth,
		cache:           cache,
		resolver:        resolver,
		locks:           newUserLocks(),
		levelThresholds: levelThresholds,
		log:             log,
		now:             time.Now,
	}, nil
}

// GetNextContent returns render-ready text for the user: the requested
// fragment, or the user's current fragment when fragmentID is empty, or the
// first accessible fragment for a brand-new user. Denied access returns an
// in-world denial with suggested alternatives.
func (e *Engine) GetNextContent(ctx context.Context, userID int64, fragmentID, styleHint string) (*ContentView, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	state, err := e.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	if fragmentID == "" {
		fragmentID = state.CurrentFragmentID
	}
	if fragmentID == "" {
		fragmentID, err = e.firstAccessible(ctx, state)
		if err != nil {
			return nil, err
		}
	}
	if fragmentID == "" {
		return &ContentView{Denial: e.denial(ctx, state, access.Decision{Reason: access.ReasonContentUnavailable})}, nil
	}

	fragment, err := e.store.GetFragment(ctx, fragmentID)
	if err != nil {
		return nil, fmt.Errorf("loading fragment %s: %w", fragmentID, err)
	}

	if check := access.Check(state, fragment); !check.Granted {
		e.log.Info("access denied",
			zap.Int64("user_id", userID),
			zap.String("fragment_id", fragmentID),
			zap.String("reason", string(check.Reason)))
		return &ContentView{FragmentID: fragmentID, Denial: e.denial(ctx, state, check)}, nil
	}

	view := e.render(fragment, styleHint)

	updated := state.Clone()
	updated.MarkVisited(fragment.ID)
	updated.CurrentFragmentID = fragment.ID
	e.applyViewTrigger(updated, fragment)
	updated.Version++
	updated.UpdatedAt = e.now().UTC()

	if err := e.store.SaveUserState(ctx, updated); err != nil {
		return nil, &PersistenceError{Op: "user state", Err: err}
	}

	return view, nil
}

// SubmitDecision resolves a choice, persists its consequences atomically,
// and returns the validated next fragment. Resubmitting the same decision
// returns the original record with no second reward.
func (e *Engine) SubmitDecision(ctx context.Context, userID int64, fragmentID, choiceID, styleHint string) (*DecisionView, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	state, err := e.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	fragment, err := e.store.GetFragment(ctx, fragmentID)
	if err != nil {
		return nil, fmt.Errorf("loading fragment %s: %w", fragmentID, err)
	}

	if check := access.Check(state, fragment); !check.Granted {
		e.log.Info("decision denied",
			zap.Int64("user_id", userID),
			zap.String("fragment_id", fragmentID),
			zap.String("reason", string(check.Reason)))
		return &DecisionView{Denial: e.denial(ctx, state, check)}, nil
	}

	outcome, err := e.resolver.Resolve(ctx, state, fragment, choiceID)
	if err != nil {
		if errors.Is(err, decision.ErrInvalidChoice) {
			return nil, &InvalidChoiceError{FragmentID: fragmentID, ChoiceID: choiceID, Err: err}
		}
		return nil, fmt.Errorf("resolving decision: %w", err)
	}

	view := &DecisionView{
		Record:         outcome.Record,
		Replayed:       outcome.Replayed,
		LevelsGained:   outcome.LevelsGained,
		NextFragmentID: outcome.NextFragmentID,
		ArchetypeHints: outcome.ArchetypeHints,
	}

	// On a replay the outcome derives from the recorded choice, which may
	// differ from the one just submitted.
	if outcome.BlockedByAccess {
		view.Blocked = e.destinationDenial(ctx, outcome.State, fragment, outcome.Record.ChoiceID)
	}

	if outcome.Replayed {
		e.log.Info("decision replayed",
			zap.Int64("user_id", userID),
			zap.String("fragment_id", fragmentID),
			zap.String("record_id", outcome.Record.ID))
		view.Next = e.nextView(ctx, outcome.NextFragmentID, styleHint)
		return view, nil
	}

	updated := outcome.State
	if outcome.NextFragmentID != "" {
		updated.MarkVisited(outcome.NextFragmentID)
		updated.CurrentFragmentID = outcome.NextFragmentID
	}
	updated.Version++
	updated.UpdatedAt = e.now().UTC()

	if err := e.store.CommitDecision(ctx, updated, outcome.Record); err != nil {
		if errors.Is(err, store.ErrDuplicateDecision) {
			return e.replayCommitted(ctx, userID, fragmentID, styleHint)
		}
		return nil, &PersistenceError{Op: "decision", Err: err}
	}

	e.log.Info("decision resolved",
		zap.Int64("user_id", userID),
		zap.String("fragment_id", fragmentID),
		zap.String("choice_id", choiceID),
		zap.Int("points_awarded", outcome.Record.PointsAwarded),
		zap.Float64("multiplier", outcome.MultiplierUsed),
		zap.Int("levels_gained", outcome.LevelsGained))

	view.Next = e.nextView(ctx, outcome.NextFragmentID, styleHint)
	return view, nil
}

// ValidateText runs the cached validator; the MCP validate_text tool and the
// batch QA command both go through here.
func (e *Engine) ValidateText(text string, context validator.Context, adaptationID string) validator.Result {
	return e.validateCached(text, context, adaptationID)
}

// ProgressView summarizes a user's progression for reporting.
type ProgressView struct {
	UserID            int64
	Level             int
	VIPTier           story.Tier
	PointsTotal       int
	UnlockedClues     []string
	VisitedCount      int
	CompletedCount    int
	ActiveFragments   int
	CompletionPercent float64
	CurrentFragmentID string
}

func (e *Engine) GetProgress(ctx context.Context, userID int64) (*ProgressView, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	state, err := e.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries, err := e.store.ListFragments(ctx, store.FragmentFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}

	completed := 0
	for _, summary := range summaries {
		if state.HasCompleted(summary.ID) {
			completed++
		}
	}
	percent := 0.0
	if len(summaries) > 0 {
		percent = float64(completed) / float64(len(summaries)) * 100
	}

	return &ProgressView{
		UserID:            state.UserID,
		Level:             state.Level,
		VIPTier:           state.VIPTier,
		PointsTotal:       state.PointsTotal,
		UnlockedClues:     append([]string(nil), state.UnlockedClues...),
		VisitedCount:      len(state.VisitedFragments),
		CompletedCount:    len(state.CompletedFragments),
		ActiveFragments:   len(summaries),
		CompletionPercent: percent,
		CurrentFragmentID: state.CurrentFragmentID,
	}, nil
}

func (e *Engine) loadState(ctx context.Context, userID int64) (*progress.State, error) {
	state, err := e.store.LoadUserState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user state: %w", err)
	}
	if state == nil {
		state = progress.NewState(userID)
	}
	return state, nil
}

// render validates the fragment's full displayable text and swaps in the
// pre-certified fallback when it fails. The user always gets passing text.
func (e *Engine) render(fragment *story.Fragment, styleHint string) *ContentView {
	result := e.validateCached(fragment.FullText(), validator.ContextFragment, styleHint)

	view := &ContentView{
		FragmentID: fragment.ID,
		Title:      fragment.Title,
		Body:       fragment.Content,
		Type:       fragment.Type,
		Score:      result.OverallScore,
	}
	for _, choice := range fragment.Choices {
		view.Choices = append(view.Choices, ChoiceView{ID: choice.ID, Label: choice.Label})
	}

	if !result.Pass {
		e.log.Warn("content failed validation",
			zap.String("fragment_id", fragment.ID),
			zap.Float64("score", result.OverallScore),
			zap.Strings("violated_rules", result.ViolatedRules),
			zap.Bool("disqualified", result.Disqualified))
		view.Body = e.synth.Fallback(validator.ContextFragment, styleHint)
		view.UsedFallback = true
	}

	return view
}

// nextView renders the destination fragment for a decision response. Purely
// derived; any state change was already committed.
func (e *Engine) nextView(ctx context.Context, fragmentID, styleHint string) *ContentView {
	if fragmentID == "" {
		return nil
	}
	fragment, err := e.store.GetFragment(ctx, fragmentID)
	if err != nil || fragment == nil {
		e.log.Warn("next fragment unavailable", zap.String("fragment_id", fragmentID), zap.Error(err))
		return nil
	}
	return e.render(fragment, styleHint)
}

// validateCached consults the cache before the scorer and stores only
// passing results, so ephemeral failures never poison the cache. Disabling
// the cache changes latency, never the result.
func (e *Engine) validateCached(text string, context validator.Context, adaptationID string) validator.Result {
	if e.cache == nil {
		return e.validator.Validate(text, context)
	}
	key := validator.Key(text, context, adaptationID)
	if result, ok := e.cache.Get(key); ok {
		return result
	}
	result := e.validator.Validate(text, context)
	if result.Pass {
		e.cache.Put(key, result)
	}
	return result
}

// applyViewTrigger completes STORY and INFO fragments on first view: base
// points, clue unlocks, level thresholds. DECISION fragments complete
// through the resolver instead.
func (e *Engine) applyViewTrigger(state *progress.State, fragment *story.Fragment) {
	if fragment.IsDecision() || state.HasCompleted(fragment.ID) {
		return
	}
	state.MarkCompleted(fragment.ID)
	state.UnlockClues(fragment.Trigger.Unlocks)
	state.PointsTotal += fragment.Trigger.BasePoints
	state.ApplyLevelThresholds(e.levelThresholds)
}

func (e *Engine) denial(ctx context.Context, state *progress.State, check access.Decision) *Denial {
	message := e.synth.Denial(denialKey(check.Reason))
	if result := e.validateCached(message, validator.ContextDenial, ""); !result.Pass {
		e.log.Warn("denial template failed validation",
			zap.String("reason", string(check.Reason)),
			zap.Strings("violated_rules", result.ViolatedRules))
	}
	return &Denial{
		Reason:       check.Reason,
		Missing:      check.Missing,
		Message:      message,
		Alternatives: e.suggestAlternatives(ctx, state),
	}
}

// destinationDenial narrates a destination that became inaccessible after
// the decision was resolved. The decision's rewards stand.
func (e *Engine) destinationDenial(ctx context.Context, state *progress.State, fragment *story.Fragment, choiceID string) *Denial {
	choice, ok := fragment.ChoiceByID(choiceID)
	if !ok || choice.DestinationID == "" {
		return e.denial(ctx, state, access.Decision{Reason: access.ReasonContentUnavailable})
	}
	destination, err := e.store.GetFragment(ctx, choice.DestinationID)
	if err != nil {
		e.log.Warn("loading blocked destination", zap.String("fragment_id", choice.DestinationID), zap.Error(err))
		return e.denial(ctx, state, access.Decision{Reason: access.ReasonContentUnavailable})
	}
	return e.denial(ctx, state, access.Check(state, destination))
}

// suggestAlternatives returns up to maxAlternatives accessible, uncompleted
// fragment ids to offer alongside a denial. Best effort; an empty list is a
// valid answer.
func (e *Engine) suggestAlternatives(ctx context.Context, state *progress.State) []string {
	summaries, err := e.store.ListFragments(ctx, store.FragmentFilter{ActiveOnly: true})
	if err != nil {
		e.log.Warn("listing alternatives", zap.Error(err))
		return nil
	}

	var alternatives []string
	for _, summary := range summaries {
		if len(alternatives) == maxAlternatives {
			break
		}
		if state.HasCompleted(summary.ID) {
			continue
		}
		if summary.Tier > state.VIPTier || state.Level < summary.MinLevel {
			continue
		}
		fragment, err := e.store.GetFragment(ctx, summary.ID)
		if err != nil || fragment == nil {
			continue
		}
		if check := access.Check(state, fragment); check.Granted {
			alternatives = append(alternatives, summary.ID)
		}
	}
	return alternatives
}

// firstAccessible picks the entry fragment for a user with no current
// position.
func (e *Engine) firstAccessible(ctx context.Context, state *progress.State) (string, error) {
	summaries, err := e.store.ListFragments(ctx, store.FragmentFilter{ActiveOnly: true})
	if err != nil {
		return "", fmt.Errorf("listing fragments: %w", err)
	}
	for _, summary := range summaries {
		if summary.Tier > state.VIPTier || state.Level < summary.MinLevel {
			continue
		}
		fragment, err := e.store.GetFragment(ctx, summary.ID)
		if err != nil || fragment == nil {
			continue
		}
		if check := access.Check(state, fragment); check.Granted {
			return summary.ID, nil
		}
	}
	return "", nil
}

func denialKey(reason access.Reason) string {
	switch reason {
	case access.ReasonTierInsufficient:
		return validator.DenialTierInsufficient
	case access.ReasonLevelInsufficient:
		return validator.DenialLevelInsufficient
	case access.ReasonPrerequisitesMissing:
		return validator.DenialPrerequisitesMissing
	default:
		return validator.DenialContentUnavailable
	}
}

// replayCommitted recovers from a duplicate-decision race: another process
// committed the same decision first. Return its record as a replay.
func (e *Engine) replayCommitted(ctx context.Context, userID int64, fragmentID, styleHint string) (*DecisionView, error) {
	record, err := e.store.FindDecisionRecord(ctx, userID, fragmentID)
	if err != nil || record == nil {
		return nil, &PersistenceError{Op: "decision", Err: fmt.Errorf("duplicate decision but prior record unavailable: %w", err)}
	}

	state, err := e.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	fragment, err := e.store.GetFragment(ctx, fragmentID)
	if err != nil || fragment == nil {
		return &DecisionView{Record: record, Replayed: true}, nil
	}

	view := &DecisionView{Record: record, Replayed: true}
	if choice, ok := fragment.ChoiceByID(record.ChoiceID); ok && choice.DestinationID != "" {
		destination, err := e.store.GetFragment(ctx, choice.DestinationID)
		if err == nil && destination != nil {
			if check := access.Check(state, destination); check.Granted {
				view.NextFragmentID = choice.DestinationID
				view.Next = e.render(destination, styleHint)
			} else {
				view.Blocked = e.denial(ctx, state, check)
			}
		}
	}
	return view, nil
}
