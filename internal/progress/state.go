package progress

import (
	"time"

	"nocturne/internal/story"
)

// Status is the per-user lifecycle of a fragment. Transitions only move
// forward: LOCKED -> AVAILABLE -> VISITED -> COMPLETED.
type Status string

const (
	StatusLocked    Status = "LOCKED"
	StatusAvailable Status = "AVAILABLE"
	StatusVisited   Status = "VISITED"
	StatusCompleted Status = "COMPLETED"
)

// State is a user's progression through the narrative. It is updated
// copy-on-write: mutate a clone, bump Version, persist the whole row.
type State struct {
	UserID             int64
	Level              int
	VIPTier            story.Tier
	PointsTotal        int
	UnlockedClues      []string
	VisitedFragments   []string
	CompletedFragments []string
	CurrentFragmentID  string
	Version            int64
	UpdatedAt          time.Time
}

// NewState is the lazily created state for a user's first interaction.
func NewState(userID int64) *State {
	return &State{
		UserID:  userID,
		Level:   1,
		VIPTier: story.TierFree,
		Version: 0,
	}
}

func (s *State) HasClue(clue string) bool {
	return containsString(s.UnlockedClues, clue)
}

func (s *State) HasVisited(fragmentID string) bool {
	return containsString(s.VisitedFragments, fragmentID)
}

func (s *State) HasCompleted(fragmentID string) bool {
	return containsString(s.CompletedFragments, fragmentID)
}

// FragmentStatus reports where a fragment sits in the user's lifecycle,
// given whether the access checks currently pass.
func (s *State) FragmentStatus(fragmentID string, accessible bool) Status {
	switch {
	case s.HasCompleted(fragmentID):
		return StatusCompleted
	case s.HasVisited(fragmentID):
		return StatusVisited
	case accessible:
		return StatusAvailable
	default:
		return StatusLocked
	}
}

// Clone returns a deep copy. Callers mutate the copy, never the original.
func (s *State) Clone() *State {
	clone := *s
	clone.UnlockedClues = append([]string(nil), s.UnlockedClues...)
	clone.VisitedFragments = append([]string(nil), s.VisitedFragments...)
	clone.CompletedFragments = append([]string(nil), s.CompletedFragments...)
	return &clone
}

// UnlockClues appends clues not yet held. Order of first unlock is kept;
// re-unlocking is a no-op, so the set only ever grows.
func (s *State) UnlockClues(clues []string) []string {
	var added []string
	for _, clue := range clues {
		if clue == "" || s.HasClue(clue) {
			continue
		}
		s.UnlockedClues = append(s.UnlockedClues, clue)
		added = append(added, clue)
	}
	return added
}

// MarkVisited records a first successful render of a fragment.
func (s *State) MarkVisited(fragmentID string) {
	if fragmentID == "" || s.HasVisited(fragmentID) {
		return
	}
	s.VisitedFragments = append(s.VisitedFragments, fragmentID)
}

// MarkCompleted records a fragment as finished for the user.
func (s *State) MarkCompleted(fragmentID string) {
	if fragmentID == "" || s.HasCompleted(fragmentID) {
		return
	}
	s.CompletedFragments = append(s.CompletedFragments, fragmentID)
}

// ApplyLevelThresholds raises the level while the next threshold is met.
// thresholds[n] is the points total required to reach level n+2 (index 0
// gates the step from level 1 to level 2). Levels never decrease.
func (s *State) ApplyLevelThresholds(thresholds []int) int {
	levelsGained := 0
	for s.Level-1 < len(thresholds) && s.PointsTotal >= thresholds[s.Level-1] {
		s.Level++
		levelsGained++
	}
	return levelsGained
}

// DecisionRecord is an append-only log entry for one resolved decision.
type DecisionRecord struct {
	ID             string
	UserID         int64
	FragmentID     string
	ChoiceID       string
	PointsAwarded  int
	CluesUnlocked  []string
	NarrativeFlags []string
	MadeAt         time.Time
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
