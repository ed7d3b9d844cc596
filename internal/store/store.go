package store

import (
	"context"
	"errors"

	"nocturne/internal/progress"
	"nocturne/internal/story"
)

var (
	// ErrVersionConflict reports a lost copy-on-write race on user state.
	ErrVersionConflict = errors.New("user state version conflict")
	// ErrDuplicateDecision reports a second record for a (user, fragment)
	// pair that does not allow revisits.
	ErrDuplicateDecision = errors.New("decision already recorded")
)

// FragmentFilter narrows ListFragments. Zero values mean no filtering.
type FragmentFilter struct {
	Type       story.FragmentType
	ActiveOnly bool
}

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	UpsertFragment(ctx context.Context, fragment *story.Fragment) error
	GetFragment(ctx context.Context, id string) (*story.Fragment, error)
	ListFragments(ctx context.Context, filter FragmentFilter) ([]story.FragmentSummary, error)
	GetSourceHashes(ctx context.Context) (map[string]string, error)
	RemoveStaleFragments(ctx context.Context, currentSourceFiles []string) (int64, error)

	LoadUserState(ctx context.Context, userID int64) (*progress.State, error)
	SaveUserState(ctx context.Context, state *progress.State) error
	FindDecisionRecord(ctx context.Context, userID int64, fragmentID string) (*progress.DecisionRecord, error)
	AppendDecisionRecord(ctx context.Context, record *progress.DecisionRecord) error

	// CommitDecision persists the state transition and its decision record
	// in one transaction; partial application is never observable.
	CommitDecision(ctx context.Context, state *progress.State, record *progress.DecisionRecord) error

	GetArchetypeMultiplier(ctx context.Context, userID int64) (float64, bool, error)
	SetArchetypeMultiplier(ctx context.Context, userID int64, multiplier float64) error
}
