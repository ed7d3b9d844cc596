// Package access gates fragments by progression state. Checks are pure and
// ordered; a denial never mutates state and is safe to retry.
package access

import (
	"fmt"

	"nocturne/internal/progress"
	"nocturne/internal/story"
)

type Reason string

const (
	ReasonGranted              Reason = "ACCESS_GRANTED"
	ReasonContentUnavailable   Reason = "CONTENT_UNAVAILABLE"
	ReasonTierInsufficient     Reason = "TIER_INSUFFICIENT"
	ReasonLevelInsufficient    Reason = "LEVEL_INSUFFICIENT"
	ReasonPrerequisitesMissing Reason = "PREREQUISITES_MISSING"
)

// Decision is the outcome of one access check. Derived fresh on every call,
// never persisted.
type Decision struct {
	Granted bool
	Reason  Reason
	Missing []string
}

// Check runs the ordered access checks; the first failing check wins and
// there are no partial grants.
func Check(state *progress.State, fragment *story.Fragment) Decision {
	if fragment == nil || !fragment.Active {
		return Decision{Reason: ReasonContentUnavailable}
	}

	if fragment.Tier > state.VIPTier {
		return Decision{
			Reason:  ReasonTierInsufficient,
			Missing: []string{fragment.Tier.String()},
		}
	}

	if state.Level < fragment.MinLevel {
		return Decision{
			Reason:  ReasonLevelInsufficient,
			Missing: []string{fmt.Sprintf("level %d", fragment.MinLevel)},
		}
	}

	var missing []string
	for _, clue := range fragment.RequiredClues {
		if !state.HasClue(clue) {
			missing = append(missing, clue)
		}
	}
	if len(missing) > 0 {
		return Decision{
			Reason:  ReasonPrerequisitesMissing,
			Missing: missing,
		}
	}

	return Decision{Granted: true, Reason: ReasonGranted}
}

// Status reports the fragment's lifecycle position for the user, combining
// the access checks with the visited/completed history.
func Status(state *progress.State, fragment *story.Fragment) progress.Status {
	decision := Check(state, fragment)
	id := ""
	if fragment != nil {
		id = fragment.ID
	}
	return state.FragmentStatus(id, decision.Granted)
}
