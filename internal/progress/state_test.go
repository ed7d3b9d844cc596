package progress

import (
	"testing"
)

func TestUnlockClues_Monotonic(t *testing.T) {
	s := NewState(7)
	added := s.UnlockClues([]string{"clue_a", "clue_b"})
	if len(added) != 2 {
		t.Fatalf("added = %v, want 2 clues", added)
	}

	added = s.UnlockClues([]string{"clue_b", "", "clue_c"})
	if len(added) != 1 || added[0] != "clue_c" {
		t.Fatalf("added = %v, want [clue_c]", added)
	}
	if len(s.UnlockedClues) != 3 {
		t.Fatalf("unlocked = %v, want 3 clues", s.UnlockedClues)
	}
	if !s.HasClue("clue_a") || !s.HasClue("clue_c") {
		t.Fatal("expected clues to be held")
	}
}

func TestClone_Isolation(t *testing.T) {
	s := NewState(7)
	s.UnlockClues([]string{"clue_a"})
	s.MarkVisited("frag-1")

	clone := s.Clone()
	clone.UnlockClues([]string{"clue_b"})
	clone.MarkVisited("frag-2")
	clone.MarkCompleted("frag-1")

	if s.HasClue("clue_b") || s.HasVisited("frag-2") || s.HasCompleted("frag-1") {
		t.Fatal("mutating the clone leaked into the original")
	}
}

func TestFragmentStatus(t *testing.T) {
	s := NewState(7)
	if got := s.FragmentStatus("f", false); got != StatusLocked {
		t.Errorf("status = %s, want LOCKED", got)
	}
	if got := s.FragmentStatus("f", true); got != StatusAvailable {
		t.Errorf("status = %s, want AVAILABLE", got)
	}
	s.MarkVisited("f")
	if got := s.FragmentStatus("f", true); got != StatusVisited {
		t.Errorf("status = %s, want VISITED", got)
	}
	s.MarkCompleted("f")
	if got := s.FragmentStatus("f", false); got != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got)
	}
}

func TestApplyLevelThresholds(t *testing.T) {
	thresholds := []int{100, 250, 500}

	s := NewState(7)
	s.PointsTotal = 90
	if gained := s.ApplyLevelThresholds(thresholds); gained != 0 || s.Level != 1 {
		t.Fatalf("gained=%d level=%d, want 0 and 1", gained, s.Level)
	}

	s.PointsTotal = 260
	if gained := s.ApplyLevelThresholds(thresholds); gained != 2 || s.Level != 3 {
		t.Fatalf("gained=%d level=%d, want 2 and 3", gained, s.Level)
	}

	// Re-applying is idempotent.
	if gained := s.ApplyLevelThresholds(thresholds); gained != 0 || s.Level != 3 {
		t.Fatalf("gained=%d level=%d, want 0 and 3", gained, s.Level)
	}

	// Past the configured table the level stops growing.
	s.PointsTotal = 10000
	s.ApplyLevelThresholds(thresholds)
	if s.Level != 4 {
		t.Fatalf("level = %d, want 4", s.Level)
	}
}

func TestMarkVisited_NoDuplicates(t *testing.T) {
	s := NewState(7)
	s.MarkVisited("f")
	s.MarkVisited("f")
	s.MarkVisited("")
	if len(s.VisitedFragments) != 1 {
		t.Fatalf("visited = %v, want single entry", s.VisitedFragments)
	}
}
