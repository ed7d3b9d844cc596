package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"nocturne/internal/access"
	"nocturne/internal/config"
	"nocturne/internal/progress"
	"nocturne/internal/store"
	"nocturne/internal/story"
	"nocturne/internal/validator"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu          sync.Mutex
	fragments   map[string]*story.Fragment
	order       []string
	states      map[int64]*progress.State
	records     map[string]*progress.DecisionRecord
	multipliers map[int64]float64

	commitErr     error
	commitErrOnce bool
	commitHook    func(m *memStore) error
	commits       int
}

func newMemStore() *memStore {
	return &memStore{
		fragments:   make(map[string]*story.Fragment),
		states:      make(map[int64]*progress.State),
		records:     make(map[string]*progress.DecisionRecord),
		multipliers: make(map[int64]float64),
	}
}

func (m *memStore) add(fragments ...*story.Fragment) {
	for _, fragment := range fragments {
		m.fragments[fragment.ID] = fragment
		m.order = append(m.order, fragment.ID)
	}
}

func recordKey(userID int64, fragmentID string) string {
	return fmt.Sprintf("%d|%s", userID, fragmentID)
}

func (m *memStore) Close(ctx context.Context) error        { return nil }
func (m *memStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *memStore) UpsertFragment(ctx context.Context, fragment *story.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fragments[fragment.ID]; !ok {
		m.order = append(m.order, fragment.ID)
	}
	m.fragments[fragment.ID] = fragment
	return nil
}

func (m *memStore) GetFragment(ctx context.Context, id string) (*story.Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fragments[id], nil
}

func (m *memStore) ListFragments(ctx context.Context, filter store.FragmentFilter) ([]story.FragmentSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var summaries []story.FragmentSummary
	for _, id := range m.order {
		fragment := m.fragments[id]
		if filter.ActiveOnly && !fragment.Active {
			continue
		}
		if filter.Type != "" && fragment.Type != filter.Type {
			continue
		}
		summaries = append(summaries, story.FragmentSummary{
			ID: fragment.ID, Title: fragment.Title, Type: fragment.Type,
			Tier: fragment.Tier, MinLevel: fragment.MinLevel, Active: fragment.Active,
		})
	}
	return summaries, nil
}

func (m *memStore) GetSourceHashes(ctx context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func (m *memStore) RemoveStaleFragments(ctx context.Context, currentSourceFiles []string) (int64, error) {
	return 0, nil
}

func (m *memStore) LoadUserState(ctx context.Context, userID int64) (*progress.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (m *memStore) SaveUserState(ctx context.Context, state *progress.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.states[state.UserID]; ok && existing.Version != state.Version-1 {
		return store.ErrVersionConflict
	}
	m.states[state.UserID] = state.Clone()
	return nil
}

func (m *memStore) FindDecisionRecord(ctx context.Context, userID int64, fragmentID string) (*progress.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[recordKey(userID, fragmentID)], nil
}

func (m *memStore) AppendDecisionRecord(ctx context.Context, record *progress.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(record.UserID, record.FragmentID)
	if _, ok := m.records[key]; ok {
		return store.ErrDuplicateDecision
	}
	m.records[key] = record
	return nil
}

func (m *memStore) CommitDecision(ctx context.Context, state *progress.State, record *progress.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	if m.commitHook != nil {
		hook := m.commitHook
		m.commitHook = nil
		if err := hook(m); err != nil {
			return err
		}
	}
	if m.commitErr != nil {
		err := m.commitErr
		if m.commitErrOnce {
			m.commitErr = nil
		}
		return err
	}
	key := recordKey(record.UserID, record.FragmentID)
	if _, ok := m.records[key]; ok {
		return store.ErrDuplicateDecision
	}
	m.records[key] = record
	m.states[state.UserID] = state.Clone()
	return nil
}

func (m *memStore) GetArchetypeMultiplier(ctx context.Context, userID int64) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	multiplier, ok := m.multipliers[userID]
	return multiplier, ok, nil
}

func (m *memStore) SetArchetypeMultiplier(ctx context.Context, userID int64, multiplier float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multipliers[userID] = multiplier
	return nil
}

// certifiedText is body text known to pass the fragment threshold.
func certifiedText(t *testing.T) string {
	t.Helper()
	persona := config.DefaultPersona()
	text, ok := persona.Fallbacks["fragment"]
	if !ok {
		t.Fatal("default persona has no fragment fallback")
	}
	return text
}

func newTestEngine(t *testing.T, st store.Store, thresholds []int, cache *validator.Cache) *Engine {
	t.Helper()
	persona := config.DefaultPersona()
	valid, err := validator.New(persona)
	if err != nil {
		t.Fatalf("validator.New() error = %v", err)
	}
	synth, err := validator.NewSynthesizer(persona)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	eng, err := New(st, valid, synth, cache, thresholds, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return eng
}

func testDecisionFragment(t *testing.T) *story.Fragment {
	return &story.Fragment{
		ID:      "crossroads",
		Title:   "The Crossroads",
		Content: certifiedText(t),
		Type:    story.TypeDecision,
		Trigger: story.Trigger{BasePoints: 10, Unlocks: []string{"clue_map"}},
		Choices: []story.Choice{
			{ID: "left", Label: "Follow her into the dark", PointsReward: 20, DestinationID: "cellar", ArchetypeWeights: map[string]int{"explorer": 2}},
			{ID: "right", Label: "Stay where the light holds", PointsReward: 5},
		},
		MinLevel: 1,
		Active:   true,
	}
}

func testStoryFragment(t *testing.T, id string) *story.Fragment {
	return &story.Fragment{
		ID:       id,
		Title:    "The Cellar",
		Content:  certifiedText(t),
		Type:     story.TypeStory,
		MinLevel: 1,
		Active:   true,
	}
}

func TestGetNextContent_DeliversValidatedFragment(t *testing.T) {
	st := newMemStore()
	st.add(testStoryFragment(t, "intro"))
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.GetNextContent(context.Background(), 42, "intro", "")
	if err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}

	if view.Denial != nil {
		t.Fatalf("Denial = %+v, want nil", view.Denial)
	}
	if view.UsedFallback {
		t.Error("UsedFallback = true, want certified content delivered verbatim")
	}
	if view.Body != st.fragments["intro"].Content {
		t.Error("Body does not match fragment content")
	}

	state, _ := st.LoadUserState(context.Background(), 42)
	if state == nil || !state.HasVisited("intro") {
		t.Error("visit was not persisted")
	}
	if state.CurrentFragmentID != "intro" {
		t.Errorf("CurrentFragmentID = %q, want intro", state.CurrentFragmentID)
	}
}

func TestGetNextContent_FallbackOnWeakContent(t *testing.T) {
	weak := testStoryFragment(t, "flat")
	weak.Title = "A Plain Room"
	weak.Content = "You are in a plain room. There is a door."
	st := newMemStore()
	st.add(weak)
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.GetNextContent(context.Background(), 42, "flat", "")
	if err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}

	if !view.UsedFallback {
		t.Fatal("UsedFallback = false, want fallback for low-scoring content")
	}
	if view.Body == weak.Content {
		t.Error("Body still carries the failing content")
	}

	// Fallback delivery still counts as a visit.
	state, _ := st.LoadUserState(context.Background(), 42)
	if state == nil || !state.HasVisited("flat") {
		t.Error("visit was not persisted")
	}
}

func TestGetNextContent_DenialWithAlternatives(t *testing.T) {
	gated := testStoryFragment(t, "vault")
	gated.Tier = story.Tier2
	open := testStoryFragment(t, "parlor")
	st := newMemStore()
	st.add(gated, open)
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.GetNextContent(context.Background(), 42, "vault", "")
	if err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}

	if view.Denial == nil {
		t.Fatal("Denial = nil, want tier denial")
	}
	if view.Denial.Reason != access.ReasonTierInsufficient {
		t.Errorf("Reason = %s, want TIER_INSUFFICIENT", view.Denial.Reason)
	}
	if view.Denial.Message == "" {
		t.Error("denial has no narration")
	}
	if len(view.Denial.Alternatives) != 1 || view.Denial.Alternatives[0] != "parlor" {
		t.Errorf("Alternatives = %v, want [parlor]", view.Denial.Alternatives)
	}

	// Denial never mutates state.
	if state, _ := st.LoadUserState(context.Background(), 42); state != nil {
		t.Errorf("state was persisted on denial: %+v", state)
	}
}

func TestGetNextContent_PicksEntryFragment(t *testing.T) {
	gated := testStoryFragment(t, "vault")
	gated.Tier = story.Tier1
	open := testStoryFragment(t, "parlor")
	st := newMemStore()
	st.add(gated, open)
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.GetNextContent(context.Background(), 42, "", "")
	if err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}
	if view.FragmentID != "parlor" {
		t.Errorf("FragmentID = %q, want first accessible fragment parlor", view.FragmentID)
	}
}

func TestGetNextContent_ResumesCurrentFragment(t *testing.T) {
	st := newMemStore()
	st.add(testStoryFragment(t, "intro"), testStoryFragment(t, "cellar"))
	eng := newTestEngine(t, st, nil, nil)

	if _, err := eng.GetNextContent(context.Background(), 42, "cellar", ""); err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}
	view, err := eng.GetNextContent(context.Background(), 42, "", "")
	if err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}
	if view.FragmentID != "cellar" {
		t.Errorf("FragmentID = %q, want the current fragment cellar", view.FragmentID)
	}
}

func TestGetNextContent_StoryTriggerAppliesOnce(t *testing.T) {
	fragment := testStoryFragment(t, "intro")
	fragment.Trigger = story.Trigger{BasePoints: 10, Unlocks: []string{"clue_key"}}
	st := newMemStore()
	st.add(fragment)
	eng := newTestEngine(t, st, []int{5}, nil)

	for i := 0; i < 2; i++ {
		if _, err := eng.GetNextContent(context.Background(), 42, "intro", ""); err != nil {
			t.Fatalf("GetNextContent() error = %v", err)
		}
	}

	state, _ := st.LoadUserState(context.Background(), 42)
	if state.PointsTotal != 10 {
		t.Errorf("PointsTotal = %d, want 10 applied once", state.PointsTotal)
	}
	if !state.HasClue("clue_key") {
		t.Error("trigger clue not unlocked")
	}
	if state.Level != 2 {
		t.Errorf("Level = %d, want 2", state.Level)
	}
}

func TestSubmitDecision_AwardsAndPersists(t *testing.T) {
	st := newMemStore()
	st.add(testDecisionFragment(t), testStoryFragment(t, "cellar"))
	st.multipliers[42] = 1.5
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("SubmitDecision() error = %v", err)
	}

	if view.Record.PointsAwarded != 45 {
		t.Errorf("PointsAwarded = %d, want 45", view.Record.PointsAwarded)
	}
	if view.NextFragmentID != "cellar" {
		t.Errorf("NextFragmentID = %q, want cellar", view.NextFragmentID)
	}
	if view.Next == nil || view.Next.FragmentID != "cellar" {
		t.Fatalf("Next = %+v, want rendered cellar view", view.Next)
	}
	if view.ArchetypeHints["explorer"] != 2 {
		t.Errorf("ArchetypeHints = %v", view.ArchetypeHints)
	}

	state, _ := st.LoadUserState(context.Background(), 42)
	if state.PointsTotal != 45 {
		t.Errorf("persisted PointsTotal = %d, want 45", state.PointsTotal)
	}
	if !state.HasCompleted("crossroads") || !state.HasClue("clue_map") {
		t.Errorf("persisted state missing side effects: %+v", state)
	}
	if state.CurrentFragmentID != "cellar" {
		t.Errorf("CurrentFragmentID = %q, want cellar", state.CurrentFragmentID)
	}
}

func TestSubmitDecision_DoubleSubmitIsIdempotent(t *testing.T) {
	st := newMemStore()
	st.add(testDecisionFragment(t), testStoryFragment(t, "cellar"))
	eng := newTestEngine(t, st, nil, nil)

	first, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("first SubmitDecision() error = %v", err)
	}
	second, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("second SubmitDecision() error = %v", err)
	}

	if !second.Replayed {
		t.Error("second submission not marked replayed")
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("record id changed between submissions: %s vs %s", first.Record.ID, second.Record.ID)
	}
	if second.Record.PointsAwarded != first.Record.PointsAwarded {
		t.Error("replay changed the awarded points")
	}

	state, _ := st.LoadUserState(context.Background(), 42)
	if state.PointsTotal != first.Record.PointsAwarded {
		t.Errorf("PointsTotal = %d, want single reward %d", state.PointsTotal, first.Record.PointsAwarded)
	}
}

func TestSubmitDecision_ConcurrentDoubleTap(t *testing.T) {
	st := newMemStore()
	st.add(testDecisionFragment(t), testStoryFragment(t, "cellar"))
	eng := newTestEngine(t, st, nil, nil)

	var wg sync.WaitGroup
	views := make([]*DecisionView, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
			if err != nil {
				t.Errorf("SubmitDecision() error = %v", err)
				return
			}
			views[i] = view
		}(i)
	}
	wg.Wait()

	if views[0] == nil || views[1] == nil {
		t.Fatal("missing views")
	}
	if views[0].Record.ID != views[1].Record.ID {
		t.Error("double tap produced two distinct records")
	}
	state, _ := st.LoadUserState(context.Background(), 42)
	if state.PointsTotal != views[0].Record.PointsAwarded {
		t.Errorf("PointsTotal = %d, rewards were double-applied", state.PointsTotal)
	}
}

func TestSubmitDecision_InvalidChoice(t *testing.T) {
	st := newMemStore()
	st.add(testDecisionFragment(t))
	eng := newTestEngine(t, st, nil, nil)

	_, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "sideways", "")
	var invalid *InvalidChoiceError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *InvalidChoiceError", err)
	}
	if invalid.ChoiceID != "sideways" {
		t.Errorf("ChoiceID = %q", invalid.ChoiceID)
	}
}

func TestSubmitDecision_DeniedFragment(t *testing.T) {
	gated := testDecisionFragment(t)
	gated.MinLevel = 5
	st := newMemStore()
	st.add(gated)
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("SubmitDecision() error = %v", err)
	}
	if view.Denial == nil || view.Denial.Reason != access.ReasonLevelInsufficient {
		t.Fatalf("Denial = %+v, want LEVEL_INSUFFICIENT", view.Denial)
	}
	if view.Record != nil {
		t.Error("denied decision produced a record")
	}
	if st.commits != 0 {
		t.Error("denied decision reached the store")
	}
}

func TestSubmitDecision_BlockedDestination(t *testing.T) {
	destination := testStoryFragment(t, "cellar")
	destination.Tier = story.Tier2
	st := newMemStore()
	st.add(testDecisionFragment(t), destination)
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("SubmitDecision() error = %v", err)
	}

	if view.Blocked == nil || view.Blocked.Reason != access.ReasonTierInsufficient {
		t.Fatalf("Blocked = %+v, want tier denial for the destination", view.Blocked)
	}
	if view.NextFragmentID != "" || view.Next != nil {
		t.Error("blocked destination still delivered next content")
	}
	// Rewards stand even when the destination is gated.
	state, _ := st.LoadUserState(context.Background(), 42)
	if state.PointsTotal != view.Record.PointsAwarded {
		t.Errorf("PointsTotal = %d, want %d", state.PointsTotal, view.Record.PointsAwarded)
	}
}

func TestSubmitDecision_ReplayBlockedByRecordedChoice(t *testing.T) {
	fragment := testDecisionFragment(t)
	fragment.Choices[1].DestinationID = "attic"
	cellar := testStoryFragment(t, "cellar")
	cellar.Tier = story.Tier2
	attic := testStoryFragment(t, "attic")
	attic.MinLevel = 99
	st := newMemStore()
	st.add(fragment, cellar, attic)
	eng := newTestEngine(t, st, nil, nil)

	first, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("SubmitDecision() error = %v", err)
	}
	if first.Blocked == nil || first.Blocked.Reason != access.ReasonTierInsufficient {
		t.Fatalf("Blocked = %+v, want tier denial for the destination", first.Blocked)
	}

	// Resubmitting with a different choice replays the recorded one; the
	// denial must describe the recorded choice's destination.
	replay, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "right", "")
	if err != nil {
		t.Fatalf("replay SubmitDecision() error = %v", err)
	}
	if !replay.Replayed {
		t.Fatal("second submission was not treated as a replay")
	}
	if replay.Record.ChoiceID != "left" {
		t.Errorf("Record.ChoiceID = %q, want %q", replay.Record.ChoiceID, "left")
	}
	if replay.Blocked == nil || replay.Blocked.Reason != access.ReasonTierInsufficient {
		t.Fatalf("Blocked = %+v, want tier denial for the recorded destination", replay.Blocked)
	}
}

func TestSubmitDecision_PersistenceFailure(t *testing.T) {
	st := newMemStore()
	st.add(testDecisionFragment(t), testStoryFragment(t, "cellar"))
	st.commitErr = errors.New("connection reset")
	st.commitErrOnce = true
	eng := newTestEngine(t, st, nil, nil)

	_, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	var persistence *PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}

	// Nothing applied; the retry succeeds and awards exactly once.
	view, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("retry SubmitDecision() error = %v", err)
	}
	if view.Replayed {
		t.Error("retry after failed persistence treated as replay")
	}
	state, _ := st.LoadUserState(context.Background(), 42)
	if state.PointsTotal != view.Record.PointsAwarded {
		t.Errorf("PointsTotal = %d, want %d", state.PointsTotal, view.Record.PointsAwarded)
	}
}

func TestSubmitDecision_DuplicateCommitRace(t *testing.T) {
	st := newMemStore()
	st.add(testDecisionFragment(t), testStoryFragment(t, "cellar"))

	// Another writer lands its record between the resolver's find and our
	// commit. The engine must hand back that record, not a second reward.
	prior := &progress.DecisionRecord{
		ID: "prior", UserID: 42, FragmentID: "crossroads", ChoiceID: "left", PointsAwarded: 30,
	}
	st.commitHook = func(m *memStore) error {
		m.records[recordKey(42, "crossroads")] = prior
		return store.ErrDuplicateDecision
	}

	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.SubmitDecision(context.Background(), 42, "crossroads", "left", "")
	if err != nil {
		t.Fatalf("SubmitDecision() error = %v", err)
	}
	if !view.Replayed {
		t.Error("duplicate commit not treated as replay")
	}
	if view.Record.ID != "prior" {
		t.Errorf("Record.ID = %q, want the committed prior record", view.Record.ID)
	}
}

func TestValidateText_CacheTransparency(t *testing.T) {
	st := newMemStore()
	cached := newTestEngine(t, st, nil, validator.NewCache(16, time.Minute))
	uncached := newTestEngine(t, st, nil, nil)

	texts := []string{certifiedText(t), "Plain text with no pull at all.", ""}
	for _, text := range texts {
		for i := 0; i < 2; i++ {
			got := cached.ValidateText(text, validator.ContextFragment, "style_a")
			want := uncached.ValidateText(text, validator.ContextFragment, "style_a")
			if got.Pass != want.Pass || got.OverallScore != want.OverallScore || got.Disqualified != want.Disqualified {
				t.Errorf("cached result diverged for %q: %+v vs %+v", text, got, want)
			}
		}
	}
}

func TestGetProgress(t *testing.T) {
	st := newMemStore()
	st.add(testStoryFragment(t, "intro"), testStoryFragment(t, "cellar"),
		testStoryFragment(t, "attic"), testStoryFragment(t, "garden"))
	eng := newTestEngine(t, st, nil, nil)

	if _, err := eng.GetNextContent(context.Background(), 42, "intro", ""); err != nil {
		t.Fatalf("GetNextContent() error = %v", err)
	}

	view, err := eng.GetProgress(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if view.CompletedCount != 1 || view.ActiveFragments != 4 {
		t.Errorf("counts = %d/%d, want 1/4", view.CompletedCount, view.ActiveFragments)
	}
	if view.CompletionPercent != 25 {
		t.Errorf("CompletionPercent = %v, want 25", view.CompletionPercent)
	}
	if view.Level != 1 {
		t.Errorf("Level = %d, want 1", view.Level)
	}
}

func TestGetProgress_NewUser(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, nil, nil)

	view, err := eng.GetProgress(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if view.Level != 1 || view.PointsTotal != 0 || view.CompletionPercent != 0 {
		t.Errorf("new user progress = %+v", view)
	}
}
