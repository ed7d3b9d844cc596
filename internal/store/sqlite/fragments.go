package sqlite

import (
	"context"
	"fmt"
	"strings"

	"nocturne/internal/store"
	"nocturne/internal/story"
)

func (c *Client) UpsertFragment(ctx context.Context, fragment *story.Fragment) error {
	if err := story.Validate(fragment); err != nil {
		return fmt.Errorf("validating fragment: %w", err)
	}

	choicesJSON, err := store.EncodeChoices(fragment.Choices)
	if err != nil {
		return err
	}
	cluesJSON, err := store.EncodeStrings(fragment.RequiredClues)
	if err != nil {
		return err
	}
	unlocksJSON, err := store.EncodeStrings(fragment.Trigger.Unlocks)
	if err != nil {
		return err
	}
	flagsJSON, err := store.EncodeStrings(fragment.Trigger.NarrativeFlags)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO fragments (id, title, content, fragment_type, choices, required_clues, tier, min_level,
		trigger_base_points, trigger_unlocks, trigger_flags, allow_revisit, active, source_file, source_hash, last_ingested)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		fragment_type = excluded.fragment_type,
		choices = excluded.choices,
		required_clues = excluded.required_clues,
		tier = excluded.tier,
		min_level = excluded.min_level,
		trigger_base_points = excluded.trigger_base_points,
		trigger_unlocks = excluded.trigger_unlocks,
		trigger_flags = excluded.trigger_flags,
		allow_revisit = excluded.allow_revisit,
		active = excluded.active,
		source_file = excluded.source_file,
		source_hash = excluded.source_hash,
		last_ingested = datetime('now')
	`

	_, err = c.db.ExecContext(ctx, query,
		fragment.ID,
		fragment.Title,
		fragment.Content,
		string(fragment.Type),
		choicesJSON,
		cluesJSON,
		int(fragment.Tier),
		fragment.MinLevel,
		fragment.Trigger.BasePoints,
		unlocksJSON,
		flagsJSON,
		boolToInt(fragment.AllowRevisit),
		boolToInt(fragment.Active),
		fragment.SourceFile,
		fragment.SourceHash,
	)
	if err != nil {
		return fmt.Errorf("upserting fragment: %w", err)
	}
	return nil
}

func (c *Client) GetFragment(ctx context.Context, id string) (*story.Fragment, error) {
	query := `
	SELECT id, title, content, fragment_type, choices, required_clues, tier, min_level,
		trigger_base_points, trigger_unlocks, trigger_flags, allow_revisit, active, source_file, source_hash
	FROM fragments
	WHERE id = ?
	`

	row := c.db.QueryRowContext(ctx, query, id)

	var fragment story.Fragment
	var fragmentType string
	var tier int
	var choicesBytes, cluesBytes, unlocksBytes, flagsBytes []byte
	var allowRevisit, active int
	err := row.Scan(
		&fragment.ID,
		&fragment.Title,
		&fragment.Content,
		&fragmentType,
		&choicesBytes,
		&cluesBytes,
		&tier,
		&fragment.MinLevel,
		&fragment.Trigger.BasePoints,
		&unlocksBytes,
		&flagsBytes,
		&allowRevisit,
		&active,
		&fragment.SourceFile,
		&fragment.SourceHash,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting fragment: %w", err)
	}

	fragment.Type = story.FragmentType(fragmentType)
	fragment.Tier = story.Tier(tier)
	fragment.AllowRevisit = allowRevisit != 0
	fragment.Active = active != 0
	if fragment.Choices, err = store.DecodeChoices(choicesBytes); err != nil {
		return nil, err
	}
	if fragment.RequiredClues, err = store.DecodeStrings(cluesBytes); err != nil {
		return nil, err
	}
	if fragment.Trigger.Unlocks, err = store.DecodeStrings(unlocksBytes); err != nil {
		return nil, err
	}
	if fragment.Trigger.NarrativeFlags, err = store.DecodeStrings(flagsBytes); err != nil {
		return nil, err
	}

	return &fragment, nil
}

func (c *Client) ListFragments(ctx context.Context, filter store.FragmentFilter) ([]story.FragmentSummary, error) {
	query := `
	SELECT id, title, fragment_type, tier, min_level, active
	FROM fragments
	WHERE (? = '' OR fragment_type = ?)
	  AND (? = 0 OR active = 1)
	ORDER BY id
	`

	activeOnly := 0
	if filter.ActiveOnly {
		activeOnly = 1
	}

	rows, err := c.db.QueryContext(ctx, query, string(filter.Type), string(filter.Type), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}
	defer rows.Close()

	var summaries []story.FragmentSummary
	for rows.Next() {
		var summary story.FragmentSummary
		var fragmentType string
		var tier, active int
		if err := rows.Scan(&summary.ID, &summary.Title, &fragmentType, &tier, &summary.MinLevel, &active); err != nil {
			return nil, fmt.Errorf("scanning fragment summary: %w", err)
		}
		summary.Type = story.FragmentType(fragmentType)
		summary.Tier = story.Tier(tier)
		summary.Active = active != 0
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragment summaries: %w", err)
	}

	if summaries == nil {
		summaries = []story.FragmentSummary{}
	}
	return summaries, nil
}

func (c *Client) GetSourceHashes(ctx context.Context) (map[string]string, error) {
	query := `
	SELECT source_file, source_hash FROM fragments
	WHERE source_file IS NOT NULL AND source_file <> ''
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying source hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var sourceFile, sourceHash string
		if err := rows.Scan(&sourceFile, &sourceHash); err != nil {
			return nil, fmt.Errorf("scanning source hash: %w", err)
		}
		hashes[sourceFile] = sourceHash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source hashes: %w", err)
	}

	return hashes, nil
}

func (c *Client) RemoveStaleFragments(ctx context.Context, currentSourceFiles []string) (int64, error) {
	if len(currentSourceFiles) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(currentSourceFiles))
	args := make([]any, len(currentSourceFiles))
	for i, file := range currentSourceFiles {
		placeholders[i] = "?"
		args[i] = file
	}

	query := fmt.Sprintf(`
	DELETE FROM fragments
	WHERE source_file IS NOT NULL
	  AND source_file <> ''
	  AND source_file NOT IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("removing stale fragments: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
