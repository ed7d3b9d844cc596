package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    content = EXCLUDED.content,
    fragment_type = EXCLUDED.fragment_type,
    choices = EXCLUDED.choices,
    required_clues = EXCLUDED.required_clues,
    tier = EXCLUDED.tier,
    min_level = EXCLUDED.min_level,
    trigger_base_points = EXCLUDED.trigger_base_points,
    trigger_unlocks = EXCLUDED.trigger_unlocks,
    trigger_flags = EXCLUDED.trigger_flags,
    allow_revisit = EXCLUDED.allow_revisit,
    active = EXCLUDED.active,
    source_file = EXCLUDED.source_file,
    source_hash = EXCLUDED.source_hash,
    last_ingested = now()
`

	_, err = c.pool.Exec(ctx, query,
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
		fragment.AllowRevisit,
		fragment.Active,
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
WHERE id = $1
`

	var fragment story.Fragment
	var fragmentType string
	var tier int
	var choicesBytes, cluesBytes, unlocksBytes, flagsBytes []byte
	err := c.pool.QueryRow(ctx, query, id).Scan(
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
		&fragment.AllowRevisit,
		&fragment.Active,
		&fragment.SourceFile,
		&fragment.SourceHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting fragment: %w", err)
	}

	fragment.Type = story.FragmentType(fragmentType)
	fragment.Tier = story.Tier(tier)
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
WHERE ($1 = '' OR fragment_type = $1)
  AND (NOT $2 OR active)
ORDER BY id
`

	rows, err := c.pool.Query(ctx, query, string(filter.Type), filter.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}
	defer rows.Close()

	var summaries []story.FragmentSummary
	for rows.Next() {
		var summary story.FragmentSummary
		var fragmentType string
		var tier int
		if err := rows.Scan(&summary.ID, &summary.Title, &fragmentType, &tier, &summary.MinLevel, &summary.Active); err != nil {
			return nil, fmt.Errorf("scanning fragment summary: %w", err)
		}
		summary.Type = story.FragmentType(fragmentType)
		summary.Tier = story.Tier(tier)
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

	rows, err := c.pool.Query(ctx, query)
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

	query := `
DELETE FROM fragments
WHERE source_file IS NOT NULL
  AND source_file <> ''
  AND source_file <> ALL($1)
`

	tag, err := c.pool.Exec(ctx, query, currentSourceFiles)
	if err != nil {
		return 0, fmt.Errorf("removing stale fragments: %w", err)
	}
	return tag.RowsAffected(), nil
}
