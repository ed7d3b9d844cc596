package ingest

import (
	"context"

	"nocturne/internal/story"
)

// Store is the slice of storage the ingest pipeline writes through.
type Store interface {
	EnsureSchema(ctx context.Context) error
	GetSourceHashes(ctx context.Context) (map[string]string, error)
	UpsertFragment(ctx context.Context, fragment *story.Fragment) error
	RemoveStaleFragments(ctx context.Context, currentSourceFiles []string) (int64, error)
}
