package decision

import "context"

// ArchetypeReader is the read-only slice of storage the resolver consumes.
// The multiplier rows are written by an external analytics collaborator.
type ArchetypeReader interface {
	GetArchetypeMultiplier(ctx context.Context, userID int64) (float64, bool, error)
}

// StoreMultiplierSource adapts an ArchetypeReader to MultiplierSource.
type StoreMultiplierSource struct {
	Reader ArchetypeReader
}

func (s StoreMultiplierSource) Multiplier(ctx context.Context, userID int64) (float64, bool, error) {
	return s.Reader.GetArchetypeMultiplier(ctx, userID)
}
