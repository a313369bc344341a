package vectorstore

import (
	"context"

	"docchat/internal/domain"
)

// SearchOptions bounds a similarity search.
type SearchOptions struct {
	TopK int
	Doc  string // restrict matches to one document when non-empty
}

// Storage persists page records in a vector index and supports similarity
// search. Implementations must be safe for concurrent use.
type Storage interface {
	// EnsureReady prepares the index for vectors of the given dimension,
	// creating it when absent.
	EnsureReady(ctx context.Context, dimension int) error

	// Upsert writes records keyed by their IDs, replacing existing ones.
	Upsert(ctx context.Context, records []domain.IndexRecord) error

	// DeleteDocument removes every record belonging to the named document.
	// Deleting a document with no records is not an error.
	DeleteDocument(ctx context.Context, doc string) error

	// Search returns up to opts.TopK records most similar to the vector,
	// ordered by descending score.
	Search(ctx context.Context, vector domain.Vector, opts SearchOptions) ([]domain.Match, error)
}
