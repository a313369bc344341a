// Package memory is a brute-force in-memory vector store used in tests and
// for small local corpora.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"docchat/internal/domain"
	"docchat/internal/vectorstore"
)

type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]domain.IndexRecord
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{records: make(map[string]domain.IndexRecord)}
}

func (s *Storage) EnsureReady(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("memory: invalid vector dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.records) > 0 {
		return fmt.Errorf("memory: dimension %d conflicts with existing records of dimension %d", dimension, s.dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			return errors.New("memory: record without id")
		}
		if s.dimension != 0 && len(rec.Vector) != s.dimension {
			return fmt.Errorf("memory: vector dimension %d, want %d", len(rec.Vector), s.dimension)
		}
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *Storage) DeleteDocument(_ context.Context, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.Doc == doc {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector domain.Vector, opts vectorstore.SearchOptions) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	matches := make([]domain.Match, 0, len(s.records))
	for _, rec := range s.records {
		if opts.Doc != "" && rec.Doc != opts.Doc {
			continue
		}
		score := cosine(rec.Vector, vector)
		rec.Vector = nil
		matches = append(matches, domain.Match{Record: rec, Score: score})
	}
	domain.SortMatches(matches)
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosine(a, b domain.Vector) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / math.Sqrt(na*nb))
}
