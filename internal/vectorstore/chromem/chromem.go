// Package chromem stores page records in an embedded chromem-go database,
// useful for local runs without a Qdrant instance.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docchat/internal/domain"
	"docchat/internal/vectorstore"
)

type Config struct {
	Path       string // empty for in-memory
	Collection string
}

type Storage struct {
	collection *chromem.Collection
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage(cfg Config) (*Storage, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem: open %s: %w", cfg.Path, err)
		}
	}
	name := cfg.Collection
	if name == "" {
		name = "docchat"
	}
	// Embeddings are always supplied by the caller, so no embedding func is
	// registered.
	col, err := db.GetOrCreateCollection(name, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("chromem: collection %s: %w", name, err)
	}
	return &Storage{collection: col}, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem: embeddings must be computed upstream")
}

// EnsureReady validates the dimension; chromem infers the vector size from
// the first stored document.
func (s *Storage) EnsureReady(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("chromem: invalid vector dimension")
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Vector,
			Metadata: map[string]string{
				"summary":      rec.Summary,
				"doc":          rec.Doc,
				"page":         strconv.Itoa(rec.Page),
				"content_type": rec.ContentType,
				"year":         rec.Year,
			},
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: add documents: %w", err)
	}
	return nil
}

func (s *Storage) DeleteDocument(ctx context.Context, doc string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, map[string]string{"doc": doc}, nil); err != nil {
		return fmt.Errorf("chromem: delete %s: %w", doc, err)
	}
	return nil
}

// Search queries across the whole collection and filters by document in
// process: chromem rejects result limits above the stored document count, so
// the limit is clamped and the doc filter applied after scoring.
func (s *Storage) Search(ctx context.Context, vector domain.Vector, opts vectorstore.SearchOptions) ([]domain.Match, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	n := topK
	if opts.Doc != "" || n > count {
		n = count
	}
	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}
	matches := make([]domain.Match, 0, len(results))
	for _, r := range results {
		if opts.Doc != "" && r.Metadata["doc"] != opts.Doc {
			continue
		}
		page, _ := strconv.Atoi(r.Metadata["page"])
		matches = append(matches, domain.Match{
			Record: domain.IndexRecord{
				ID:          r.ID,
				Content:     r.Content,
				Summary:     r.Metadata["summary"],
				Doc:         r.Metadata["doc"],
				Page:        page,
				ContentType: r.Metadata["content_type"],
				Year:        r.Metadata["year"],
			},
			Score: r.Similarity,
		})
	}
	domain.SortMatches(matches)
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored records.
func (s *Storage) Len() int {
	return s.collection.Count()
}
