package chromem

import (
	"context"
	"testing"

	"docchat/internal/domain"
	"docchat/internal/vectorstore"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(Config{Collection: "test"})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s
}

func record(doc string, page int, vec domain.Vector) domain.IndexRecord {
	p := domain.Page{Doc: doc, Number: page, Content: "content", Summary: "sum", ContentType: domain.ContentTypeText, Year: "FY24"}
	return domain.NewIndexRecord(p, vec)
}

func TestUpsertAndSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if err := s.EnsureReady(ctx, 2); err != nil {
		t.Fatal(err)
	}
	recs := []domain.IndexRecord{
		record("a.pdf", 1, domain.Vector{1, 0}),
		record("a.pdf", 2, domain.Vector{0, 1}),
	}
	if err := s.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := s.Search(ctx, domain.Vector{1, 0}, vectorstore.SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	got := matches[0].Record
	if got.Doc != "a.pdf" || got.Page != 1 {
		t.Errorf("best match = %s page %d, want a.pdf page 1", got.Doc, got.Page)
	}
	if got.Summary != "sum" || got.Year != "FY24" || got.ContentType != domain.ContentTypeText {
		t.Errorf("metadata round trip = %+v", got)
	}
	if got.ID != domain.RecordID("a.pdf", 1) {
		t.Errorf("id = %q", got.ID)
	}
}

func TestSearchTopKAboveCountReturnsAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if err := s.Upsert(ctx, []domain.IndexRecord{
		record("a.pdf", 1, domain.Vector{1, 0}),
		record("a.pdf", 2, domain.Vector{0, 1}),
	}); err != nil {
		t.Fatal(err)
	}
	matches, err := s.Search(ctx, domain.Vector{1, 0}, vectorstore.SearchOptions{TopK: 50})
	if err != nil {
		t.Fatalf("Search with oversized topK: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("matches = %d, want 2", len(matches))
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	s := newTestStorage(t)
	matches, err := s.Search(context.Background(), domain.Vector{1, 0}, vectorstore.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0", len(matches))
	}
}

func TestSearchFiltersByDoc(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if err := s.Upsert(ctx, []domain.IndexRecord{
		record("a.pdf", 1, domain.Vector{1, 0}),
		record("b.pdf", 1, domain.Vector{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	matches, err := s.Search(ctx, domain.Vector{1, 0}, vectorstore.SearchOptions{TopK: 5, Doc: "b.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Record.Doc != "b.pdf" {
		t.Errorf("matches = %+v, want only b.pdf", matches)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if err := s.Upsert(ctx, []domain.IndexRecord{record("a.pdf", 1, domain.Vector{1, 0})}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []domain.IndexRecord{record("a.pdf", 1, domain.Vector{0, 1})}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, same page must replace its record", s.Len())
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if err := s.Upsert(ctx, []domain.IndexRecord{
		record("a.pdf", 1, domain.Vector{1, 0}),
		record("a.pdf", 2, domain.Vector{0, 1}),
		record("b.pdf", 1, domain.Vector{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, "a.pdf"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d after delete, want 1", s.Len())
	}
	if err := s.DeleteDocument(ctx, "missing.pdf"); err != nil {
		t.Errorf("DeleteDocument(missing) = %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStorage(Config{Path: dir, Collection: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []domain.IndexRecord{record("a.pdf", 1, domain.Vector{1, 0})}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStorage(Config{Path: dir, Collection: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != 1 {
		t.Errorf("Len after reopen = %d, want 1", reopened.Len())
	}
}
