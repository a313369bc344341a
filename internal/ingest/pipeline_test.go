package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"docchat/internal/chat"
	"docchat/internal/domain"
	"docchat/internal/rasterize"
	"docchat/internal/retry"
	"docchat/internal/vectorstore"
	"docchat/internal/vectorstore/memory"
)

type fakeSequence struct {
	doc    string
	pages  [][]byte
	closed bool
}

func (s *fakeSequence) Len() int { return len(s.pages) }

func (s *fakeSequence) Page(_ context.Context, i int) (domain.PageImage, error) {
	if i < 0 || i >= len(s.pages) {
		return domain.PageImage{}, fmt.Errorf("page %d out of range", i)
	}
	return domain.PageImage{Doc: s.doc, Number: i + 1, Data: s.pages[i], MIME: "image/jpeg"}, nil
}

func (s *fakeSequence) Close() error {
	s.closed = true
	return nil
}

type fakeRasterizer struct {
	pages   [][]byte
	lastSeq *fakeSequence
}

func (r *fakeRasterizer) Rasterize(_ context.Context, doc domain.Document) (rasterize.PageSequence, error) {
	r.lastSeq = &fakeSequence{doc: doc.Name, pages: r.pages}
	return r.lastSeq, nil
}

type fakeTranscriber struct {
	mu        sync.Mutex
	content   map[int]string
	calls     map[int]int
	failPage  int
	failCount int
}

func newFakeTranscriber(content map[int]string) *fakeTranscriber {
	return &fakeTranscriber{content: content, calls: make(map[int]int)}
}

func (t *fakeTranscriber) TranscribePage(_ context.Context, img domain.PageImage) (domain.PageTranscript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[img.Number]++
	if img.Number == t.failPage && t.calls[img.Number] <= t.failCount {
		return domain.PageTranscript{}, errors.New("vision backend unavailable")
	}
	return domain.PageTranscript{Content: t.content[img.Number], Summary: "- summary"}, nil
}

func (t *fakeTranscriber) callsFor(page int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[page]
}

type fakeEmbedder struct{}

func (fakeEmbedder) Name() string   { return "fake/embedder" }
func (fakeEmbedder) Dimension() int { return 3 }

func (fakeEmbedder) Embed(_ context.Context, text string) (domain.Vector, error) {
	return domain.Vector{float32(len(text)), 1, 0}, nil
}

// topicAxes are the dimensions of keywordEmbedder vectors, one per topic
// word, so texts about the same topic land close in cosine space.
var topicAxes = [3]string{"revenue", "growth", "fy24"}

type keywordEmbedder struct{}

func (keywordEmbedder) Name() string   { return "fake/keywords" }
func (keywordEmbedder) Dimension() int { return len(topicAxes) }

func (keywordEmbedder) Embed(_ context.Context, text string) (domain.Vector, error) {
	lower := strings.ToLower(text)
	vec := make(domain.Vector, len(topicAxes))
	for i, word := range topicAxes {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

type recordingStore struct {
	vectorstore.Storage
	mu         sync.Mutex
	calls      []string
	lastUpsert []domain.IndexRecord
}

func (r *recordingStore) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *recordingStore) EnsureReady(ctx context.Context, dim int) error {
	r.record("EnsureReady")
	return r.Storage.EnsureReady(ctx, dim)
}

func (r *recordingStore) Upsert(ctx context.Context, recs []domain.IndexRecord) error {
	r.record("Upsert")
	r.mu.Lock()
	r.lastUpsert = append([]domain.IndexRecord(nil), recs...)
	r.mu.Unlock()
	return r.Storage.Upsert(ctx, recs)
}

func (r *recordingStore) upserted() []domain.IndexRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.IndexRecord(nil), r.lastUpsert...)
}

// flakyUpsertStore fails the first n Upsert calls and then recovers.
type flakyUpsertStore struct {
	vectorstore.Storage
	failures int
	calls    int
}

func (s *flakyUpsertStore) Upsert(ctx context.Context, recs []domain.IndexRecord) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("vector store unavailable")
	}
	return s.Storage.Upsert(ctx, recs)
}

func (r *recordingStore) DeleteDocument(ctx context.Context, doc string) error {
	r.record("DeleteDocument")
	return r.Storage.DeleteDocument(ctx, doc)
}

func (r *recordingStore) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

var testPages = map[int]string{
	1: "Total Revenue: 279,000 crore",
	2: "| FY23 | FY24 |\n|------|------|\n| 100  | 120  |",
	3: "The line graph shows steady growth across quarters.",
}

func testPipeline(t *testing.T, ras *fakeRasterizer, tr *fakeTranscriber, store vectorstore.Storage) *Pipeline {
	t.Helper()
	retrier := retry.New(retry.Config{Attempts: 2, Delay: time.Millisecond})
	return New(ras, tr, fakeEmbedder{}, store, retrier, Config{Concurrency: 2, Logger: zerolog.Nop()})
}

func allRecords(t *testing.T, store vectorstore.Storage) []domain.Match {
	t.Helper()
	matches, err := store.Search(context.Background(), domain.Vector{1, 1, 0}, vectorstore.SearchOptions{TopK: 100})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return matches
}

func TestIngestDocumentOneRecordPerPage(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}, {2}, {3}}}
	tr := newFakeTranscriber(testPages)
	store := memory.NewStorage()
	p := testPipeline(t, ras, tr, store)

	doc := domain.Document{Name: "annual-report", Path: "annual-report.pdf", Year: "FY24"}
	report, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if report.Doc != "annual-report" || report.Pages != 3 {
		t.Errorf("report = %+v", report)
	}
	if !ras.lastSeq.closed {
		t.Error("page sequence must be closed after ingestion")
	}

	matches := allRecords(t, store)
	if len(matches) != 3 {
		t.Fatalf("records = %d, want one per page", len(matches))
	}
	byPage := map[int]domain.IndexRecord{}
	for _, m := range matches {
		byPage[m.Record.Page] = m.Record
	}
	for page := 1; page <= 3; page++ {
		rec, ok := byPage[page]
		if !ok {
			t.Fatalf("missing record for page %d", page)
		}
		if rec.ID != domain.RecordID("annual-report", page) {
			t.Errorf("page %d id = %q", page, rec.ID)
		}
		if rec.Year != "FY24" || rec.Doc != "annual-report" {
			t.Errorf("page %d metadata = %+v", page, rec)
		}
		if rec.Summary != "- summary" {
			t.Errorf("page %d summary = %q", page, rec.Summary)
		}
	}
	if byPage[1].ContentType != domain.ContentTypeText {
		t.Errorf("page 1 type = %s, want text", byPage[1].ContentType)
	}
	if byPage[2].ContentType != domain.ContentTypeTable {
		t.Errorf("page 2 type = %s, want table", byPage[2].ContentType)
	}
	if byPage[3].ContentType != domain.ContentTypeChart {
		t.Errorf("page 3 type = %s, want chart", byPage[3].ContentType)
	}
}

func TestReIngestIsIdempotent(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}, {2}, {3}}}
	rec := &recordingStore{Storage: memory.NewStorage()}
	p := testPipeline(t, ras, newFakeTranscriber(testPages), rec)
	doc := domain.Document{Name: "annual-report", Path: "x.pdf"}

	if _, err := p.IngestDocument(context.Background(), doc); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := rec.upserted()
	if _, err := p.IngestDocument(context.Background(), doc); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := rec.upserted()

	if len(first) != 3 {
		t.Fatalf("first run wrote %d records, want 3", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-ingest changed the records:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if got := len(allRecords(t, rec)); got != 3 {
		t.Errorf("records after re-ingest = %d, want 3", got)
	}
}

func TestShrinkRemovesStaleRecords(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}, {2}, {3}}}
	store := memory.NewStorage()
	p := testPipeline(t, ras, newFakeTranscriber(testPages), store)
	doc := domain.Document{Name: "annual-report", Path: "x.pdf"}

	if _, err := p.IngestDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	// document shrank to 2 pages
	ras.pages = ras.pages[:2]
	if _, err := p.IngestDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	matches := allRecords(t, store)
	if len(matches) != 2 {
		t.Fatalf("records = %d after shrink, want 2", len(matches))
	}
	for _, m := range matches {
		if m.Record.Page > 2 {
			t.Errorf("stale record for page %d survived re-ingestion", m.Record.Page)
		}
	}
}

func TestFailedPageLeavesIndexUntouched(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}, {2}, {3}}}
	rec := &recordingStore{Storage: memory.NewStorage()}
	tr := newFakeTranscriber(testPages)
	p := testPipeline(t, ras, tr, rec)
	doc := domain.Document{Name: "annual-report", Path: "x.pdf"}

	if _, err := p.IngestDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	rec.reset()

	// page 2 now fails on every attempt
	tr.failPage = 2
	tr.failCount = 1 << 30
	if _, err := p.IngestDocument(context.Background(), doc); err == nil {
		t.Fatal("expected ingestion error")
	}
	rec.mu.Lock()
	calls := append([]string(nil), rec.calls...)
	rec.mu.Unlock()
	if len(calls) != 0 {
		t.Errorf("index mutated after page failure: %v", calls)
	}
	if got := len(allRecords(t, rec)); got != 3 {
		t.Errorf("records = %d after failed run, prior index must survive", got)
	}
}

func TestIndexCallOrder(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}}}
	rec := &recordingStore{Storage: memory.NewStorage()}
	p := testPipeline(t, ras, newFakeTranscriber(testPages), rec)

	if _, err := p.IngestDocument(context.Background(), domain.Document{Name: "d", Path: "d.pdf"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"EnsureReady", "DeleteDocument", "Upsert"}
	rec.mu.Lock()
	calls := append([]string(nil), rec.calls...)
	rec.mu.Unlock()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestTransientTranscribeErrorIsRetried(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}}}
	tr := newFakeTranscriber(testPages)
	tr.failPage = 1
	tr.failCount = 1
	store := memory.NewStorage()
	p := testPipeline(t, ras, tr, store)

	if _, err := p.IngestDocument(context.Background(), domain.Document{Name: "d", Path: "d.pdf"}); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if got := tr.callsFor(1); got != 2 {
		t.Errorf("transcribe calls = %d, want 2 (one failure, one retry)", got)
	}
	if got := len(allRecords(t, store)); got != 1 {
		t.Errorf("records = %d, want 1", got)
	}
}

func TestTransientIndexWriteIsRetried(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}}}
	store := &flakyUpsertStore{Storage: memory.NewStorage(), failures: 1}
	p := testPipeline(t, ras, newFakeTranscriber(testPages), store)

	if _, err := p.IngestDocument(context.Background(), domain.Document{Name: "d", Path: "d.pdf"}); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("upsert calls = %d, want 2 (one failure, one retry)", store.calls)
	}
	if got := len(allRecords(t, store)); got != 1 {
		t.Errorf("records = %d, want 1", got)
	}
}

func TestRetrieveFindsIngestedRevenuePage(t *testing.T) {
	ras := &fakeRasterizer{pages: [][]byte{{1}, {2}, {3}}}
	store := memory.NewStorage()
	retrier := retry.New(retry.Config{Attempts: 2, Delay: time.Millisecond})
	p := New(ras, newFakeTranscriber(testPages), keywordEmbedder{}, store, retrier, Config{Concurrency: 2, Logger: zerolog.Nop()})

	doc := domain.Document{Name: "annual-report", Path: "x.pdf", Year: "FY24"}
	if _, err := p.IngestDocument(context.Background(), doc); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}

	svc := chat.NewService(keywordEmbedder{}, store, nil, retrier, chat.Config{TopK: 2, Logger: zerolog.Nop()})
	matches, err := svc.Retrieve(context.Background(), "What was the total revenue?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches for the revenue question")
	}
	top := matches[0].Record
	if top.Doc != "annual-report" || top.Page != 1 {
		t.Errorf("top match = %s p.%d, want annual-report p.1", top.Doc, top.Page)
	}
	if !strings.Contains(top.Content, "279,000") {
		t.Errorf("top match content = %q, want the revenue figure", top.Content)
	}
	if len(matches) > 1 && matches[0].Score <= matches[1].Score {
		t.Errorf("scores = %v, top match must outrank the rest", []float32{matches[0].Score, matches[1].Score})
	}
}

func TestDocumentFromPath(t *testing.T) {
	doc := DocumentFromPath(filepath.Join("files", "Swiggy Annual Report.pdf"), "FY24")
	if doc.Name != "Swiggy Annual Report" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.Year != "FY24" {
		t.Errorf("Year = %q", doc.Year)
	}
}

func TestScanDirFindsPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	docs, err := ScanDir(dir, "FY24")
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2: %+v", len(docs), docs)
	}
	if docs[0].Name != "a" || docs[1].Name != "b" {
		t.Errorf("order = %q, %q", docs[0].Name, docs[1].Name)
	}
	for _, d := range docs {
		if d.Year != "FY24" {
			t.Errorf("year = %q", d.Year)
		}
	}
}
