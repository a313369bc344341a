// Package ingest drives the offline pipeline: rasterize a PDF, transcribe
// and summarize each page with the vision model, embed the results, and
// replace the document's records in the vector index.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docchat/internal/domain"
	"docchat/internal/rasterize"
	"docchat/internal/retry"
	"docchat/internal/vectorstore"
)

type Pipeline struct {
	rasterizer  rasterize.Rasterizer
	transcriber domain.Transcriber
	embedder    domain.Embedder
	store       vectorstore.Storage
	retrier     *retry.Retrier
	concurrency int
	log         zerolog.Logger
}

type Config struct {
	Concurrency int
	Logger      zerolog.Logger
}

func New(r rasterize.Rasterizer, t domain.Transcriber, e domain.Embedder, s vectorstore.Storage, retrier *retry.Retrier, cfg Config) *Pipeline {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if retrier == nil {
		retrier = &retry.Retrier{}
	}
	return &Pipeline{
		rasterizer:  r,
		transcriber: t,
		embedder:    e,
		store:       s,
		retrier:     retrier,
		concurrency: concurrency,
		log:         cfg.Logger,
	}
}

// Report summarizes one completed document ingestion.
type Report struct {
	Doc     string
	Pages   int
	Elapsed time.Duration
}

// IngestDocument processes every page of the document and replaces its
// records in the index. All pages are transcribed and embedded before the
// index is touched, so a failing page leaves previously indexed records
// intact. Page order and numbering survive the concurrent processing.
func (p *Pipeline) IngestDocument(ctx context.Context, doc domain.Document) (Report, error) {
	start := time.Now()
	p.log.Info().Str("doc", doc.Name).Str("path", doc.Path).Msg("starting ingestion")

	seq, err := p.rasterizer.Rasterize(ctx, doc)
	if err != nil {
		return Report{}, err
	}
	defer seq.Close()

	n := seq.Len()
	if n == 0 {
		return Report{}, fmt.Errorf("%s: %w", doc.Name, rasterize.ErrNoPages)
	}
	records := make([]domain.IndexRecord, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			img, err := seq.Page(gctx, i)
			if err != nil {
				return err
			}
			var transcript domain.PageTranscript
			err = p.retrier.Do(gctx, func() error {
				var err error
				transcript, err = p.transcriber.TranscribePage(gctx, img)
				return err
			})
			if err != nil {
				return err
			}
			page := domain.Page{
				Doc:         doc.Name,
				Number:      img.Number,
				Content:     transcript.Content,
				Summary:     transcript.Summary,
				ContentType: ClassifyContent(transcript.Content),
				Year:        doc.Year,
			}
			var vec domain.Vector
			err = p.retrier.Do(gctx, func() error {
				var err error
				vec, err = p.embedder.Embed(gctx, page.EmbeddingText())
				return err
			})
			if err != nil {
				return fmt.Errorf("embed %s page %d: %w", doc.Name, page.Number, err)
			}
			records[i] = domain.NewIndexRecord(page, vec)
			p.log.Info().Str("doc", doc.Name).Int("page", page.Number).
				Str("content_type", page.ContentType).Msg("page processed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	// Every write is idempotent (create-if-absent, delete tolerates absence,
	// upsert replaces by key), so all three are safe to retry.
	err = p.retrier.Do(ctx, func() error {
		return p.store.EnsureReady(ctx, len(records[0].Vector))
	})
	if err != nil {
		return Report{}, fmt.Errorf("prepare index: %w", err)
	}
	// Full replace: stale records from a previous, longer version of the
	// document must not survive re-ingestion.
	err = p.retrier.Do(ctx, func() error {
		return p.store.DeleteDocument(ctx, doc.Name)
	})
	if err != nil {
		return Report{}, fmt.Errorf("delete stale records for %s: %w", doc.Name, err)
	}
	err = p.retrier.Do(ctx, func() error {
		return p.store.Upsert(ctx, records)
	})
	if err != nil {
		return Report{}, fmt.Errorf("upsert %s: %w", doc.Name, err)
	}

	report := Report{Doc: doc.Name, Pages: n, Elapsed: time.Since(start)}
	p.log.Info().Str("doc", report.Doc).Int("pages", report.Pages).
		Dur("elapsed", report.Elapsed).Msg("ingestion complete")
	return report, nil
}

// DocumentFromPath derives the document identity from a PDF path. The name
// drops the extension, matching how records are cited in answers.
func DocumentFromPath(path, year string) domain.Document {
	base := filepath.Base(path)
	return domain.Document{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
		Year: year,
	}
}

// ScanDir lists the PDF files directly under dir, sorted by name.
func ScanDir(dir, year string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var docs []domain.Document
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		docs = append(docs, DocumentFromPath(filepath.Join(dir, e.Name()), year))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}
