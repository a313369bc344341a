package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"docchat/internal/app"
	"docchat/internal/domain"
	"docchat/internal/ingest"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, year, docName string
	flag.StringVar(&cfgPath, "config", "", "path to config file (default: ./config.yaml or ~/.config/docchat/config.yaml)")
	flag.StringVar(&year, "year", "", "fiscal year tag for ingested documents (overrides config)")
	flag.StringVar(&docName, "doc", "", "index name for the document (single PDF only; default: file name without extension)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [pdf ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ingests the given PDFs into the vector index. With no arguments,\ningests every PDF in the configured source directory.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := app.NewLogger()

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if year == "" {
		year = cfg.Ingest.Year
	}

	client, err := app.NewAIClient(cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}
	storage, err := app.NewStorage(cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create vector store")
	}
	rasterizer, err := app.NewRasterizer(cfg.Rasterizer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rasterizer")
	}

	var docs []domain.Document
	if paths := flag.Args(); len(paths) > 0 {
		if docName != "" && len(paths) > 1 {
			log.Fatal().Msg("--doc applies to a single PDF, got several")
		}
		for _, p := range paths {
			docs = append(docs, ingest.DocumentFromPath(p, year))
		}
		if docName != "" {
			docs[0].Name = docName
		}
	} else {
		if docName != "" {
			log.Fatal().Msg("--doc requires an explicit PDF path")
		}
		docs, err = ingest.ScanDir(cfg.Ingest.SourceDir, year)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to scan source directory")
		}
		if len(docs) == 0 {
			log.Fatal().Str("dir", cfg.Ingest.SourceDir).Msg("no PDF files found")
		}
	}

	pipeline := ingest.New(rasterizer, client, client, storage, app.NewRetrier(cfg.Retry), ingest.Config{
		Concurrency: cfg.Ingest.Concurrency,
		Logger:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, doc := range docs {
		report, err := pipeline.IngestDocument(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				log.Fatal().Str("doc", doc.Name).Msg("ingestion interrupted")
			}
			log.Error().Err(err).Str("doc", doc.Name).Msg("ingestion failed")
			failed++
			continue
		}
		log.Info().
			Str("doc", report.Doc).
			Int("pages", report.Pages).
			Dur("elapsed", report.Elapsed).
			Msg("document indexed")
	}
	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("some documents were not ingested")
	}
}
