package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"docchat/internal/app"
	"docchat/internal/chat"
	"docchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, doc string
	var topK int
	flag.StringVar(&cfgPath, "config", "", "path to config file (default: ./config.yaml or ~/.config/docchat/config.yaml)")
	flag.StringVar(&doc, "doc", "", "restrict answers to a single document (overrides config)")
	flag.IntVar(&topK, "top-k", 0, "number of pages to retrieve per question (overrides config)")
	flag.Parse()

	log := app.NewLogger()

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if doc == "" {
		doc = cfg.Retrieval.Doc
	}
	if topK <= 0 {
		topK = cfg.Retrieval.TopK
	}

	client, err := app.NewAIClient(cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}
	storage, err := app.NewStorage(cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create vector store")
	}

	// The terminal is owned by the TUI once the program starts, so service
	// logs are discarded unless DEBUG routes them to a file.
	svcLog := zerolog.Nop()
	if os.Getenv("DEBUG") != "" {
		f, err := os.OpenFile("docchat.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open debug log")
		}
		defer f.Close()
		svcLog = zerolog.New(f).With().Timestamp().Logger()
	}

	service := chat.NewService(client, storage, client, app.NewRetrier(cfg.Retry), chat.Config{
		TopK:   topK,
		Doc:    doc,
		Logger: svcLog,
	})

	m := tui.New(service, cfg.Chat.SuggestedQuestions)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
