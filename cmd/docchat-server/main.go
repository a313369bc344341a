package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"docchat/internal/app"
	"docchat/internal/chat"
	"docchat/internal/server"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "path to config file (default: ./config.yaml or ~/.config/docchat/config.yaml)")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flag.Parse()

	log := app.NewLogger()

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	client, err := app.NewAIClient(cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}
	storage, err := app.NewStorage(cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create vector store")
	}

	service := chat.NewService(client, storage, client, app.NewRetrier(cfg.Retry), chat.Config{
		TopK:   cfg.Retrieval.TopK,
		Doc:    cfg.Retrieval.Doc,
		Logger: log,
	})

	srv := server.New(service, server.Config{
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RequestsPerMinute:  cfg.Server.RequestsPerMinute,
		SuggestedQuestions: cfg.Chat.SuggestedQuestions,
		Logger:             log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", addr).Msg("starting chat server")
	if err := srv.Run(ctx, addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
