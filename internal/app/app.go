// Package app assembles configured components for the command-line entry
// points.
package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"docchat/internal/ai"
	"docchat/internal/config"
	"docchat/internal/rasterize"
	"docchat/internal/retry"
	"docchat/internal/vectorstore"
	"docchat/internal/vectorstore/chromem"
	"docchat/internal/vectorstore/memory"
	"docchat/internal/vectorstore/qdrant"
)

// NewLogger builds the console logger used by the CLIs.
func NewLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

// NewAIClient builds the hosted model client, resolving the API key from the
// configured environment variable.
func NewAIClient(cfg config.AIConfig) (*ai.Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
	}
	return ai.New(ai.Config{
		Provider:            cfg.Provider,
		Endpoint:            cfg.Endpoint,
		APIKey:              apiKey,
		APIVersion:          cfg.APIVersion,
		ChatModel:           cfg.ChatModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		MaxAnswerTokens:     cfg.MaxAnswerTokens,
		Timeout:             time.Duration(cfg.TimeoutSecs) * time.Second,
	})
}

// NewStorage builds the configured vector store backend.
func NewStorage(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "qdrant", "":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		apiKey := ""
		if cfg.Qdrant.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     apiKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "chromem":
		if cfg.Chromem == nil {
			return nil, errors.New("chromem config missing")
		}
		return chromem.NewStorage(chromem.Config{
			Path:       cfg.Chromem.Path,
			Collection: cfg.Chromem.Collection,
		})
	case "memory":
		return memory.NewStorage(), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// NewRasterizer builds the configured PDF rasterizer.
func NewRasterizer(cfg config.RasterizerConfig) (rasterize.Rasterizer, error) {
	switch cfg.Type {
	case "poppler", "":
		return rasterize.NewPoppler(cfg.DPI, cfg.JPEGQuality), nil
	default:
		return nil, fmt.Errorf("unknown rasterizer: %s", cfg.Type)
	}
}

// NewRetrier builds the retry policy for hosted-service calls.
func NewRetrier(cfg config.RetryConfig) *retry.Retrier {
	return retry.New(retry.Config{
		Attempts: cfg.Attempts,
		Delay:    time.Duration(cfg.DelayMillis) * time.Millisecond,
		MaxDelay: time.Duration(cfg.MaxDelayMs) * time.Millisecond,
	})
}

// LoadConfig resolves the config from an explicit path or the default
// locations.
func LoadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}
