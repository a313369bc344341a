// Package ai talks to a hosted OpenAI-compatible service for vision
// transcription, summarization, embeddings and grounded answers.
package ai

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey reports a client configured without credentials.
var ErrMissingAPIKey = errors.New("ai: api key is empty")

// Config selects the provider and models for all hosted calls.
type Config struct {
	Provider            string // "openai" or "azure"
	Endpoint            string // Azure resource endpoint, or base URL override for OpenAI-compatible APIs
	APIKey              string
	APIVersion          string // Azure only
	ChatModel           string // model name, or deployment name on Azure
	EmbeddingModel      string
	EmbeddingDimensions int
	MaxAnswerTokens     int
	Timeout             time.Duration
}

// Client implements the embedder, transcriber and answer generator against a
// single hosted endpoint. It is safe for concurrent use.
type Client struct {
	api *openai.Client
	cfg Config
	dim atomic.Int32 // embedding dimension observed on the last Embed call
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	var cc openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		if cfg.Endpoint == "" {
			return nil, errors.New("ai: azure provider requires an endpoint")
		}
		cc = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			cc.APIVersion = cfg.APIVersion
		}
	case "", "openai":
		cc = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			cc.BaseURL = cfg.Endpoint
		}
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{api: openai.NewClientWithConfig(cc), cfg: cfg}, nil
}

// deterministicTemperature stands in for exact zero: the request field is
// marshalled with omitempty, so a true 0 would be dropped and the service
// would fall back to its default.
const deterministicTemperature float32 = math.SmallestNonzeroFloat32
