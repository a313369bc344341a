package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AIConfig holds configuration for the hosted chat/vision/embedding provider.
// Secrets never live in the file: api_key_env names the environment variable
// that carries the key.
type AIConfig struct {
	Provider            string `yaml:"provider"`    // "openai" or "azure"
	Endpoint            string `yaml:"endpoint"`    // Azure resource endpoint, or base URL override for OpenAI-compatible APIs
	APIKeyEnv           string `yaml:"api_key_env"`
	APIVersion          string `yaml:"api_version"` // Azure only
	ChatModel           string `yaml:"chat_model"`  // model name, or deployment name on Azure
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	MaxAnswerTokens     int    `yaml:"max_answer_tokens"`
	TimeoutSecs         int    `yaml:"timeout_secs"`
}

// RasterizerConfig configures PDF-to-image conversion.
type RasterizerConfig struct {
	Type        string `yaml:"type"` // "poppler"
	DPI         int    `yaml:"dpi"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChromemConfig contains settings for the embedded chromem-go store.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string         `yaml:"type"` // "qdrant", "chromem" or "memory"
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

// IngestConfig configures the offline ingestion run.
type IngestConfig struct {
	SourceDir   string `yaml:"source_dir"`  // scanned for PDFs when no paths are given
	Concurrency int    `yaml:"concurrency"` // bounded page-level parallelism
	Year        string `yaml:"year"`        // fiscal-year tag stamped on records
}

// RetrievalConfig bounds similarity search.
type RetrievalConfig struct {
	TopK int    `yaml:"top_k"`
	Doc  string `yaml:"doc,omitempty"` // restrict retrieval to one document
}

// ChatConfig configures the interactive chat surface.
type ChatConfig struct {
	SuggestedQuestions []string `yaml:"suggested_questions,omitempty"`
}

// ServerConfig configures the HTTP chat server.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	AllowedOrigins    []string `yaml:"allowed_origins,omitempty"`
}

// RetryConfig bounds retries of idempotent hosted-service calls.
type RetryConfig struct {
	Attempts    uint `yaml:"attempts"`
	DelayMillis int  `yaml:"delay_ms"`
	MaxDelayMs  int  `yaml:"max_delay_ms"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	AI          AIConfig          `yaml:"ai"`
	Rasterizer  RasterizerConfig  `yaml:"rasterizer"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Chat        ChatConfig        `yaml:"chat"`
	Server      ServerConfig      `yaml:"server"`
	Retry       RetryConfig       `yaml:"retry"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/docchat/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: &QdrantConfig{URL: "http://localhost:6333", Collection: "docchat"},
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	ai := &cfg.AI
	if ai.Provider == "" {
		ai.Provider = "openai"
	}
	if ai.APIKeyEnv == "" {
		if ai.Provider == "azure" {
			ai.APIKeyEnv = "AZURE_OPENAI_API_KEY"
		} else {
			ai.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if ai.ChatModel == "" {
		ai.ChatModel = "gpt-4o"
	}
	if ai.EmbeddingModel == "" {
		ai.EmbeddingModel = "text-embedding-3-small"
	}
	if ai.MaxAnswerTokens == 0 {
		ai.MaxAnswerTokens = 16384
	}
	if ai.TimeoutSecs == 0 {
		ai.TimeoutSecs = 120
	}

	if cfg.Rasterizer.Type == "" {
		cfg.Rasterizer.Type = "poppler"
	}
	if cfg.Rasterizer.DPI == 0 {
		cfg.Rasterizer.DPI = 300
	}
	if cfg.Rasterizer.JPEGQuality == 0 {
		cfg.Rasterizer.JPEGQuality = 95
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	switch cfg.VectorStore.Type {
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "docchat"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	case "chromem":
		if cfg.VectorStore.Chromem == nil {
			cfg.VectorStore.Chromem = &ChromemConfig{}
		}
		c := cfg.VectorStore.Chromem
		if c.Path == "" {
			c.Path = filepath.Join(".docchat", "chromem")
		}
		if c.Collection == "" {
			c.Collection = "docchat"
		}
	}

	if cfg.Ingest.SourceDir == "" {
		cfg.Ingest.SourceDir = "files"
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 2
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestsPerMinute == 0 {
		cfg.Server.RequestsPerMinute = 60
	}

	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.DelayMillis == 0 {
		cfg.Retry.DelayMillis = 200
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = 5000
	}
}
