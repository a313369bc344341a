package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/domain"
)

func (c *Client) Name() string {
	provider := c.cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return provider + "/" + c.cfg.EmbeddingModel
}

// Dimension reports the embedding vector size: the configured value when one
// is set, otherwise the size observed on the most recent Embed call. Returns
// 0 before the first call when unconfigured.
func (c *Client) Dimension() int {
	if c.cfg.EmbeddingDimensions > 0 {
		return c.cfg.EmbeddingDimensions
	}
	return int(c.dim.Load())
}

func (c *Client) Embed(ctx context.Context, text string) (domain.Vector, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	}
	if c.cfg.EmbeddingDimensions > 0 {
		req.Dimensions = c.cfg.EmbeddingDimensions
	}
	resp, err := c.api.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contains no data")
	}
	vec := resp.Data[0].Embedding
	if len(vec) == 0 {
		return nil, errors.New("embedding response contains an empty vector")
	}
	c.dim.Store(int32(len(vec)))
	return domain.Vector(vec), nil
}
