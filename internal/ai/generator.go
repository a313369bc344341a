package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/domain"
)

// GenerateAnswer streams a grounded answer to the question using only the
// retrieved contexts. The returned stream yields non-empty text deltas and
// ends with io.EOF; callers must Close it.
func (c *Client) GenerateAnswer(ctx context.Context, question string, contexts []domain.Match) (domain.AnswerStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: deterministicTemperature,
		MaxTokens:   c.cfg.MaxAnswerTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: answerUserContent(question, contexts)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create answer stream: %w", err)
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next non-empty text delta. Chunks without content, such
// as role-only or finish-reason frames, are skipped. io.EOF marks the end.
func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
