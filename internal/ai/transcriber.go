package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/domain"
)

// TranscribePage extracts the full markdown transcription of a page image and
// then condenses it into a bullet summary. Both calls run at deterministic
// temperature so repeated ingests produce identical records.
func (c *Client) TranscribePage(ctx context.Context, img domain.PageImage) (domain.PageTranscript, error) {
	content, err := c.extractPageDetail(ctx, img)
	if err != nil {
		return domain.PageTranscript{}, fmt.Errorf("transcribe %s page %d: %w", img.Doc, img.Number, err)
	}
	summary, err := c.summarizePage(ctx, content)
	if err != nil {
		return domain.PageTranscript{}, fmt.Errorf("summarize %s page %d: %w", img.Doc, img.Number, err)
	}
	return domain.PageTranscript{Content: content, Summary: summary}, nil
}

func (c *Client) extractPageDetail(ctx context.Context, img domain.PageImage) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data))
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: deterministicTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: transcribePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return firstMessageContent(resp)
}

func (c *Client) summarizePage(ctx context.Context, content string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: deterministicTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(summaryPromptFormat, content)},
		},
	})
	if err != nil {
		return "", err
	}
	return firstMessageContent(resp)
}

func firstMessageContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("chat response contains no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
