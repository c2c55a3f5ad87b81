// Package llm provides question simplification and image captioning backed by
// an OpenAI-compatible API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/able/internal/llm/prompts"
	"github.com/pavelanni/able/internal/model"
)

// Fallback texts used when the model gives nothing usable.
const (
	FallbackSimplified = "Could not simplify."
	FallbackCaption    = "Image shown."
)

// Caption describes a question image.
type Caption struct {
	Caption string `json:"caption"`
	Hint    string `json:"hint"`
	Missing string `json:"missing"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	model       string
	visionModel string
}

// New creates a new LLM client. visionModel defaults to modelName.
func New(baseURL, apiKey, modelName, visionModel string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if visionModel == "" {
		visionModel = modelName
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		visionModel: visionModel,
	}
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM ping: %w", err)
	}
	return nil
}

// Simplify rewrites a question as short hint bullets without the answer.
// An empty reply yields FallbackSimplified.
func (c *Client) Simplify(ctx context.Context, text string, lang model.Language) (string, error) {
	prompt, err := prompts.Simplify(text, languageName(lang))
	if err != nil {
		return "", err
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return FallbackSimplified, nil
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return FallbackSimplified, nil
	}
	return out, nil
}

// DescribeImage captions the image at imageURL. On failure the returned
// caption still carries FallbackCaption.
func (c *Client) DescribeImage(ctx context.Context, imageURL, question string, lang model.Language) (Caption, error) {
	fallback := Caption{Caption: FallbackCaption}
	prompt, err := prompts.Caption(question, languageName(lang))
	if err != nil {
		return fallback, err
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    imageURL,
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return fallback, fmt.Errorf("LLM vision call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fallback, fmt.Errorf("LLM returned no choices for caption")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM caption response", "raw", raw)

	var result Caption
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback, fmt.Errorf("parse caption response: %w (raw: %s)", err, raw)
	}
	result.Caption = strings.TrimSpace(result.Caption)
	if result.Caption == "" {
		result.Caption = FallbackCaption
	}
	return result, nil
}

func languageName(lang model.Language) string {
	switch lang {
	case model.LanguageHindi:
		return "Hindi"
	case model.LanguageKannada:
		return "Kannada"
	}
	return ""
}
