package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIModel sends the image as a data URL inside a chat completion.
type OpenAIModel struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenAIModel creates an OpenAI backed model. An empty baseURL uses the
// public API.
func NewOpenAIModel(apiKey, model, baseURL string) *OpenAIModel {
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{apiKey: apiKey, model: model, client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAIModel) Name() string { return o.model }

func (o *OpenAIModel) Configured() bool { return o.apiKey != "" }

func (o *OpenAIModel) Generate(ctx context.Context, prompt string, image Image) (string, error) {
	if !o.Configured() {
		return "", ErrMissingCredential
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    image.DataURL(),
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
