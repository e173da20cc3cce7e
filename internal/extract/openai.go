// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rotisserie/eris"
)

const defaultOpenAIModel = "gpt-4o-mini"

// chatCompletions is the slice of the SDK client we call, so tests can
// substitute it.
type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIBackend calls the Chat Completions API through the official SDK.
type OpenAIBackend struct {
	ModelName   string
	completions chatCompletions
}

// NewOpenAIBackend builds a backend for apiKey. A nil client uses the
// SDK default. The SDK's own retries are disabled; callWithRetry owns
// the retry policy.
func NewOpenAIBackend(apiKey, model string, client *http.Client) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	c := openai.NewClient(opts...)
	return &OpenAIBackend{ModelName: model, completions: &c.Chat.Completions}
}

// Model returns the configured OpenAI model.
func (o *OpenAIBackend) Model() string { return o.ModelName }

// Complete sends the prompt as one user message.
func (o *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.ModelName),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}

	resp, err := o.completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{Provider: "OpenAI", StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", eris.New("OpenAI returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", eris.New("OpenAI returned empty content")
	}
	return text, nil
}
