// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// geminiAPIURL is the Generative Language API model root. Package-level
// var for test substitution.
var geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/"

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend calls the Gemini generateContent endpoint.
type GeminiBackend struct {
	APIKey    string
	ModelName string
	Client    *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             int      `json:"topK,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Model returns the configured Gemini model.
func (g *GeminiBackend) Model() string { return g.ModelName }

// Complete sends req as a single user turn and returns the concatenated
// text parts of the first candidate.
func (g *GeminiBackend) Complete(ctx context.Context, req Request) (string, error) {
	if g.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			TopK:            req.TopK,
		},
	}
	if req.Temperature > 0 {
		body.GenerationConfig.Temperature = &req.Temperature
	}
	if req.TopP > 0 {
		body.GenerationConfig.TopP = &req.TopP
	}
	if req.JSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", eris.Wrap(err, "marshaling request")
	}

	model := g.ModelName
	if model == "" {
		model = defaultGeminiModel
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		geminiAPIURL+model+":generateContent", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "creating request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Provider: "Gemini", StatusCode: resp.StatusCode, Body: string(b)}
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", eris.Wrap(err, "decoding Gemini response")
	}
	if gResp.PromptFeedback.BlockReason != "" {
		return "", eris.Errorf("Gemini blocked the prompt: %s", gResp.PromptFeedback.BlockReason)
	}
	if len(gResp.Candidates) == 0 {
		return "", eris.New("Gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", eris.New("Gemini returned empty content")
	}
	return text, nil
}
