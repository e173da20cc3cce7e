// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withGeminiURL(t *testing.T, url string) {
	t.Helper()
	old := geminiAPIURL
	geminiAPIURL = url
	t.Cleanup(func() { geminiAPIURL = old })
}

func withClaudeURL(t *testing.T, url string) {
	t.Helper()
	old := claudeAPIURL
	claudeAPIURL = url
	t.Cleanup(func() { claudeAPIURL = old })
}

func TestGeminiBackendComplete(t *testing.T) {
	var got geminiRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"value\": "},{"text":"\"Human\"}"}]},"finishReason":"STOP"}]}`))
	}))
	defer ts.Close()
	withGeminiURL(t, ts.URL+"/")

	b := &GeminiBackend{APIKey: "test-key", ModelName: "gemini-2.5-flash"}
	text, err := b.Complete(context.Background(), Request{
		Prompt: "question", JSON: true, Temperature: 0.1, MaxTokens: 500, TopP: 0.7, TopK: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"value": "Human"}`, text)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "question", got.Contents[0].Parts[0].Text)
	gc := got.GenerationConfig
	require.NotNil(t, gc.Temperature)
	assert.InDelta(t, 0.1, *gc.Temperature, 1e-9)
	require.NotNil(t, gc.TopP)
	assert.InDelta(t, 0.7, *gc.TopP, 1e-9)
	assert.Equal(t, 500, gc.MaxOutputTokens)
	assert.Equal(t, 10, gc.TopK)
	assert.Equal(t, "application/json", gc.ResponseMIMEType)
}

func TestGeminiBackendErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, KindQuotaExceeded},
		{"forbidden", http.StatusForbidden, `{"error":{}}`, KindAccessDenied},
		{"bad key", http.StatusBadRequest, `{"error":{"message":"API key invalid"}}`, KindAuthentication},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, KindUnexpected},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()
			withGeminiURL(t, ts.URL+"/")

			b := &GeminiBackend{APIKey: "k", ModelName: "m"}
			_, err := b.Complete(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, Classify(err))
		})
	}
}

func TestGeminiBackendMissingKey(t *testing.T) {
	_, err := (&GeminiBackend{}).Complete(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClaudeBackendComplete(t *testing.T) {
	var got claudeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"status\":"},{"type":"tool_use"},{"type":"text","text":"\"ABSENT\"}"}]}`))
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	b := &ClaudeBackend{APIKey: "k", ModelName: "claude-test"}
	text, err := b.Complete(context.Background(), Request{Prompt: "q", Temperature: 0.1, TopP: 0.7, TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ABSENT"}`, text)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, defaultClaudeMaxTokens, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.Nil(t, got.TopP, "temperature and top_p are exclusive")
	assert.Equal(t, 10, got.TopK)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestClaudeBackendUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error"}}`))
	}))
	defer ts.Close()
	withClaudeURL(t, ts.URL)

	_, err := (&ClaudeBackend{APIKey: "bad", ModelName: "m"}).Complete(context.Background(), Request{Prompt: "p"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, KindAuthentication, Classify(err))
}

type fakeCompletions struct {
	params openai.ChatCompletionNewParams
	resp   *openai.ChatCompletion
	err    error
}

func (f *fakeCompletions) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = params
	return f.resp, f.err
}

func TestOpenAIBackendComplete(t *testing.T) {
	fake := &fakeCompletions{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: ` {"value":"Gut"} `}}},
	}}
	b := &OpenAIBackend{ModelName: "gpt-test", completions: fake}

	text, err := b.Complete(context.Background(), Request{Prompt: "q", MaxTokens: 500, Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"value":"Gut"}`, text)
	assert.Equal(t, "gpt-test", string(fake.params.Model))
	assert.Len(t, fake.params.Messages, 1)
	assert.Equal(t, int64(500), fake.params.MaxCompletionTokens.Value)
}

func TestOpenAIBackendErrors(t *testing.T) {
	fake := &fakeCompletions{err: &openai.Error{StatusCode: http.StatusTooManyRequests, Message: "rate limited"}}
	b := &OpenAIBackend{ModelName: "m", completions: fake}

	_, err := b.Complete(context.Background(), Request{Prompt: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "OpenAI", apiErr.Provider)
	assert.Equal(t, KindQuotaExceeded, Classify(err))

	fake.err = nil
	fake.resp = &openai.ChatCompletion{}
	_, err = b.Complete(context.Background(), Request{Prompt: "q"})
	assert.Error(t, err)
}
