// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// Backend abstracts the hosted language model so tests can supply a mock.
// Each implementation sends one prompt and returns the raw reply text.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Model names the model replies come from, for AnalysisResult.ModelUsed.
	Model() string
}

// Request is one prompt plus generation settings. Zero values leave the
// provider's default in place.
type Request struct {
	Prompt string

	// JSON asks the provider to constrain output to a JSON object when it
	// supports doing so.
	JSON bool

	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// NewBackend builds the backend selected by cfg.Provider. ProviderNone
// returns a nil Backend and no error; callers then use the heuristic path.
func NewBackend(cfg types.AIConfig, client *http.Client) (Backend, error) {
	provider := types.LLMProvider(strings.ToLower(string(cfg.Provider)))
	if provider == "" {
		provider = types.ProviderGemini
	}
	if provider == types.ProviderNone {
		return nil, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.Wrapf(ErrMissingAPIKey, "provider %s", provider)
	}

	switch provider {
	case types.ProviderGemini:
		model := cfg.Model
		if model == "" {
			model = defaultGeminiModel
		}
		return &GeminiBackend{APIKey: cfg.APIKey, ModelName: model, Client: client}, nil
	case types.ProviderClaude:
		model := cfg.Model
		if model == "" || strings.HasPrefix(model, "gemini") {
			model = defaultClaudeModel
		}
		return &ClaudeBackend{APIKey: cfg.APIKey, ModelName: model, Client: client}, nil
	case types.ProviderOpenAI:
		model := cfg.Model
		if model == "" || strings.HasPrefix(model, "gemini") {
			model = defaultOpenAIModel
		}
		return NewOpenAIBackend(cfg.APIKey, model, client), nil
	}
	return nil, eris.Errorf("unknown model provider %q", cfg.Provider)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff. Each attempt
// runs under its own timeout when timeout is positive. Errors that cannot
// succeed on retry (missing key, rejected credentials) return at once.
func callWithRetry(ctx context.Context, backend Backend, req Request, maxRetries int, timeout time.Duration) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := complete(ctx, backend, req, timeout)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(Classify(err)) {
			break
		}
	}
	return "", lastErr
}

func complete(ctx context.Context, backend Backend, req Request, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return backend.Complete(ctx, req)
}
