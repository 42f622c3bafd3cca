package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alcyxob/routine-coach/internal/config"
)

var (
	// ErrTimeout is returned when a generation call loses the race against its deadline.
	ErrTimeout = errors.New("ai request timed out")
	// ErrNotConfigured is returned when the provider has no credentials.
	ErrNotConfigured = errors.New("ai provider is not configured")
	ErrEmptyResponse = errors.New("ai provider returned an empty response")
)

// Request is a single-turn generation request.
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
}

// Provider generates text from a prompt.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Configured reports whether credentials are present.
	Configured() bool
	Name() string
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// NewProvider builds the provider named in cfg.Provider.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		return NewGeminiProvider(cfg.BaseURL, cfg.APIKey), nil
	case "openrouter":
		return NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey, "", "routine-coach"), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}
