// Package llm wraps the language model backends used to analyze governance
// proposals.
package llm

import (
	"context"
	"errors"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("llm: no provider configured")

// LLM defines the interface for language model providers
type LLM interface {
	// Complete sends a system instruction and a user prompt and returns the
	// model's raw reply. Providers ask for JSON output where they support it.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// IsModelAvailable checks if the configured model is available
	IsModelAvailable(ctx context.Context) error
}
