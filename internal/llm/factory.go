package llm

import (
	"fmt"

	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/llm/ollama"
	"github.com/tahcohcat/meechain/internal/llm/openai"
)

type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// NewLLMClient creates a new LLM client based on the configuration. The
// "none" provider yields ErrDisabled so callers can run without analysis.
func NewLLMClient(cfg *config.Config) (LLM, error) {
	switch Provider(cfg.LLM.Provider) {
	case ProviderNone, "":
		return nil, ErrDisabled
	case ProviderOllama:
		return ollama.NewClient(&cfg.Ollama)
	case ProviderOpenAI:
		return openai.NewClient(&cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
