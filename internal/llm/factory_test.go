package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tahcohcat/meechain/config"
)

func TestNewLLMClient(t *testing.T) {
	cfg := &config.Config{}

	cfg.LLM.Provider = "none"
	_, err := NewLLMClient(cfg)
	assert.ErrorIs(t, err, ErrDisabled)

	cfg.LLM.Provider = "watson"
	_, err = NewLLMClient(cfg)
	assert.ErrorContains(t, err, "unsupported")

	cfg.LLM.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	c, err := NewLLMClient(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, c)
}
