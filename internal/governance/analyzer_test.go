package governance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/internal/llm"
)

type fakeLLM struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func (f *fakeLLM) IsModelAvailable(ctx context.Context) error { return nil }

func TestAnalyzeParsesJSON(t *testing.T) {
	fake := &fakeLLM{reply: `{"summary":"Raise the mint cap.","sentiment":"Positive","recommendation":"support","risks":["inflation"]}`}
	a := NewAnalyzer(fake)

	got, err := a.Analyze(context.Background(), Proposal{Title: "MIP-7", Body: "Raise the mint cap to 10k."})
	require.NoError(t, err)
	assert.Equal(t, &Analysis{
		Summary:        "Raise the mint cap.",
		Sentiment:      "positive",
		Recommendation: "support",
		Risks:          []string{"inflation"},
	}, got)
	assert.Contains(t, fake.prompt, "MIP-7")
}

func TestAnalyzeSalvagesWrappedJSON(t *testing.T) {
	fake := &fakeLLM{reply: "Sure! Here you go:\n{\"summary\":\"ok\",\"sentiment\":\"meh\"}\nHope it helps."}

	got, err := NewAnalyzer(fake).Analyze(context.Background(), Proposal{Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Summary)
	assert.Equal(t, "neutral", got.Sentiment)
	assert.Equal(t, "abstain", got.Recommendation)
	assert.Empty(t, got.Risks)
}

func TestAnalyzeFallsBackToRawText(t *testing.T) {
	fake := &fakeLLM{reply: "  This proposal is fine.  "}

	got, err := NewAnalyzer(fake).Analyze(context.Background(), Proposal{Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "This proposal is fine.", got.Summary)
}

func TestAnalyzeTruncatesOnRuneBoundary(t *testing.T) {
	fake := &fakeLLM{reply: `{"summary":"long"}`}
	body := strings.Repeat("a", maxBodyLen-1) + strings.Repeat("é", 10)

	_, err := NewAnalyzer(fake).Analyze(context.Background(), Proposal{Body: body})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(fake.prompt))
	assert.True(t, strings.HasSuffix(fake.prompt, strings.Repeat("a", maxBodyLen-1)+"é"))
	assert.NotContains(t, fake.prompt, "éé")
}

func TestAnalyzeErrors(t *testing.T) {
	_, err := NewAnalyzer(&fakeLLM{}).Analyze(context.Background(), Proposal{Body: "   "})
	assert.ErrorIs(t, err, ErrEmptyProposal)

	boom := errors.New("connection refused")
	_, err = NewAnalyzer(&fakeLLM{err: boom}).Analyze(context.Background(), Proposal{Body: "x"})
	assert.ErrorIs(t, err, boom)

	_, err = NewAnalyzer(nil).Analyze(context.Background(), Proposal{Body: "x"})
	assert.ErrorIs(t, err, llm.ErrDisabled)
}
