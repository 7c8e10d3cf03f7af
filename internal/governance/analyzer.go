// Package governance produces LLM-backed summaries of DAO proposals.
package governance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tahcohcat/meechain/internal/llm"
	"github.com/tahcohcat/meechain/internal/logger"
)

var ErrEmptyProposal = errors.New("governance: proposal body is empty")

const maxBodyLen = 8000

type Proposal struct {
	Title string `json:"title" validate:"max=200"`
	Body  string `json:"body" validate:"required,max=8000"`
}

type Analysis struct {
	Summary        string   `json:"summary"`
	Sentiment      string   `json:"sentiment"`
	Recommendation string   `json:"recommendation"`
	Risks          []string `json:"risks"`
}

const systemPrompt = `You are a governance analyst for the MeeChain DAO.
Read the proposal and reply in this EXACT JSON structure:
{"summary": "two sentence summary", "sentiment": "positive|neutral|negative", "recommendation": "support|oppose|abstain", "risks": ["short risk", "..."]}
Do not add any text outside the JSON object.`

type Analyzer struct {
	llm    llm.LLM
	logger *logger.Log
}

func NewAnalyzer(client llm.LLM) *Analyzer {
	return &Analyzer{llm: client, logger: logger.New().With("component", "governance")}
}

// Analyze asks the model for a structured reading of p. Replies wrapped in
// prose are salvaged; a reply with no JSON at all becomes the summary.
func (a *Analyzer) Analyze(ctx context.Context, p Proposal) (*Analysis, error) {
	if a == nil || a.llm == nil {
		return nil, llm.ErrDisabled
	}
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return nil, ErrEmptyProposal
	}
	body = truncateRunes(body, maxBodyLen)

	prompt := fmt.Sprintf("Proposal title: %s\n\nProposal text:\n%s", strings.TrimSpace(p.Title), body)
	resp, err := a.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("governance: analysis failed: %w", err)
	}

	var out Analysis
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		a.logger.Warn(fmt.Sprintf("failed to unmarshal analysis. [response:%s]", resp))

		if extracted, extractErr := extractJSON(resp); extractErr == nil {
			return extracted.normalize(), nil
		}

		return (&Analysis{Summary: strings.TrimSpace(resp)}).normalize(), nil
	}
	return out.normalize(), nil
}

// truncateRunes keeps the first n characters of s, matching how the request
// validator counts max=.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (a *Analysis) normalize() *Analysis {
	a.Sentiment = oneOf(strings.ToLower(strings.TrimSpace(a.Sentiment)), "neutral", "positive", "negative")
	a.Recommendation = oneOf(strings.ToLower(strings.TrimSpace(a.Recommendation)), "abstain", "support", "oppose")
	if a.Risks == nil {
		a.Risks = []string{}
	}
	return a
}

func oneOf(v, fallback string, allowed ...string) string {
	for _, ok := range allowed {
		if v == ok {
			return v
		}
	}
	return fallback
}

// extractJSON finds the outermost object in a reply that wraps it in text.
func extractJSON(response string) (*Analysis, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start != -1 && end != -1 && end > start {
		var out Analysis
		if err := json.Unmarshal([]byte(response[start:end+1]), &out); err == nil {
			return &out, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON found in response")
}
