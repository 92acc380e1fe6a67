// Package llm is the provider adapter boundary: every vendor is reduced to
// Complete(request) -> {content, tokens, cost}.
package llm

import (
	"context"
	"strings"
)

type Request struct {
	System      string
	Prompt      string
	Model       string // optional override of the provider default
	MaxTokens   int
	Temperature *float64
	JSON        bool // ask the vendor for a JSON object response
}

type Completion struct {
	Content      string  `json:"content"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

func (c *Completion) Tokens() int {
	if c == nil {
		return 0
	}
	return c.InputTokens + c.OutputTokens
}

// Label is "provider/model", the value recorded in Article.LLMUsed.
func (c *Completion) Label() string {
	if c == nil {
		return ""
	}
	if c.Provider == "" {
		return c.Model
	}
	return c.Provider + "/" + c.Model
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

func Float(v float64) *float64 { return &v }

func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := len([]rune(text))
	return (n + 3) / 4
}
