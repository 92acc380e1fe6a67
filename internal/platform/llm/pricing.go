package llm

import "strings"

// Rate is USD per million tokens.
type Rate struct {
	Input  float64
	Output float64
}

// Pricing maps a model prefix to its rate. The longest matching prefix wins.
type Pricing map[string]Rate

func DefaultPricing() Pricing {
	return Pricing{
		"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
		"gpt-4o":            {Input: 2.50, Output: 10.00},
		"gpt-4.1-mini":      {Input: 0.40, Output: 1.60},
		"gpt-4.1":           {Input: 2.00, Output: 8.00},
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
		"claude-sonnet":     {Input: 3.00, Output: 15.00},
		"gemini-2.0-flash":  {Input: 0.10, Output: 0.40},
		"deepseek-chat":     {Input: 0.27, Output: 1.10},
		"mistral-small":     {Input: 0.20, Output: 0.60},
		"llama-3.3-70b":     {Input: 0.59, Output: 0.79},
	}
}

func (p Pricing) Cost(model string, inputTokens, outputTokens int) float64 {
	model = strings.ToLower(strings.TrimSpace(model))
	best := ""
	for prefix := range p {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	r := p[best]
	return (float64(inputTokens)*r.Input + float64(outputTokens)*r.Output) / 1_000_000
}
