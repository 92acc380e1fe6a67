package generation

import (
	"sync"

	"github.com/yungbote/seoflow-backend/internal/platform/llm"
)

const (
	StepResearch = "research"
	StepOutline  = "outline"
	StepSection  = "section"
	StepPolish   = "polish"
)

// StepCost records which provider served one step and what it cost.
type StepCost struct {
	Step         string  `json:"step"`
	Index        int     `json:"index,omitempty"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Ledger accumulates step costs. The total only ever grows.
type Ledger struct {
	mu     sync.Mutex
	steps  []StepCost
	total  float64
	input  int
	output int
}

func (l *Ledger) Record(step string, index int, c *llm.Completion) StepCost {
	sc := StepCost{Step: step, Index: index}
	if c != nil {
		sc.Provider = c.Provider
		sc.Model = c.Model
		sc.InputTokens = max(c.InputTokens, 0)
		sc.OutputTokens = max(c.OutputTokens, 0)
		sc.Cost = max(c.Cost, 0)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, sc)
	l.total += sc.Cost
	l.input += sc.InputTokens
	l.output += sc.OutputTokens
	return sc
}

func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Ledger) Tokens() (input, output int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.input, l.output
}

func (l *Ledger) Steps() []StepCost {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StepCost(nil), l.steps...)
}

// Models lists "provider/model" labels in first-use order.
func (l *Ledger) Models() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, s := range l.steps {
		label := s.Model
		if s.Provider != "" {
			label = s.Provider + "/" + s.Model
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}
