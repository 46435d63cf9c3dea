package graph

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ModelPricing is the USD price per million tokens of one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// DefaultModelPricing covers the models the bundled providers default to.
// Unknown models are tracked at zero cost.
var DefaultModelPricing = map[string]ModelPricing{
	"claude-sonnet-4-5":          {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-opus-4-1":            {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-5-haiku-latest":    {InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4.1":                    {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini":               {InputPer1M: 0.40, OutputPer1M: 1.60},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-2.0-flash":           {InputPer1M: 0.10, OutputPer1M: 0.40},
}

// LLMCall is one recorded text generation.
type LLMCall struct {
	NodeID       string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
}

// CostTracker accumulates token usage and cost for one run. It is safe for
// concurrent use by the nodes of a wave.
type CostTracker struct {
	RunID   string
	Pricing map[string]ModelPricing

	mu           sync.RWMutex
	calls        []LLMCall
	totalCost    float64
	modelCosts   map[string]float64
	inputTokens  int64
	outputTokens int64
}

// NewCostTracker returns a tracker using pricing, or DefaultModelPricing when nil.
func NewCostTracker(runID string, pricing map[string]ModelPricing) *CostTracker {
	if pricing == nil {
		pricing = DefaultModelPricing
	}
	return &CostTracker{
		RunID:      runID,
		Pricing:    pricing,
		modelCosts: make(map[string]float64),
	}
}

// price looks up a model, accepting dated or suffixed variants of a known
// name such as "gpt-4o-2024-08-06".
func (ct *CostTracker) price(model string) ModelPricing {
	if p, ok := ct.Pricing[model]; ok {
		return p
	}
	best := ""
	for name := range ct.Pricing {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	return ct.Pricing[best]
}

// Record adds one generation and returns its cost.
func (ct *CostTracker) Record(nodeID string, text GeneratedText) float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	p := ct.price(text.Model)
	cost := float64(text.InputTokens)/1_000_000*p.InputPer1M +
		float64(text.OutputTokens)/1_000_000*p.OutputPer1M

	ct.calls = append(ct.calls, LLMCall{
		NodeID:       nodeID,
		Provider:     text.Provider,
		Model:        text.Model,
		InputTokens:  text.InputTokens,
		OutputTokens: text.OutputTokens,
		CostUSD:      cost,
		Timestamp:    time.Now(),
	})
	ct.totalCost += cost
	ct.modelCosts[text.Model] += cost
	ct.inputTokens += int64(text.InputTokens)
	ct.outputTokens += int64(text.OutputTokens)
	return cost
}

// TotalCost returns the accumulated cost in USD across every recorded call.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.totalCost
}

// CostByModel returns a copy of the per-model totals.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make(map[string]float64, len(ct.modelCosts))
	for k, v := range ct.modelCosts {
		out[k] = v
	}
	return out
}

// Calls returns a copy of the call history.
func (ct *CostTracker) Calls() []LLMCall {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return append([]LLMCall(nil), ct.calls...)
}

// TokenUsage returns the summed input and output token counts.
func (ct *CostTracker) TokenUsage() (input, output int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.inputTokens, ct.outputTokens
}

// String summarizes the tracker for logs and the CLI trace.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return fmt.Sprintf("CostTracker{RunID: %s, Calls: %d, TotalCost: $%.4f, InputTokens: %d, OutputTokens: %d}",
		ct.RunID, len(ct.calls), ct.totalCost, ct.inputTokens, ct.outputTokens)
}
