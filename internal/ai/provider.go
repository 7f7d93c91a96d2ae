package ai

import (
	"context"
	"sync"

	"github.com/kozaktomas/lookalike/internal/match"
)

// Classifier asks an external vision model which footballer a photo resembles.
// Every failure is an *OracleResponseError.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, photo []byte) (*match.Record, error)
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// usageTracker is shared by providers; classification runs concurrently under serve.
type usageTracker struct {
	mu      sync.Mutex
	usage   Usage
	pricing RequestPricing
}

func (u *usageTracker) track(inputTokens, outputTokens int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.InputTokens += int(inputTokens)
	u.usage.OutputTokens += int(outputTokens)
	u.usage.TotalCost += float64(inputTokens) / 1_000_000 * u.pricing.Input
	u.usage.TotalCost += float64(outputTokens) / 1_000_000 * u.pricing.Output
}

// GetUsage returns a snapshot of the accumulated usage.
func (u *usageTracker) GetUsage() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}
