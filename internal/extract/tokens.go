package extract

import (
	"sync"

	"medbill/internal/domain"
)

// tokenCounter accumulates usage across all workers of one extraction
// session. It is the only cross-worker shared mutable state, guarded by a
// single mutex.
type tokenCounter struct {
	mu    sync.Mutex
	usage domain.TokenUsage
}

func (c *tokenCounter) add(u domain.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage = c.usage.Add(u)
}

// addEstimate applies the fixed fallback increment for calls where the
// service omitted usage metadata.
func (c *tokenCounter) addEstimate(input, output int) {
	c.add(domain.TokenUsage{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	})
}

func (c *tokenCounter) snapshot() domain.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
