package costs

import "sync"

const tokensPerUnit = 1_000_000

// Rates contains the USD price per one million tokens.
type Rates struct {
	// InputPerMillion is the cost per 1M input (prompt) tokens.
	InputPerMillion float64 `yaml:"input_per_million"`

	// OutputPerMillion is the cost per 1M output (completion) tokens.
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// DefaultRates returns the built-in pricing.
func DefaultRates() Rates {
	return Rates{
		InputPerMillion:  0.075,
		OutputPerMillion: 0.30,
	}
}

// Model calculates request cost from token counts.
//
// Calculate is safe for concurrent use; UpdateRates may be called while
// other goroutines calculate (pricing hot-reload).
type Model struct {
	mu    sync.RWMutex
	rates Rates
}

// NewModel creates a cost model with the given rates.
func NewModel(rates Rates) *Model {
	return &Model{rates: rates}
}

// Calculate returns the USD cost for the given token counts:
//
//	cost = input/1e6*inputRate + output/1e6*outputRate
//
// Negative counts are treated as zero.
func (m *Model) Calculate(inputTokens, outputTokens int) float64 {
	m.mu.RLock()
	rates := m.rates
	m.mu.RUnlock()

	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	return float64(inputTokens)/tokensPerUnit*rates.InputPerMillion +
		float64(outputTokens)/tokensPerUnit*rates.OutputPerMillion
}

// Rates returns the current pricing.
func (m *Model) Rates() Rates {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rates
}

// UpdateRates replaces the pricing. Used by the config watcher when the
// pricing section of the config file changes.
func (m *Model) UpdateRates(rates Rates) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = rates
}
