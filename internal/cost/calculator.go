// Package cost estimates the paid-provider spend of a run: writer tokens for
// bio rewrites and flat per-query research fees.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Writer   map[string]ModelRate `yaml:"writer" mapstructure:"writer"`
	Research ResearchRate         `yaml:"research" mapstructure:"research"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ResearchRate holds the research provider's flat per-query pricing.
type ResearchRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Writer computes the cost of a writer-model call. Unknown models cost 0.
func (c *Calculator) Writer(model string, input, output int64) float64 {
	rate, ok := c.rates.Writer[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost
}

// ResearchQuery returns the flat cost per research query.
func (c *Calculator) ResearchQuery() float64 {
	return c.rates.Research.PerQuery
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Writer: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Research: ResearchRate{PerQuery: 0.005},
	}
}
