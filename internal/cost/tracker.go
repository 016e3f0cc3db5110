package cost

import "sync"

// Tracker accumulates provider usage across a run. Safe for concurrent use;
// the pipeline records from multiple stages at once.
type Tracker struct {
	mu   sync.Mutex
	calc *Calculator

	writerCalls     int
	writerInput     int64
	writerOutput    int64
	researchQueries int
	total           float64
}

// Summary is a point-in-time snapshot of accumulated usage.
type Summary struct {
	WriterCalls     int
	WriterInput     int64
	WriterOutput    int64
	ResearchQueries int
	EstimatedUSD    float64
}

// NewTracker creates a Tracker pricing usage with the given rates.
func NewTracker(rates Rates) *Tracker {
	return &Tracker{calc: NewCalculator(rates)}
}

// RecordWriter accumulates one writer-model call.
func (t *Tracker) RecordWriter(model string, input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writerCalls++
	t.writerInput += input
	t.writerOutput += output
	t.total += t.calc.Writer(model, input, output)
}

// RecordResearchQuery accumulates one flat-rate research query.
func (t *Tracker) RecordResearchQuery() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.researchQueries++
	t.total += t.calc.ResearchQuery()
}

// Summary returns the accumulated usage so far.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		WriterCalls:     t.writerCalls,
		WriterInput:     t.writerInput,
		WriterOutput:    t.writerOutput,
		ResearchQueries: t.researchQueries,
		EstimatedUSD:    t.total,
	}
}
