// Package monitoring watches store-level health while the webhook server
// runs: confidence mix, unresolved flags, and refresh backlog.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/profilestore"
)

// MetricsSnapshot holds a point-in-time view of catalog and queue health.
type MetricsSnapshot struct {
	Subjects         int     `json:"subjects"`
	HighConfidence   int     `json:"high_confidence"`
	MediumConfidence int     `json:"medium_confidence"`
	LowConfidence    int     `json:"low_confidence"`
	LowShare         float64 `json:"low_share"`

	UnresolvedFlags  int `json:"unresolved_flags"`
	OverdueRefreshes int `json:"overdue_refreshes"`
	ProcessingClaims int `json:"processing_claims"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers health metrics from the profile store.
type Collector struct {
	store profilestore.Store
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(st profilestore.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of current store health.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	stats, err := c.store.Stats(ctx, now)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect stats")
	}

	snap := &MetricsSnapshot{
		Subjects:         stats.Subjects,
		HighConfidence:   stats.HighConfidence,
		MediumConfidence: stats.MediumConfidence,
		LowConfidence:    stats.LowConfidence,
		UnresolvedFlags:  stats.UnresolvedFlags,
		OverdueRefreshes: stats.OverdueRefreshes,
		ProcessingClaims: stats.ProcessingClaims,
		CollectedAt:      now,
	}
	if stats.Subjects > 0 {
		snap.LowShare = float64(stats.LowConfidence) / float64(stats.Subjects)
	}
	return snap, nil
}
