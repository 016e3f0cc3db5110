// Package syncer re-runs discovery against already-stored records and fills
// only the gaps: an already-populated field is never overwritten, however
// stale, so manually curated edits survive automated re-discovery.
package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/creatorindex/profile-cli/internal/discovery"
	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/internal/profilestore"
	"github.com/creatorindex/profile-cli/pkg/linkprobe"
)

const (
	defaultInterSubjectDelay = 2 * time.Second
	probeTimeout             = 10 * time.Second
)

// Syncer runs gap-filling syncs.
type Syncer struct {
	discoverer        *discovery.Discoverer
	store             profilestore.Store
	prober            linkprobe.Prober
	interSubjectDelay time.Duration
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithInterSubjectDelay sets the fixed pause between batch subjects.
func WithInterSubjectDelay(d time.Duration) Option {
	return func(s *Syncer) {
		if d >= 0 {
			s.interSubjectDelay = d
		}
	}
}

// New creates a Syncer. The prober gates link gap-filling: a re-discovered
// link hint only lands in the stored profile after it answers a live probe.
func New(d *discovery.Discoverer, store profilestore.Store, prober linkprobe.Prober, opts ...Option) *Syncer {
	s := &Syncer{
		discoverer:        d,
		store:             store,
		prober:            prober,
		interSubjectDelay: defaultInterSubjectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncProfile loads the stored record, re-runs discovery against its name,
// and writes a new version only when at least one gap was filled.
func (s *Syncer) SyncProfile(ctx context.Context, subjectID string) model.SyncResult {
	result := model.SyncResult{SubjectID: subjectID}
	log := zap.L().With(zap.String("subject_id", subjectID))

	record, err := s.store.GetSubject(ctx, subjectID)
	if err != nil {
		result.Outcome = model.SyncFailed
		result.Message = "load failed: " + err.Error()
		log.Error("sync load failed", zap.Error(err))
		return result
	}

	name := record.Data.DisplayName
	if name == "" {
		name = record.Data.Name
	}
	candidate, err := s.discoverer.Discover(ctx, name)
	if err != nil {
		result.Outcome = model.SyncFailed
		result.Message = "discovery failed: " + err.Error()
		return result
	}

	s.dropDeadLinks(ctx, candidate)

	merged := record.Data
	filled := fillGaps(&merged, candidate)
	if len(filled) == 0 {
		result.Outcome = model.SyncSkipped
		result.Message = "no gaps to fill"
		log.Info("sync skipped, record already complete")
		return result
	}

	if _, err := s.store.SaveProfile(ctx, profilestore.SaveRequest{
		Profile:   &merged,
		Trigger:   model.TriggerSync,
		CreatedBy: "syncer",
		SubjectID: subjectID,
	}); err != nil {
		result.Outcome = model.SyncFailed
		result.Message = "save failed: " + err.Error()
		log.Error("sync save failed", zap.Error(err))
		return result
	}

	result.Outcome = model.SyncEnriched
	result.FieldsFilled = filled
	log.Info("sync filled gaps", zap.Strings("fields", filled))
	return result
}

// dropDeadLinks clears re-discovered link hints that fail a live probe, so a
// gap-filled link carries the same reachability guarantee as one written by
// the verification stage. Without a prober no hint is trusted.
func (s *Syncer) dropDeadLinks(ctx context.Context, candidate *model.CandidateProfile) {
	for _, kind := range model.AllLinkKinds {
		url := candidate.Links.Get(kind)
		if url == "" {
			continue
		}
		if s.prober == nil {
			candidate.Links.Set(kind, "")
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		alive, status, err := s.prober.Probe(pctx, url)
		cancel()
		if err != nil || !alive {
			candidate.Links.Set(kind, "")
			zap.L().Debug("sync dropped unreachable link hint",
				zap.String("kind", string(kind)),
				zap.String("url", url),
				zap.Int("status", status))
		}
	}
}

// SyncBatch processes subjects sequentially with a fixed delay between them
// and reports per-subject outcomes plus aggregate counts.
func (s *Syncer) SyncBatch(ctx context.Context, subjectIDs []string) *model.SyncBatchResult {
	limiter := rate.NewLimiter(rate.Every(s.interSubjectDelay), 1)

	batch := &model.SyncBatchResult{Total: len(subjectIDs)}
	for _, id := range subjectIDs {
		_ = limiter.Wait(ctx)

		res := s.SyncProfile(ctx, id)
		batch.Results = append(batch.Results, res)
		switch res.Outcome {
		case model.SyncEnriched:
			batch.Enriched++
		case model.SyncSkipped:
			batch.Skipped++
		default:
			batch.Failed++
		}
	}
	return batch
}
