// Package pipeline orchestrates the full profile run: discovery,
// verification, enrichment, validation, and the atomic store save, in that
// fixed order.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/creatorindex/profile-cli/internal/discovery"
	"github.com/creatorindex/profile-cli/internal/enrich"
	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/internal/profilestore"
	"github.com/creatorindex/profile-cli/internal/validate"
	"github.com/creatorindex/profile-cli/internal/verify"
)

const (
	// DefaultBatchCap bounds one batch invocation.
	DefaultBatchCap = 20

	defaultInterSubjectDelay = 2 * time.Second
)

// Pipeline wires the five stages together.
type Pipeline struct {
	discoverer *discovery.Discoverer
	verifier   *verify.Verifier
	enricher   *enrich.Enricher
	validator  *validate.Validator
	store      profilestore.Store

	batchCap          int
	interSubjectDelay time.Duration
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithBatchCap overrides the batch size cap.
func WithBatchCap(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchCap = n
		}
	}
}

// WithInterSubjectDelay sets the fixed pause between batch subjects. Batches
// run sequentially on purpose: several providers tolerate only a handful of
// calls per minute.
func WithInterSubjectDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.interSubjectDelay = d
		}
	}
}

// New creates a Pipeline with all stage dependencies.
func New(
	d *discovery.Discoverer,
	v *verify.Verifier,
	e *enrich.Enricher,
	val *validate.Validator,
	store profilestore.Store,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		discoverer:        d,
		verifier:          v,
		enricher:          e,
		validator:         val,
		store:             store,
		batchCap:          DefaultBatchCap,
		interSubjectDelay: defaultInterSubjectDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full pipeline for one subject. Stage failures other than
// persistence degrade inside their stage; a failed save is the one error
// class surfaced to the caller, inside the result.
func (p *Pipeline) Run(ctx context.Context, name string, trigger model.Trigger, createdBy string) *model.PipelineResult {
	return p.run(ctx, "", name, trigger, createdBy)
}

// Refresh re-runs the pipeline for a known subject. The save is pinned to
// subjectID: research providers sometimes return a variant of the display
// name (honorifics, middle names), and deriving the id from that variant
// would version a brand-new subject while the claimed one sat unchanged.
func (p *Pipeline) Refresh(ctx context.Context, subjectID, name string, trigger model.Trigger, createdBy string) *model.PipelineResult {
	return p.run(ctx, subjectID, name, trigger, createdBy)
}

func (p *Pipeline) run(ctx context.Context, subjectID, name string, trigger model.Trigger, createdBy string) *model.PipelineResult {
	name = strings.TrimSpace(name)
	result := &model.PipelineResult{Name: name}
	if name == "" {
		result.Message = "empty subject name"
		return result
	}

	log := zap.L().With(zap.String("subject", name))
	log.Info("pipeline starting")

	trackStage := func(info *model.StageInfo, fn func() (string, error)) bool {
		start := time.Now()
		detail, err := fn()
		info.DurationMs = time.Since(start).Milliseconds()
		info.Detail = detail
		switch {
		case err != nil && ctx.Err() != nil:
			info.Status = model.StageCancelled
			log.Warn("stage cancelled", zap.Error(err))
			return false
		case err != nil:
			info.Status = model.StageFailed
			info.Detail = err.Error()
			log.Error("stage failed", zap.Error(err))
			return false
		default:
			info.Status = model.StageComplete
			return true
		}
	}

	var candidate *model.CandidateProfile
	ok := trackStage(&result.Stages.Discovery, func() (string, error) {
		var err error
		candidate, err = p.discoverer.Discover(ctx, name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d sources, %d notes", len(candidate.Sources), len(candidate.Notes)), nil
	})
	if !ok {
		result.Message = "discovery failed: " + result.Stages.Discovery.Detail
		return result
	}
	discoveredAt := time.Now().UTC()

	var verified *model.VerifiedProfile
	trackStage(&result.Stages.Verification, func() (string, error) {
		verified = p.verifier.Verify(ctx, candidate)
		return fmt.Sprintf("%d/%d links valid",
			verified.Verification.LinksValid, verified.Verification.LinksChecked), nil
	})
	verifiedAt := time.Now().UTC()

	var enriched *model.EnrichedProfile
	trackStage(&result.Stages.Enrichment, func() (string, error) {
		enriched = p.enricher.Enrich(ctx, verified)
		return fmt.Sprintf("score %d (%s)", enriched.ConfidenceScore, enriched.Confidence), nil
	})
	enriched.Pipeline.DiscoveredAt = discoveredAt
	enriched.Pipeline.VerifiedAt = verifiedAt

	trackStage(&result.Stages.Validation, func() (string, error) {
		result.Flags = p.validator.Validate(ctx, enriched)
		return fmt.Sprintf("%d flags", len(result.Flags)), nil
	})

	ok = trackStage(&result.Stages.Store, func() (string, error) {
		saved, err := p.store.SaveProfile(ctx, profilestore.SaveRequest{
			Profile:   enriched,
			Flags:     result.Flags,
			Trigger:   trigger,
			CreatedBy: createdBy,
			SubjectID: subjectID,
		})
		if err != nil {
			return "", err
		}
		result.Storage = saved
		result.SubjectID = saved.SubjectID
		return saved.VersionID, nil
	})
	if !ok {
		result.Profile = enriched
		result.Message = "save failed: " + result.Stages.Store.Detail
		return result
	}

	result.Success = true
	result.Profile = enriched
	log.Info("pipeline complete",
		zap.String("subject_id", result.SubjectID),
		zap.Int("version", result.Storage.Version),
		zap.Int("score", enriched.ConfidenceScore),
		zap.Int("flags", len(result.Flags)))
	return result
}

// RunBatch runs up to the batch cap of subjects sequentially with a fixed
// delay between them. A failed entry is reported inline and never aborts its
// siblings.
func (p *Pipeline) RunBatch(ctx context.Context, names []string, trigger model.Trigger, createdBy string) *model.BatchResult {
	if len(names) > p.batchCap {
		zap.L().Warn("batch truncated to cap",
			zap.Int("requested", len(names)), zap.Int("cap", p.batchCap))
		names = names[:p.batchCap]
	}

	// The limiter starts with one token, so the first subject runs
	// immediately and each following one waits out the delay.
	limiter := rate.NewLimiter(rate.Every(p.interSubjectDelay), 1)

	batch := &model.BatchResult{Total: len(names)}
	for _, name := range names {
		_ = limiter.Wait(ctx)

		res := p.Run(ctx, name, trigger, createdBy)
		batch.Results = append(batch.Results, *res)
		switch {
		case res.Success && len(res.Flags) > 0:
			batch.Successful++
			batch.Flagged++
		case res.Success:
			batch.Successful++
		default:
			batch.Failed++
		}
	}
	return batch
}
