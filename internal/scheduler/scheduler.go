// Package scheduler selects due subjects and re-runs the pipeline for them.
// A subject is read-then-claimed so two concurrent refresh runs never process
// it twice; a failed refresh releases the claim with the schedule unchanged.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/internal/profilestore"
)

const (
	defaultBatchSize         = 10
	defaultInterSubjectDelay = 2 * time.Second
)

// Runner executes one pipeline run for an already known subject; satisfied
// by pipeline.Pipeline. The subject id pins the save so a refresh that
// re-discovers a variant of the display name still versions the claimed
// record.
type Runner interface {
	Refresh(ctx context.Context, subjectID, name string, trigger model.Trigger, createdBy string) *model.PipelineResult
}

// Report summarizes one refresh sweep.
type Report struct {
	Due       int                    `json:"due"`
	Claimed   int                    `json:"claimed"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Results   []model.PipelineResult `json:"results,omitempty"`
}

// Scheduler drives refresh sweeps.
type Scheduler struct {
	store             profilestore.Store
	runner            Runner
	batchSize         int
	interSubjectDelay time.Duration
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithBatchSize caps how many due subjects one sweep processes.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithInterSubjectDelay sets the pause between refreshed subjects.
func WithInterSubjectDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.interSubjectDelay = d
		}
	}
}

// New creates a Scheduler.
func New(store profilestore.Store, runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:             store,
		runner:            runner,
		batchSize:         defaultBatchSize,
		interSubjectDelay: defaultInterSubjectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunDue processes the due subjects, ordered by next_refresh ascending, up to
// the batch size. The pipeline's save writes the next schedule on success; on
// failure the claim is released with nextRefresh and refreshCount unchanged.
func (s *Scheduler) RunDue(ctx context.Context) (*Report, error) {
	due, err := s.store.DueSchedules(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return nil, err
	}

	report := &Report{Due: len(due)}
	log := zap.L()
	if len(due) == 0 {
		log.Info("refresh sweep: nothing due")
		return report, nil
	}

	for i, sched := range due {
		if i > 0 {
			select {
			case <-time.After(s.interSubjectDelay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}

		claimed, err := s.store.ClaimSchedule(ctx, sched.SubjectID)
		if err != nil {
			log.Error("claim failed", zap.String("subject_id", sched.SubjectID), zap.Error(err))
			report.Failed++
			continue
		}
		if !claimed {
			log.Debug("subject claimed elsewhere", zap.String("subject_id", sched.SubjectID))
			continue
		}
		report.Claimed++

		record, err := s.store.GetSubject(ctx, sched.SubjectID)
		if err != nil {
			log.Error("refresh load failed", zap.String("subject_id", sched.SubjectID), zap.Error(err))
			s.release(ctx, sched.SubjectID)
			report.Failed++
			continue
		}

		name := record.Data.DisplayName
		if name == "" {
			name = record.Data.Name
		}
		res := s.runner.Refresh(ctx, sched.SubjectID, name, model.TriggerScheduledRefresh, "scheduler")
		report.Results = append(report.Results, *res)
		if res.Success {
			report.Succeeded++
		} else {
			// The save never happened, so the claim must be handed back or
			// the subject would be stuck in processing forever.
			s.release(ctx, sched.SubjectID)
			report.Failed++
		}
	}

	log.Info("refresh sweep complete",
		zap.Int("due", report.Due),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Scheduler) release(ctx context.Context, subjectID string) {
	if err := s.store.ReleaseSchedule(ctx, subjectID); err != nil {
		zap.L().Error("release failed", zap.String("subject_id", subjectID), zap.Error(err))
	}
}
