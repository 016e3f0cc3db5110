// Package profilestore persists subjects, immutable version snapshots,
// review flags, refresh schedules, and the provider lookup cache.
package profilestore

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/model"
)

// ErrNotFound is returned when a subject, version, or flag does not exist.
var ErrNotFound = eris.New("profilestore: not found")

// ErrNoCacheEntry is returned when the lookup cache has no live entry.
var ErrNoCacheEntry = eris.New("profilestore: no cache entry")

// SaveRequest bundles the inputs for one logical save: the enriched profile,
// the validator's flags, and provenance.
type SaveRequest struct {
	Profile   *model.EnrichedProfile
	Flags     []model.ProfileFlag
	Trigger   model.Trigger
	CreatedBy string

	// SubjectID pins the save to an existing subject. Refreshes set it so a
	// provider returning a variant of the display name versions the original
	// record instead of minting a new one. Empty means derive from the name.
	SubjectID string
}

// FlaggedFilter selects flagged subjects for the operator view.
type FlaggedFilter struct {
	Limit int
}

// Stats is an aggregate snapshot of the store used by the health monitor.
type Stats struct {
	Subjects         int `json:"subjects"`
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
	UnresolvedFlags  int `json:"unresolved_flags"`
	OverdueRefreshes int `json:"overdue_refreshes"`
	ProcessingClaims int `json:"processing_claims"`
}

// Store defines the persistence interface for the profile pipeline. The four
// writes of a save (subject, version, flags, schedule) are applied atomically
// per subject; writes to different subjects are independent.
type Store interface {
	// Subjects and versions
	SaveProfile(ctx context.Context, req SaveRequest) (*model.SaveResult, error)
	GetSubject(ctx context.Context, subjectID string) (*model.SubjectRecord, error)
	GetVersionHistory(ctx context.Context, subjectID string) ([]model.ProfileVersion, error)
	GetVersion(ctx context.Context, subjectID string, version int) (*model.ProfileVersion, error)
	RollbackToVersion(ctx context.Context, subjectID string, targetVersion int, createdBy string) (*model.SaveResult, error)

	// Flags
	ListFlagged(ctx context.Context, filter FlaggedFilter) ([]model.SubjectRecord, error)
	ListFlags(ctx context.Context, subjectID string, unresolvedOnly bool) ([]model.ProfileFlag, error)
	ResolveFlag(ctx context.Context, subjectID, flagID, resolvedBy string) error

	// Lookup cache
	GetCachedLookup(ctx context.Context, provider, key string) ([]byte, error)
	SetCachedLookup(ctx context.Context, provider, key string, payload []byte, ttl time.Duration) error
	DeleteExpiredLookups(ctx context.Context) (int, error)

	// Refresh schedules
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.RefreshSchedule, error)
	ClaimSchedule(ctx context.Context, subjectID string) (bool, error)
	ReleaseSchedule(ctx context.Context, subjectID string) error

	// Health
	Stats(ctx context.Context, now time.Time) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
