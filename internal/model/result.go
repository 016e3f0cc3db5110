package model

import "time"

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	StageComplete  StageStatus = "complete"
	StageFailed    StageStatus = "failed"
	StageCancelled StageStatus = "cancelled"
)

// StageInfo reports one stage's execution for the caller-facing stage report.
type StageInfo struct {
	Status     StageStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
}

// StageReport summarizes a full pipeline run stage by stage.
type StageReport struct {
	Discovery    StageInfo `json:"discovery"`
	Verification StageInfo `json:"verification"`
	Enrichment   StageInfo `json:"enrichment"`
	Validation   StageInfo `json:"validation"`
	Store        StageInfo `json:"store"`
}

// SaveResult describes what the profile store wrote for one save.
type SaveResult struct {
	SubjectID   string          `json:"subject_id"`
	Version     int             `json:"version"`
	VersionID   string          `json:"version_id"`
	Changes     []FieldChange   `json:"changes,omitempty"`
	FlagsSaved  int             `json:"flags_saved"`
	NextRefresh time.Time       `json:"next_refresh"`
	Priority    Priority        `json:"priority"`
	Record      *SubjectRecord  `json:"record,omitempty"`
	Schedule    RefreshSchedule `json:"schedule"`
}

// PipelineResult is the caller-facing outcome of one pipeline run.
type PipelineResult struct {
	Success   bool             `json:"success"`
	Name      string           `json:"name"`
	SubjectID string           `json:"subject_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Profile   *EnrichedProfile `json:"profile,omitempty"`
	Storage   *SaveResult      `json:"storage,omitempty"`
	Flags     []ProfileFlag    `json:"flags,omitempty"`
	Stages    StageReport      `json:"stages"`
}

// BatchResult aggregates a batch of pipeline runs.
type BatchResult struct {
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Flagged    int              `json:"flagged"`
	Failed     int              `json:"failed"`
	Results    []PipelineResult `json:"results"`
}

// SyncOutcome is the per-subject outcome of a sync run.
type SyncOutcome string

const (
	SyncEnriched SyncOutcome = "enriched"
	SyncSkipped  SyncOutcome = "skipped"
	SyncFailed   SyncOutcome = "failed"
)

// SyncResult reports one subject's sync.
type SyncResult struct {
	SubjectID    string      `json:"subject_id"`
	Outcome      SyncOutcome `json:"outcome"`
	FieldsFilled []string    `json:"fields_filled,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// SyncBatchResult aggregates a batch sync.
type SyncBatchResult struct {
	Total    int          `json:"total"`
	Enriched int          `json:"enriched"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Results  []SyncResult `json:"results"`
}
