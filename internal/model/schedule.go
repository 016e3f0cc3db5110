package model

import "time"

// Priority orders subjects within the refresh queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// ScheduleStatus tracks a schedule through a refresh run.
type ScheduleStatus string

const (
	ScheduleScheduled  ScheduleStatus = "scheduled"
	ScheduleProcessing ScheduleStatus = "processing"
)

// Refresh cadences per confidence bucket. Low-confidence records are
// re-checked most often.
const (
	CadenceHighConfidence   = 30 * 24 * time.Hour
	CadenceMediumConfidence = 14 * 24 * time.Hour
	CadenceLowConfidence    = 7 * 24 * time.Hour
)

// RefreshSchedule drives the background refresh of one subject. NextRefresh
// is strictly increasing across updates; its cadence is a deterministic
// function of the subject's last confidence score.
type RefreshSchedule struct {
	SubjectID     string         `json:"subject_id"`
	LastRefreshed time.Time      `json:"last_refreshed"`
	NextRefresh   time.Time      `json:"next_refresh"`
	RefreshCount  int            `json:"refresh_count"`
	Priority      Priority       `json:"priority"`
	Status        ScheduleStatus `json:"status"`
}

// CadenceFor returns the refresh interval for a confidence score.
func CadenceFor(score int) time.Duration {
	switch {
	case score >= 70:
		return CadenceHighConfidence
	case score >= 40:
		return CadenceMediumConfidence
	default:
		return CadenceLowConfidence
	}
}

// PriorityFor maps a confidence score to a refresh priority, inverse to
// confidence: the less we trust a record, the sooner we want eyes on it.
func PriorityFor(score int) Priority {
	switch {
	case score >= 70:
		return PriorityLow
	case score >= 40:
		return PriorityNormal
	default:
		return PriorityHigh
	}
}
