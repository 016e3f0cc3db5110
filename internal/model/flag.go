package model

import "time"

// FlagType classifies a data-quality concern.
type FlagType string

const (
	FlagMissingData   FlagType = "missing_data"
	FlagInvalidLink   FlagType = "invalid_link"
	FlagDataConflict  FlagType = "data_conflict"
	FlagLowConfidence FlagType = "low_confidence"
)

// Severity ranks how urgently a reviewer should look at a flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ProfileFlag is a persisted, human-reviewable annotation of a data-quality
// concern. Flags never block persistence; they are append-only until a
// reviewer resolves them.
type ProfileFlag struct {
	ID         string     `json:"id"`
	SubjectID  string     `json:"subject_id,omitempty"`
	Type       FlagType   `json:"type"`
	Severity   Severity   `json:"severity"`
	Field      string     `json:"field,omitempty"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
}

// Resolved reports whether the flag has been resolved by a reviewer.
func (f ProfileFlag) Resolved() bool {
	return f.ResolvedAt != nil
}
