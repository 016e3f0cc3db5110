package model

import (
	"fmt"
	"time"
)

// Trigger identifies what caused a new version to be written.
type Trigger string

const (
	TriggerInitialCreation  Trigger = "initial_creation"
	TriggerManualUpdate     Trigger = "manual_update"
	TriggerScheduledRefresh Trigger = "scheduled_refresh"
	TriggerSync             Trigger = "sync"
)

// FieldChange records one watched field changing between versions.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// ProfileVersion is an immutable snapshot of a subject's record at save time.
// Versions are never edited or deleted; rollback writes a new version whose
// data equals the target's.
type ProfileVersion struct {
	VersionID       string          `json:"version_id"`
	SubjectID       string          `json:"subject_id"`
	Version         int             `json:"version"`
	Trigger         Trigger         `json:"trigger"`
	Data            EnrichedProfile `json:"data"`
	Changes         []FieldChange   `json:"changes,omitempty"`
	Confidence      Confidence      `json:"confidence"`
	ConfidenceScore int             `json:"confidence_score"`
	DataSources     []string        `json:"data_sources,omitempty"`
	FlagCount       int             `json:"flag_count"`
	CreatedAt       time.Time       `json:"created_at"`
	CreatedBy       string          `json:"created_by"`
}

// VersionID builds the canonical version identifier for a subject version.
func VersionID(subjectID string, version int) string {
	return fmt.Sprintf("%s_v%d", subjectID, version)
}

// SubjectRecord is the live stored record for one subject. Its Data is always
// identical to the data of the subject's highest version.
type SubjectRecord struct {
	ID                 string          `json:"id"`
	Data               EnrichedProfile `json:"data"`
	Version            int             `json:"version"`
	Confidence         Confidence      `json:"confidence"`
	ConfidenceScore    int             `json:"confidence_score"`
	ActiveFlagCount    int             `json:"active_flag_count"`
	HasUnresolvedFlags bool            `json:"has_unresolved_flags"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
