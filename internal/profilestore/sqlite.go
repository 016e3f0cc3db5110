package profilestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/creatorindex/profile-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id                   TEXT PRIMARY KEY,
	data                 TEXT NOT NULL,
	version              INTEGER NOT NULL,
	confidence           TEXT NOT NULL,
	confidence_score     INTEGER NOT NULL,
	active_flag_count    INTEGER NOT NULL DEFAULT 0,
	has_unresolved_flags INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_versions (
	version_id       TEXT PRIMARY KEY,
	subject_id       TEXT NOT NULL REFERENCES subjects(id),
	version          INTEGER NOT NULL,
	save_trigger     TEXT NOT NULL,
	data             TEXT NOT NULL,
	changes          TEXT,
	confidence       TEXT NOT NULL,
	confidence_score INTEGER NOT NULL,
	data_sources     TEXT,
	flag_count       INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	created_by       TEXT NOT NULL,
	UNIQUE(subject_id, version)
);

CREATE TABLE IF NOT EXISTS profile_flags (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL REFERENCES subjects(id),
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	field       TEXT,
	message     TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	resolved_at DATETIME,
	resolved_by TEXT
);

CREATE TABLE IF NOT EXISTS refresh_schedules (
	subject_id     TEXT PRIMARY KEY REFERENCES subjects(id),
	last_refreshed DATETIME NOT NULL,
	next_refresh   DATETIME NOT NULL,
	refresh_count  INTEGER NOT NULL DEFAULT 0,
	priority       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'scheduled'
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	id         TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	lookup_key TEXT NOT NULL,
	payload    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	UNIQUE(provider, lookup_key)
);

CREATE INDEX IF NOT EXISTS idx_versions_subject ON profile_versions(subject_id, version);
CREATE INDEX IF NOT EXISTS idx_flags_subject ON profile_flags(subject_id);
CREATE INDEX IF NOT EXISTS idx_flags_unresolved ON profile_flags(subject_id) WHERE resolved_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_schedules_due ON refresh_schedules(status, next_refresh);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON lookup_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, req SaveRequest) (*model.SaveResult, error) {
	if req.Profile == nil {
		return nil, eris.New("sqlite: save: nil profile")
	}

	subjectID := req.SubjectID
	if subjectID == "" {
		display := req.Profile.DisplayName
		if display == "" {
			display = req.Profile.Name
		}
		subjectID = model.Slug(display)
	}
	if subjectID == "" {
		return nil, eris.New("sqlite: save: profile has no name")
	}
	now := time.Now().UTC()

	dataJSON, err := json.Marshal(req.Profile)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal profile")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin save tx")
	}
	defer tx.Rollback()

	// Read the current version inside the transaction so two concurrent
	// saves for the same subject cannot produce the same version number.
	var curVersion int
	var prevJSON string
	var prev *model.EnrichedProfile
	row := tx.QueryRowContext(ctx, `SELECT version, data FROM subjects WHERE id = ?`, subjectID)
	switch err := row.Scan(&curVersion, &prevJSON); {
	case errors.Is(err, sql.ErrNoRows):
		curVersion = 0
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: read current version")
	default:
		var p model.EnrichedProfile
		if err := json.Unmarshal([]byte(prevJSON), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal previous snapshot")
		}
		prev = &p
	}

	newVersion := curVersion + 1
	changes := ComputeChanges(prev, req.Profile)

	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal changes")
	}
	sourcesJSON, err := json.Marshal(req.Profile.DataSources)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal data sources")
	}

	flagCount := len(req.Flags)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO subjects (id, data, version, confidence, confidence_score, active_flag_count, has_unresolved_flags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			confidence = excluded.confidence,
			confidence_score = excluded.confidence_score,
			active_flag_count = subjects.active_flag_count + ?,
			has_unresolved_flags = CASE WHEN subjects.active_flag_count + ? > 0 THEN 1 ELSE 0 END,
			updated_at = excluded.updated_at`,
		subjectID, string(dataJSON), newVersion,
		string(req.Profile.Confidence), req.Profile.ConfidenceScore,
		flagCount, boolToInt(flagCount > 0), now, now,
		flagCount, flagCount,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert subject")
	}

	versionID := model.VersionID(subjectID, newVersion)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO profile_versions (version_id, subject_id, version, save_trigger, data, changes, confidence, confidence_score, data_sources, flag_count, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		versionID, subjectID, newVersion, string(req.Trigger),
		string(dataJSON), string(changesJSON),
		string(req.Profile.Confidence), req.Profile.ConfidenceScore,
		string(sourcesJSON), flagCount, now, req.CreatedBy,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert version")
	}

	for _, f := range req.Flags {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO profile_flags (id, subject_id, type, severity, field, message, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, subjectID, string(f.Type), string(f.Severity), f.Field, f.Message, now,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: insert flag")
		}
	}

	score := req.Profile.ConfidenceScore
	nextRefresh := now.Add(model.CadenceFor(score))
	priority := model.PriorityFor(score)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_schedules (subject_id, last_refreshed, next_refresh, refresh_count, priority, status)
		VALUES (?, ?, ?, 1, ?, 'scheduled')
		ON CONFLICT(subject_id) DO UPDATE SET
			last_refreshed = excluded.last_refreshed,
			next_refresh = excluded.next_refresh,
			refresh_count = refresh_schedules.refresh_count + 1,
			priority = excluded.priority,
			status = 'scheduled'`,
		subjectID, now, nextRefresh, string(priority),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert schedule")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit save tx")
	}

	record, err := s.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read back subject")
	}

	return &model.SaveResult{
		SubjectID:   subjectID,
		Version:     newVersion,
		VersionID:   versionID,
		Changes:     changes,
		FlagsSaved:  flagCount,
		NextRefresh: nextRefresh,
		Priority:    priority,
		Record:      record,
		Schedule: model.RefreshSchedule{
			SubjectID:     subjectID,
			LastRefreshed: now,
			NextRefresh:   nextRefresh,
			Priority:      priority,
			Status:        model.ScheduleScheduled,
		},
	}, nil
}

func (s *SQLiteStore) GetSubject(ctx context.Context, subjectID string) (*model.SubjectRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, version, confidence, confidence_score, active_flag_count, has_unresolved_flags, created_at, updated_at
		FROM subjects WHERE id = ?`, subjectID)
	return scanSubject(row)
}

func (s *SQLiteStore) GetVersionHistory(ctx context.Context, subjectID string) ([]model.ProfileVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, subject_id, version, save_trigger, data, changes, confidence, confidence_score, data_sources, flag_count, created_at, created_by
		FROM profile_versions WHERE subject_id = ? ORDER BY version DESC`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query version history")
	}
	defer rows.Close()

	var versions []model.ProfileVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, eris.Wrap(rows.Err(), "sqlite: iterate versions")
}

func (s *SQLiteStore) GetVersion(ctx context.Context, subjectID string, version int) (*model.ProfileVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version_id, subject_id, version, save_trigger, data, changes, confidence, confidence_score, data_sources, flag_count, created_at, created_by
		FROM profile_versions WHERE subject_id = ? AND version = ?`, subjectID, version)
	return scanVersion(row)
}

// RollbackToVersion restores a past snapshot as a brand-new version. History
// is never edited.
func (s *SQLiteStore) RollbackToVersion(ctx context.Context, subjectID string, targetVersion int, createdBy string) (*model.SaveResult, error) {
	target, err := s.GetVersion(ctx, subjectID, targetVersion)
	if err != nil {
		return nil, err
	}

	return s.SaveProfile(ctx, SaveRequest{
		Profile:   &target.Data,
		Trigger:   model.TriggerManualUpdate,
		CreatedBy: createdBy,
	})
}

func (s *SQLiteStore) ListFlagged(ctx context.Context, filter FlaggedFilter) ([]model.SubjectRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, version, confidence, confidence_score, active_flag_count, has_unresolved_flags, created_at, updated_at
		FROM subjects WHERE has_unresolved_flags = 1
		ORDER BY active_flag_count DESC, updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query flagged subjects")
	}
	defer rows.Close()

	var records []model.SubjectRecord
	for rows.Next() {
		r, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate flagged subjects")
}

func (s *SQLiteStore) ListFlags(ctx context.Context, subjectID string, unresolvedOnly bool) ([]model.ProfileFlag, error) {
	query := `
		SELECT id, subject_id, type, severity, field, message, created_at, resolved_at, resolved_by
		FROM profile_flags WHERE subject_id = ?`
	if unresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query flags")
	}
	defer rows.Close()

	var flags []model.ProfileFlag
	for rows.Next() {
		var f model.ProfileFlag
		var field, resolvedBy sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.SubjectID, &f.Type, &f.Severity, &field, &f.Message, &f.CreatedAt, &resolvedAt, &resolvedBy); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan flag")
		}
		f.Field = field.String
		f.ResolvedBy = resolvedBy.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			f.ResolvedAt = &t
		}
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "sqlite: iterate flags")
}

func (s *SQLiteStore) ResolveFlag(ctx context.Context, subjectID, flagID, resolvedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin resolve tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE profile_flags SET resolved_at = ?, resolved_by = ?
		WHERE id = ? AND subject_id = ? AND resolved_at IS NULL`,
		time.Now().UTC(), resolvedBy, flagID, subjectID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: resolve flag")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: resolve flag rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "flag %s for subject %s", flagID, subjectID)
	}

	// The unresolved marker clears only when the counter reaches zero.
	_, err = tx.ExecContext(ctx, `
		UPDATE subjects SET
			active_flag_count = CASE WHEN active_flag_count > 0 THEN active_flag_count - 1 ELSE 0 END,
			has_unresolved_flags = CASE WHEN active_flag_count > 1 THEN 1 ELSE 0 END,
			updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), subjectID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: decrement flag counter")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit resolve tx")
}

func (s *SQLiteStore) GetCachedLookup(ctx context.Context, provider, key string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM lookup_cache
		WHERE provider = ? AND lookup_key = ? AND expires_at > ?
		ORDER BY cached_at DESC LIMIT 1`,
		provider, key, time.Now().UTC(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCacheEntry
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached lookup")
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) SetCachedLookup(ctx context.Context, provider, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (id, provider, lookup_key, payload, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, lookup_key) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		uuid.New().String(), provider, key, string(payload), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached lookup")
}

func (s *SQLiteStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookup_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired lookups")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expired lookups rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.RefreshSchedule, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject_id, last_refreshed, next_refresh, refresh_count, priority, status
		FROM refresh_schedules
		WHERE status = 'scheduled' AND next_refresh <= ?
		ORDER BY next_refresh ASC LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query due schedules")
	}
	defer rows.Close()

	var schedules []model.RefreshSchedule
	for rows.Next() {
		var sc model.RefreshSchedule
		if err := rows.Scan(&sc.SubjectID, &sc.LastRefreshed, &sc.NextRefresh, &sc.RefreshCount, &sc.Priority, &sc.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan schedule")
		}
		schedules = append(schedules, sc)
	}
	return schedules, eris.Wrap(rows.Err(), "sqlite: iterate schedules")
}

// ClaimSchedule transitions a schedule from scheduled to processing. The
// status predicate makes the claim exclusive under concurrent schedulers.
func (s *SQLiteStore) ClaimSchedule(ctx context.Context, subjectID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_schedules SET status = 'processing'
		WHERE subject_id = ? AND status = 'scheduled'`, subjectID)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: claim schedule")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: claim rows affected")
	}
	return n == 1, nil
}

// ReleaseSchedule returns a claimed schedule to the queue without advancing
// next_refresh or refresh_count, used when a refresh run fails.
func (s *SQLiteStore) ReleaseSchedule(ctx context.Context, subjectID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_schedules SET status = 'scheduled'
		WHERE subject_id = ? AND status = 'processing'`, subjectID)
	return eris.Wrap(err, "sqlite: release schedule")
}

// Stats aggregates the counters the health monitor watches.
func (s *SQLiteStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN confidence = 'high' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN confidence = 'medium' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN confidence = 'low' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(active_flag_count), 0)
		FROM subjects`).Scan(&st.Subjects, &st.HighConfidence, &st.MediumConfidence,
		&st.LowConfidence, &st.UnresolvedFlags)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: subject stats")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM refresh_schedules
		WHERE status = 'scheduled' AND next_refresh <= ?`, now.UTC()).Scan(&st.OverdueRefreshes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: overdue stats")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM refresh_schedules WHERE status = 'processing'`).Scan(&st.ProcessingClaims)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: processing stats")
	}

	return &st, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (*model.SubjectRecord, error) {
	var r model.SubjectRecord
	var dataJSON string
	var hasFlags int
	err := row.Scan(&r.ID, &dataJSON, &r.Version, &r.Confidence, &r.ConfidenceScore,
		&r.ActiveFlagCount, &hasFlags, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "profilestore: scan subject")
	}
	if err := json.Unmarshal([]byte(dataJSON), &r.Data); err != nil {
		return nil, eris.Wrap(err, "profilestore: unmarshal subject data")
	}
	r.HasUnresolvedFlags = hasFlags != 0
	return &r, nil
}

func scanVersion(row rowScanner) (*model.ProfileVersion, error) {
	var v model.ProfileVersion
	var dataJSON string
	var changesJSON, sourcesJSON sql.NullString
	err := row.Scan(&v.VersionID, &v.SubjectID, &v.Version, &v.Trigger, &dataJSON,
		&changesJSON, &v.Confidence, &v.ConfidenceScore, &sourcesJSON, &v.FlagCount,
		&v.CreatedAt, &v.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "profilestore: scan version")
	}
	if err := json.Unmarshal([]byte(dataJSON), &v.Data); err != nil {
		return nil, eris.Wrap(err, "profilestore: unmarshal version data")
	}
	if changesJSON.Valid && changesJSON.String != "" {
		if err := json.Unmarshal([]byte(changesJSON.String), &v.Changes); err != nil {
			return nil, eris.Wrap(err, "profilestore: unmarshal version changes")
		}
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &v.DataSources); err != nil {
			return nil, eris.Wrap(err, "profilestore: unmarshal version sources")
		}
	}
	return &v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
