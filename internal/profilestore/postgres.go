package profilestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by
// pgxmock.PgxPoolIface in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id                   TEXT PRIMARY KEY,
	data                 JSONB NOT NULL,
	version              INTEGER NOT NULL,
	confidence           TEXT NOT NULL,
	confidence_score     INTEGER NOT NULL,
	active_flag_count    INTEGER NOT NULL DEFAULT 0,
	has_unresolved_flags BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_versions (
	version_id       TEXT PRIMARY KEY,
	subject_id       TEXT NOT NULL REFERENCES subjects(id),
	version          INTEGER NOT NULL,
	save_trigger     TEXT NOT NULL,
	data             JSONB NOT NULL,
	changes          JSONB,
	confidence       TEXT NOT NULL,
	confidence_score INTEGER NOT NULL,
	data_sources     JSONB,
	flag_count       INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
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
	created_at  TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ,
	resolved_by TEXT
);

CREATE TABLE IF NOT EXISTS refresh_schedules (
	subject_id     TEXT PRIMARY KEY REFERENCES subjects(id),
	last_refreshed TIMESTAMPTZ NOT NULL,
	next_refresh   TIMESTAMPTZ NOT NULL,
	refresh_count  INTEGER NOT NULL DEFAULT 0,
	priority       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'scheduled'
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	id         TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	lookup_key TEXT NOT NULL,
	payload    TEXT NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	UNIQUE(provider, lookup_key)
);

CREATE INDEX IF NOT EXISTS idx_versions_subject ON profile_versions(subject_id, version);
CREATE INDEX IF NOT EXISTS idx_flags_subject ON profile_flags(subject_id);
CREATE INDEX IF NOT EXISTS idx_schedules_due ON refresh_schedules(status, next_refresh);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON lookup_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, req SaveRequest) (*model.SaveResult, error) {
	if req.Profile == nil {
		return nil, eris.New("postgres: save: nil profile")
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
		return nil, eris.New("postgres: save: profile has no name")
	}
	now := time.Now().UTC()

	dataJSON, err := json.Marshal(req.Profile)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal profile")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin save tx")
	}
	defer tx.Rollback(ctx)

	var curVersion int
	var prevJSON []byte
	var prev *model.EnrichedProfile
	row := tx.QueryRow(ctx, `SELECT version, data FROM subjects WHERE id = $1 FOR UPDATE`, subjectID)
	switch err := row.Scan(&curVersion, &prevJSON); {
	case errors.Is(err, pgx.ErrNoRows):
		curVersion = 0
	case err != nil:
		return nil, eris.Wrap(err, "postgres: read current version")
	default:
		var p model.EnrichedProfile
		if err := json.Unmarshal(prevJSON, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal previous snapshot")
		}
		prev = &p
	}

	newVersion := curVersion + 1
	changes := ComputeChanges(prev, req.Profile)

	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal changes")
	}
	sourcesJSON, err := json.Marshal(req.Profile.DataSources)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal data sources")
	}

	flagCount := len(req.Flags)
	_, err = tx.Exec(ctx, `
		INSERT INTO subjects (id, data, version, confidence, confidence_score, active_flag_count, has_unresolved_flags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			confidence = excluded.confidence,
			confidence_score = excluded.confidence_score,
			active_flag_count = subjects.active_flag_count + $6,
			has_unresolved_flags = subjects.active_flag_count + $6 > 0,
			updated_at = excluded.updated_at`,
		subjectID, dataJSON, newVersion,
		string(req.Profile.Confidence), req.Profile.ConfidenceScore,
		flagCount, flagCount > 0, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert subject")
	}

	versionID := model.VersionID(subjectID, newVersion)
	_, err = tx.Exec(ctx, `
		INSERT INTO profile_versions (version_id, subject_id, version, save_trigger, data, changes, confidence, confidence_score, data_sources, flag_count, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		versionID, subjectID, newVersion, string(req.Trigger),
		dataJSON, changesJSON,
		string(req.Profile.Confidence), req.Profile.ConfidenceScore,
		sourcesJSON, flagCount, now, req.CreatedBy,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert version")
	}

	for _, f := range req.Flags {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO profile_flags (id, subject_id, type, severity, field, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			f.ID, subjectID, string(f.Type), string(f.Severity), f.Field, f.Message, now,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: insert flag")
		}
	}

	score := req.Profile.ConfidenceScore
	nextRefresh := now.Add(model.CadenceFor(score))
	priority := model.PriorityFor(score)
	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_schedules (subject_id, last_refreshed, next_refresh, refresh_count, priority, status)
		VALUES ($1, $2, $3, 1, $4, 'scheduled')
		ON CONFLICT(subject_id) DO UPDATE SET
			last_refreshed = excluded.last_refreshed,
			next_refresh = excluded.next_refresh,
			refresh_count = refresh_schedules.refresh_count + 1,
			priority = excluded.priority,
			status = 'scheduled'`,
		subjectID, now, nextRefresh, string(priority),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert schedule")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit save tx")
	}

	record, err := s.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read back subject")
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

func (s *PostgresStore) GetSubject(ctx context.Context, subjectID string) (*model.SubjectRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, data, version, confidence, confidence_score, active_flag_count, has_unresolved_flags, created_at, updated_at
		FROM subjects WHERE id = $1`, subjectID)
	return scanSubjectPg(row)
}

func (s *PostgresStore) GetVersionHistory(ctx context.Context, subjectID string) ([]model.ProfileVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version_id, subject_id, version, save_trigger, data, changes, confidence, confidence_score, data_sources, flag_count, created_at, created_by
		FROM profile_versions WHERE subject_id = $1 ORDER BY version DESC`, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query version history")
	}
	defer rows.Close()

	var versions []model.ProfileVersion
	for rows.Next() {
		v, err := scanVersionPg(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, eris.Wrap(rows.Err(), "postgres: iterate versions")
}

func (s *PostgresStore) GetVersion(ctx context.Context, subjectID string, version int) (*model.ProfileVersion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT version_id, subject_id, version, save_trigger, data, changes, confidence, confidence_score, data_sources, flag_count, created_at, created_by
		FROM profile_versions WHERE subject_id = $1 AND version = $2`, subjectID, version)
	v, err := scanVersionPg(row)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *PostgresStore) RollbackToVersion(ctx context.Context, subjectID string, targetVersion int, createdBy string) (*model.SaveResult, error) {
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

func (s *PostgresStore) ListFlagged(ctx context.Context, filter FlaggedFilter) ([]model.SubjectRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, data, version, confidence, confidence_score, active_flag_count, has_unresolved_flags, created_at, updated_at
		FROM subjects WHERE has_unresolved_flags
		ORDER BY active_flag_count DESC, updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query flagged subjects")
	}
	defer rows.Close()

	var records []model.SubjectRecord
	for rows.Next() {
		r, err := scanSubjectPg(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate flagged subjects")
}

func (s *PostgresStore) ListFlags(ctx context.Context, subjectID string, unresolvedOnly bool) ([]model.ProfileFlag, error) {
	query := `
		SELECT id, subject_id, type, severity, field, message, created_at, resolved_at, resolved_by
		FROM profile_flags WHERE subject_id = $1`
	if unresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query flags")
	}
	defer rows.Close()

	var flags []model.ProfileFlag
	for rows.Next() {
		var f model.ProfileFlag
		var field, resolvedBy *string
		var resolvedAt *time.Time
		if err := rows.Scan(&f.ID, &f.SubjectID, &f.Type, &f.Severity, &field, &f.Message, &f.CreatedAt, &resolvedAt, &resolvedBy); err != nil {
			return nil, eris.Wrap(err, "postgres: scan flag")
		}
		if field != nil {
			f.Field = *field
		}
		if resolvedBy != nil {
			f.ResolvedBy = *resolvedBy
		}
		f.ResolvedAt = resolvedAt
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "postgres: iterate flags")
}

func (s *PostgresStore) ResolveFlag(ctx context.Context, subjectID, flagID, resolvedBy string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin resolve tx")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE profile_flags SET resolved_at = $1, resolved_by = $2
		WHERE id = $3 AND subject_id = $4 AND resolved_at IS NULL`,
		time.Now().UTC(), resolvedBy, flagID, subjectID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: resolve flag")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "flag %s for subject %s", flagID, subjectID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE subjects SET
			active_flag_count = GREATEST(active_flag_count - 1, 0),
			has_unresolved_flags = active_flag_count > 1,
			updated_at = $1
		WHERE id = $2`,
		time.Now().UTC(), subjectID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: decrement flag counter")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit resolve tx")
}

func (s *PostgresStore) GetCachedLookup(ctx context.Context, provider, key string) ([]byte, error) {
	var payload string
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM lookup_cache
		WHERE provider = $1 AND lookup_key = $2 AND expires_at > now()
		ORDER BY cached_at DESC LIMIT 1`,
		provider, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCacheEntry
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached lookup")
	}
	return []byte(payload), nil
}

func (s *PostgresStore) SetCachedLookup(ctx context.Context, provider, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lookup_cache (id, provider, lookup_key, payload, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT(provider, lookup_key) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		uuid.New().String(), provider, key, string(payload), now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached lookup")
}

func (s *PostgresStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lookup_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired lookups")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.RefreshSchedule, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT subject_id, last_refreshed, next_refresh, refresh_count, priority, status
		FROM refresh_schedules
		WHERE status = 'scheduled' AND next_refresh <= $1
		ORDER BY next_refresh ASC LIMIT $2`, now.UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query due schedules")
	}
	defer rows.Close()

	var schedules []model.RefreshSchedule
	for rows.Next() {
		var sc model.RefreshSchedule
		if err := rows.Scan(&sc.SubjectID, &sc.LastRefreshed, &sc.NextRefresh, &sc.RefreshCount, &sc.Priority, &sc.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan schedule")
		}
		schedules = append(schedules, sc)
	}
	return schedules, eris.Wrap(rows.Err(), "postgres: iterate schedules")
}

func (s *PostgresStore) ClaimSchedule(ctx context.Context, subjectID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE refresh_schedules SET status = 'processing'
		WHERE subject_id = $1 AND status = 'scheduled'`, subjectID)
	if err != nil {
		return false, eris.Wrap(err, "postgres: claim schedule")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ReleaseSchedule(ctx context.Context, subjectID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_schedules SET status = 'scheduled'
		WHERE subject_id = $1 AND status = 'processing'`, subjectID)
	return eris.Wrap(err, "postgres: release schedule")
}

// Stats aggregates the counters the health monitor watches.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN confidence = 'high' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN confidence = 'medium' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN confidence = 'low' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(active_flag_count), 0)
		FROM subjects`).Scan(&st.Subjects, &st.HighConfidence, &st.MediumConfidence,
		&st.LowConfidence, &st.UnresolvedFlags)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: subject stats")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_schedules
		WHERE status = 'scheduled' AND next_refresh <= $1`, now.UTC()).Scan(&st.OverdueRefreshes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: overdue stats")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_schedules WHERE status = 'processing'`).Scan(&st.ProcessingClaims)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: processing stats")
	}

	return &st, nil
}

// --- scan helpers ---

func scanSubjectPg(row pgx.Row) (*model.SubjectRecord, error) {
	var r model.SubjectRecord
	var dataJSON []byte
	err := row.Scan(&r.ID, &dataJSON, &r.Version, &r.Confidence, &r.ConfidenceScore,
		&r.ActiveFlagCount, &r.HasUnresolvedFlags, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan subject")
	}
	if err := json.Unmarshal(dataJSON, &r.Data); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal subject data")
	}
	return &r, nil
}

func scanVersionPg(row pgx.Row) (*model.ProfileVersion, error) {
	var v model.ProfileVersion
	var dataJSON []byte
	var changesJSON, sourcesJSON []byte
	err := row.Scan(&v.VersionID, &v.SubjectID, &v.Version, &v.Trigger, &dataJSON,
		&changesJSON, &v.Confidence, &v.ConfidenceScore, &sourcesJSON, &v.FlagCount,
		&v.CreatedAt, &v.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan version")
	}
	if err := json.Unmarshal(dataJSON, &v.Data); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal version data")
	}
	if len(changesJSON) > 0 {
		if err := json.Unmarshal(changesJSON, &v.Changes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal version changes")
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &v.DataSources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal version sources")
		}
	}
	return &v, nil
}
