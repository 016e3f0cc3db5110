package profilestore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorindex/profile-cli/internal/model"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// anyArgs builds a WithArgs list matching any value in each of n positions.
// The save path binds timestamps and generated ids, so exact matching would
// make the expectations flaky.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func subjectRow(p *model.EnrichedProfile, version int) *pgxmock.Rows {
	data, _ := json.Marshal(p)
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "data", "version", "confidence", "confidence_score",
		"active_flag_count", "has_unresolved_flags", "created_at", "updated_at",
	}).AddRow("jane-doe", data, version, string(p.Confidence), p.ConfidenceScore, 0, false, now, now)
}

func TestPostgresMigrate(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS subjects").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveProfileFirstVersion(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)
	profile := testProfile(nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT version, data FROM subjects").
		WithArgs("jane-doe").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO subjects").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profile_versions").
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO refresh_schedules").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	// read-back after commit
	mock.ExpectQuery("SELECT id, data, version").
		WithArgs("jane-doe").
		WillReturnRows(subjectRow(profile, 1))

	res, err := st.SaveProfile(context.Background(), SaveRequest{
		Profile:   profile,
		Trigger:   model.TriggerInitialCreation,
		CreatedBy: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, "jane-doe", res.SubjectID)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, "jane-doe_v1", res.VersionID)
	assert.Empty(t, res.Changes)
	assert.Equal(t, model.PriorityLow, res.Priority)
	assert.Equal(t, "Jane Doe", res.Record.Data.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveProfileComputesChanges(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	prev := testProfile(nil)
	prevJSON, err := json.Marshal(prev)
	require.NoError(t, err)

	next := testProfile(func(p *model.EnrichedProfile) {
		p.Bio = "Jane Doe now also teaches timber framing workshops across the Pacific Northwest."
	})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT version, data FROM subjects").
		WithArgs("jane-doe").
		WillReturnRows(pgxmock.NewRows([]string{"version", "data"}).AddRow(1, prevJSON))
	mock.ExpectExec("INSERT INTO subjects").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profile_versions").
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO refresh_schedules").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, data, version").
		WithArgs("jane-doe").
		WillReturnRows(subjectRow(next, 2))

	res, err := st.SaveProfile(context.Background(), SaveRequest{
		Profile:   next,
		Trigger:   model.TriggerScheduledRefresh,
		CreatedBy: "scheduler",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Version)
	fields := make([]string, len(res.Changes))
	for i, c := range res.Changes {
		fields[i] = c.Field
	}
	assert.Contains(t, fields, "bio")
	assert.NotContains(t, fields, "name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveProfileFlags(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)
	profile := testProfile(nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT version, data FROM subjects").
		WithArgs("jane-doe").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO subjects").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profile_versions").
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profile_flags").
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO profile_flags").
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO refresh_schedules").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, data, version").
		WithArgs("jane-doe").
		WillReturnRows(subjectRow(profile, 1))

	res, err := st.SaveProfile(context.Background(), SaveRequest{
		Profile:   profile,
		Trigger:   model.TriggerInitialCreation,
		CreatedBy: "test",
		Flags: []model.ProfileFlag{
			{Type: model.FlagMissingData, Severity: model.SeverityMedium, Field: "bio", Message: "bio too short"},
			{Type: model.FlagInvalidLink, Severity: model.SeverityMedium, Field: "social_links.website", Message: "dead link"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.FlagsSaved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSubjectNotFound(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectQuery("SELECT id, data, version").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetSubject(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetVersionHistory(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	data, err := json.Marshal(testProfile(nil))
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"version_id", "subject_id", "version", "save_trigger", "data", "changes",
		"confidence", "confidence_score", "data_sources", "flag_count", "created_at", "created_by",
	}).
		AddRow("jane-doe_v2", "jane-doe", 2, "scheduled_refresh", data, []byte(`[{"field":"bio","old_value":"a","new_value":"b"}]`), "high", 80, []byte(`["youtube"]`), 0, now, "scheduler").
		AddRow("jane-doe_v1", "jane-doe", 1, "initial_creation", data, []byte("null"), "high", 75, []byte(`["youtube"]`), 1, now.Add(-time.Hour), "test")

	mock.ExpectQuery("SELECT version_id, subject_id").
		WithArgs("jane-doe").
		WillReturnRows(rows)

	versions, err := st.GetVersionHistory(context.Background(), "jane-doe")
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, model.TriggerScheduledRefresh, versions[0].Trigger)
	require.Len(t, versions[0].Changes, 1)
	assert.Equal(t, "bio", versions[0].Changes[0].Field)
	assert.Equal(t, 1, versions[1].Version)
	assert.Empty(t, versions[1].Changes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetVersionNotFound(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectQuery("SELECT version_id, subject_id").
		WithArgs("jane-doe", 9).
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetVersion(context.Background(), "jane-doe", 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveFlag(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profile_flags SET resolved_at").
		WithArgs(pgxmock.AnyArg(), "reviewer", "flag-1", "jane-doe").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE subjects SET").
		WithArgs(pgxmock.AnyArg(), "jane-doe").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := st.ResolveFlag(context.Background(), "jane-doe", "flag-1", "reviewer")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveFlagNotFound(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profile_flags SET resolved_at").
		WithArgs(pgxmock.AnyArg(), "reviewer", "gone", "jane-doe").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := st.ResolveFlag(context.Background(), "jane-doe", "gone", "reviewer")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimSchedule(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectExec("UPDATE refresh_schedules SET status = 'processing'").
		WithArgs("jane-doe").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	claimed, err := st.ClaimSchedule(context.Background(), "jane-doe")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimScheduleAlreadyProcessing(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectExec("UPDATE refresh_schedules SET status = 'processing'").
		WithArgs("jane-doe").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	claimed, err := st.ClaimSchedule(context.Background(), "jane-doe")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDueSchedules(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"subject_id", "last_refreshed", "next_refresh", "refresh_count", "priority", "status",
	}).
		AddRow("jane-doe", now.Add(-31*24*time.Hour), now.Add(-24*time.Hour), 3, "low", "scheduled").
		AddRow("john-roe", now.Add(-8*24*time.Hour), now.Add(-time.Hour), 1, "high", "scheduled")

	mock.ExpectQuery("SELECT subject_id, last_refreshed").
		WithArgs(pgxmock.AnyArg(), 10).
		WillReturnRows(rows)

	due, err := st.DueSchedules(context.Background(), now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "jane-doe", due[0].SubjectID)
	assert.Equal(t, model.PriorityHigh, due[1].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectQuery("FROM subjects").
		WillReturnRows(pgxmock.NewRows([]string{"count", "high", "medium", "low", "flags"}).
			AddRow(12, 5, 4, 3, 7))
	mock.ExpectQuery("status = 'scheduled' AND next_refresh").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("status = 'processing'").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	stats, err := st.Stats(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Subjects)
	assert.Equal(t, 5, stats.HighConfidence)
	assert.Equal(t, 4, stats.MediumConfidence)
	assert.Equal(t, 3, stats.LowConfidence)
	assert.Equal(t, 7, stats.UnresolvedFlags)
	assert.Equal(t, 2, stats.OverdueRefreshes)
	assert.Equal(t, 1, stats.ProcessingClaims)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookupCache(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT payload FROM lookup_cache").
		WithArgs("youtube", "jane doe").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO lookup_cache").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT payload FROM lookup_cache").
		WithArgs("youtube", "jane doe").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(`{"id":"UC123"}`))

	_, err := st.GetCachedLookup(ctx, "youtube", "jane doe")
	assert.ErrorIs(t, err, ErrNoCacheEntry)

	require.NoError(t, st.SetCachedLookup(ctx, "youtube", "jane doe", []byte(`{"id":"UC123"}`), time.Hour))

	payload, err := st.GetCachedLookup(ctx, "youtube", "jane doe")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"UC123"}`, string(payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteExpiredLookups(t *testing.T) {
	mock := newMockPool(t)
	st := NewPostgresWithPool(mock)

	mock.ExpectExec("DELETE FROM lookup_cache").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := st.DeleteExpiredLookups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
