package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleEvent(uid string) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		EventUID:       uid,
		Source:         domain.SourceUSGS,
		SourceEventID:  "eq1",
		OriginTimeUTC:  time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Latitude:       35.0,
		Longitude:      -120.0,
		DepthKM:        10.0,
		MagnitudeValue: 5.0,
		MagnitudeType:  "mw",
		Status:         domain.StatusReviewed,
		FetchedAt:      time.Date(2024, 1, 15, 12, 10, 0, 0, time.UTC),
	}
}

func TestStore_InsertRawEvents(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO normalized_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO normalized_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := store.InsertRawEvents(context.Background(),
		[]domain.NormalizedEvent{sampleEvent("usgs:eq1"), sampleEvent("usgs:eq2")})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertRawEventsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO normalized_events").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.InsertRawEvents(context.Background(),
		[]domain.NormalizedEvent{sampleEvent("usgs:eq1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usgs:eq1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertRawEventsEmptyBatch(t *testing.T) {
	store, mock := newMockStore(t)

	count, err := store.InsertRawEvents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet(), "empty batch touches nothing")
}

func TestStore_InsertDeadLetters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dead_letters").
		WithArgs("usgs", "eq9", "{bad", []byte(`["latitude out of range"]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.InsertDeadLetters(context.Background(), []domain.DeadLetter{{
		Source:        domain.SourceUSGS,
		SourceEventID: "eq9",
		RawPayload:    "{bad",
		Errors:        []string{"latitude out of range"},
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LogPipelineRun(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO pipeline_runs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.LogPipelineRun(context.Background(), domain.PipelineRun{
		RunID:     "abcd1234",
		EndTime:   time.Now(),
		Status:    "success",
		Sources:   []string{"usgs"},
		RawCount:  3,
		DurationS: 1.5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadWindow(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	origin := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"event_uid", "source", "origin_time_utc", "latitude", "longitude",
		"depth_km", "magnitude_value", "magnitude_type", "place", "region", "status",
	}).AddRow("usgs:eq1", "usgs", origin, 35.0, -120.0, 10.0, 5.0, "mw", "Parkfield", "Central California", "reviewed")

	mock.ExpectQuery("SELECT event_uid, source, origin_time_utc").
		WithArgs(since).
		WillReturnRows(rows)

	records, err := store.LoadWindow(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "usgs:eq1", records[0].EventUID)
	assert.Equal(t, domain.SourceUSGS, records[0].Source)
	assert.Equal(t, 5.0, records[0].MagnitudeValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertDedupPass(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unified_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_crosswalk").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_crosswalk").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	unified := []domain.UnifiedEvent{{
		UnifiedEventID:  "UE-0123456789abcdef",
		OriginTimeUTC:   time.Now().UTC(),
		PreferredSource: domain.SourceUSGS,
		NumSources:      2,
		UpdatedAt:       time.Now().UTC(),
	}}
	links := []domain.CrosswalkEntry{
		{EventUID: "usgs:eq1", UnifiedEventID: "UE-0123456789abcdef", MatchScore: 1.0, IsPreferred: true},
		{EventUID: "emsc:eq1", UnifiedEventID: "UE-0123456789abcdef", MatchScore: 0.93, IsPreferred: false},
	}

	err := store.UpsertDedupPass(context.Background(), unified, links)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertDedupPassRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unified_events").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.UpsertDedupPass(context.Background(),
		[]domain.UnifiedEvent{{UnifiedEventID: "UE-x"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert unified event")
	assert.NoError(t, mock.ExpectationsWereMet())
}
