package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/pkg/trends"
)

func duneRecord() trends.TrendRecord {
	link := "http://x"
	return trends.TrendRecord{
		Name:         "Dune",
		Category:     "all",
		SearchVolume: 500,
		StartedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Breakdown:    []string{"dune", "part two"},
		SourceLink:   &link,
	}
}

func TestPostgresStore_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := duneRecord()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trends").
		WithArgs("Dune", "all", int64(500), rec.StartedAt, pgxmock.AnyArg(), []string{"dune", "part two"}, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	id, err := NewPostgresStore(mock).Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trends").WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	_, err = NewPostgresStore(mock).Upsert(context.Background(), duneRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value too long")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAll_IsolatesFailedRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bad := duneRecord()
	bad.Name = "Bad"
	good := duneRecord()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trends").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trends").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectCommit()

	result := UpsertAll(context.Background(), NewPostgresStore(mock), []trends.TrendRecord{bad, good})

	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Stored, 1)
	assert.Equal(t, int64(2), result.Stored[0].ID)
	assert.Equal(t, "Dune", result.Stored[0].Name)
	require.Len(t, result.Errors, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SelectUnprocessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ended := started.Add(48 * time.Hour)
	link := "http://y"
	rows := pgxmock.NewRows([]string{"id", "name", "category", "search_volume", "started_at", "ended_at", "breakdown", "source_link"}).
		AddRow(int64(3), "Wednesday", "shows", int64(20000), started, (*time.Time)(nil), []string{"wednesday"}, &link).
		AddRow(int64(1), "Dune", "shows", int64(500), started, &ended, []string{}, (*string)(nil))
	mock.ExpectQuery(`SELECT t.id, t.name`).
		WithArgs([]string{"shows"}, 5).
		WillReturnRows(rows)

	got, err := NewPostgresStore(mock).SelectUnprocessed(context.Background(), []string{"shows"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].ID)
	assert.Nil(t, got[0].EndedAt)
	require.NotNil(t, got[0].SourceLink)
	assert.Equal(t, "http://y", *got[0].SourceLink)
	require.NotNil(t, got[1].EndedAt)
	assert.True(t, ended.Equal(*got[1].EndedAt))
	assert.Nil(t, got[1].SourceLink)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SelectUnprocessedAllCategories(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`NOT EXISTS`).
		WithArgs([]string{}, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "category", "search_volume", "started_at", "ended_at", "breakdown", "source_link"}))

	got, err := NewPostgresStore(mock).SelectUnprocessed(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_trends").
		WithArgs(int64(7), "Dune: Part Two", "movie", "Sequel release", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresStore(mock).RecordProcessed(context.Background(), ProcessedMarker{
		TrendID:       7,
		Topic:         "Dune: Part Two",
		TopicCategory: "movie",
		SummaryText:   "Sequel release",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trends").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewPostgresStore(mock).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
