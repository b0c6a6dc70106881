package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"trendpulse/pkg/logger"
	"trendpulse/pkg/resilience"
	"trendpulse/pkg/trends"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

const upsertTrendSQL = `
	INSERT INTO trends (name, category, search_volume, started_at, ended_at, breakdown, source_link)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (name, category) DO UPDATE SET
		search_volume = EXCLUDED.search_volume,
		ended_at      = EXCLUDED.ended_at,
		breakdown     = EXCLUDED.breakdown,
		source_link   = EXCLUDED.source_link,
		updated_at    = NOW()
	RETURNING id
`

const selectUnprocessedSQL = `
	SELECT t.id, t.name, t.category, t.search_volume, t.started_at, t.ended_at, t.breakdown, t.source_link
	FROM trends t
	WHERE (cardinality($1::text[]) = 0 OR t.category = ANY($1::text[]))
	  AND NOT EXISTS (SELECT 1 FROM processed_trends p WHERE p.trend_id = t.id)
	ORDER BY t.ended_at DESC NULLS FIRST, t.started_at DESC
	LIMIT $2
`

const insertMarkerSQL = `
	INSERT INTO processed_trends (trend_id, topic, topic_category, summary_text, recorded_at)
	VALUES ($1, $2, $3, $4, $5)
`

type PostgresStore struct {
	db  DB
	log *logger.Logger
	now func() time.Time
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger.GetLogger().WithField("component", "postgres_store"),
		now: time.Now,
	}
}

// PoolConfig configures Connect.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnectRetries  int
	ConnectBackoff  time.Duration
	MaxConnLifetime time.Duration
}

// Connect opens a pool and pings it, retrying transient failures.
// Failure here means storage is unreachable.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	retry := resilience.NewSimpleRetry(cfg.ConnectRetries, backoff)
	if err := retry.Execute(ctx, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the trends and processed_trends tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Upsert commits rec in its own transaction.
func (s *PostgresStore) Upsert(ctx context.Context, rec trends.TrendRecord) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	breakdown := rec.Breakdown
	if breakdown == nil {
		breakdown = []string{}
	}

	var id int64
	err = tx.QueryRow(ctx, upsertTrendSQL,
		rec.Name, rec.Category, rec.SearchVolume, rec.StartedAt,
		rec.EndedAt, breakdown, rec.SourceLink,
	).Scan(&id)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.log.WithError(rbErr).Warn("Rollback failed")
		}
		return 0, fmt.Errorf("upsert trend %q/%q: %w", rec.Name, rec.Category, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit trend %q/%q: %w", rec.Name, rec.Category, err)
	}
	return id, nil
}

func (s *PostgresStore) SelectUnprocessed(ctx context.Context, categories []string, limit int) ([]trends.TrendRecord, error) {
	if categories == nil {
		categories = []string{}
	}
	rows, err := s.db.Query(ctx, selectUnprocessedSQL, categories, limit)
	if err != nil {
		return nil, fmt.Errorf("select unprocessed trends: %w", err)
	}
	defer rows.Close()

	var out []trends.TrendRecord
	for rows.Next() {
		var rec trends.TrendRecord
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Category, &rec.SearchVolume,
			&rec.StartedAt, &rec.EndedAt, &rec.Breakdown, &rec.SourceLink,
		); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trends: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) RecordProcessed(ctx context.Context, m ProcessedMarker) error {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = s.now().UTC()
	}
	if _, err := s.db.Exec(ctx, insertMarkerSQL,
		m.TrendID, m.Topic, m.TopicCategory, m.SummaryText, m.RecordedAt,
	); err != nil {
		return fmt.Errorf("record processed trend %d: %w", m.TrendID, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}
