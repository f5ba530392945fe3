// Package store persists transcribed speech segments in PostgreSQL.
//
// Each segment is one row in records. Free-form labels live in tags and are
// linked through record_tags.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL applied by [Store.Migrate].
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    id            TEXT PRIMARY KEY,
    recorded_at   TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL,
    audio_url     TEXT NOT NULL,
    transcription TEXT NOT NULL,
    confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_favorite   BOOLEAN NOT NULL DEFAULT false,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_records_recorded_at ON records(recorded_at);
CREATE TABLE IF NOT EXISTS tags (
    id   BIGSERIAL PRIMARY KEY,
    name TEXT UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS record_tags (
    record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
    tag_id    BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (record_id, tag_id)
);
`

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("store: record not found")

// Record is one persisted segment.
type Record struct {
	ID            string
	RecordedAt    time.Time
	Duration      time.Duration
	AudioURL      string
	Transcription string
	Confidence    float64
	Tags          []string
}

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store is the PostgreSQL record store.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// New wraps an existing connection or pool. The caller owns its lifetime.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// AddRecord inserts rec and its tags in one transaction. An empty rec.ID is
// filled with a new UUID.
func (s *Store) AddRecord(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		const insertRecord = `
			INSERT INTO records (id, recorded_at, duration_ms, audio_url, transcription, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insertRecord,
			rec.ID, rec.RecordedAt, rec.Duration.Milliseconds(), rec.AudioURL, rec.Transcription, rec.Confidence,
		); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}

		for _, name := range rec.Tags {
			var tagID int64
			const upsertTag = `
				INSERT INTO tags (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`
			if err := tx.QueryRow(ctx, upsertTag, name).Scan(&tagID); err != nil {
				return fmt.Errorf("upsert tag %q: %w", name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO record_tags (record_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				rec.ID, tagID,
			); err != nil {
				return fmt.Errorf("link tag %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: add record: %w", err)
	}
	return nil
}

// Get loads one record with its tags.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	const query = `
		SELECT r.id, r.recorded_at, r.duration_ms, r.audio_url, r.transcription, r.confidence,
		       COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
		FROM records r
		LEFT JOIN record_tags rt ON rt.record_id = r.id
		LEFT JOIN tags t ON t.id = rt.tag_id
		WHERE r.id = $1
		GROUP BY r.id`
	var (
		rec        Record
		durationMs int64
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.RecordedAt, &durationMs, &rec.AudioURL, &rec.Transcription, &rec.Confidence, &rec.Tags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %q: %w", id, err)
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

// Ping reports whether the database is reachable. Used as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool opened by Open. It is a no-op for stores from New.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
