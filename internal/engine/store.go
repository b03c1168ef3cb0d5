package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// StoredTranscript is one persisted transcript. Data is opaque to the store.
type StoredTranscript struct {
	VideoID   string
	Lang      string
	Strategy  string
	Data      []byte
	FetchedAt time.Time
}

// TranscriptStore persists acquired transcripts across restarts.
type TranscriptStore interface {
	Load(ctx context.Context, videoID, lang string) (StoredTranscript, bool, error)
	Save(ctx context.Context, t StoredTranscript) error
	Close() error
}

var (
	storeMu sync.RWMutex
	store   TranscriptStore
)

// SetStore installs the process-wide transcript store. nil disables persistence.
func SetStore(s TranscriptStore) {
	storeMu.Lock()
	store = s
	storeMu.Unlock()
}

// Store returns the installed transcript store, or nil.
func Store() TranscriptStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return store
}

// OpenStore picks the backend from dsn: postgres:// and postgresql:// URLs
// use pgx, anything else is a SQLite file path.
func OpenStore(ctx context.Context, dsn string) (TranscriptStore, error) {
	if dsn == "" {
		return nil, errors.New("store: empty DSN")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return openPostgresStore(ctx, dsn)
	}
	return openSQLiteStore(ctx, dsn)
}

// --- SQLite ---

type sqliteStore struct {
	db *sql.DB
}

func openSQLiteStore(ctx context.Context, path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS transcripts (
		video_id   TEXT NOT NULL,
		lang       TEXT NOT NULL,
		strategy   TEXT NOT NULL,
		data       BLOB NOT NULL,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY (video_id, lang)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	slog.Info("store: sqlite opened", slog.String("path", path))
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Load(ctx context.Context, videoID, lang string) (StoredTranscript, bool, error) {
	t := StoredTranscript{VideoID: videoID, Lang: lang}
	var fetched string
	err := s.db.QueryRowContext(ctx,
		`SELECT strategy, data, fetched_at FROM transcripts WHERE video_id = ? AND lang = ?`,
		videoID, lang).Scan(&t.Strategy, &t.Data, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredTranscript{}, false, nil
	}
	if err != nil {
		return StoredTranscript{}, false, fmt.Errorf("store: load %s: %w", videoID, err)
	}
	t.FetchedAt, _ = time.Parse(time.RFC3339, fetched)
	return t, true, nil
}

func (s *sqliteStore) Save(ctx context.Context, t StoredTranscript) error {
	if t.FetchedAt.IsZero() {
		t.FetchedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (video_id, lang, strategy, data, fetched_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(video_id, lang) DO UPDATE SET strategy = excluded.strategy, data = excluded.data, fetched_at = excluded.fetched_at`,
		t.VideoID, t.Lang, t.Strategy, t.Data, t.FetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: save %s: %w", t.VideoID, err)
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

// --- PostgreSQL ---

type postgresStore struct {
	pool *pgxpool.Pool
}

func openPostgresStore(ctx context.Context, databaseURL string) (*postgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database URL: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("store: create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS transcripts (
		video_id   TEXT NOT NULL,
		lang       TEXT NOT NULL,
		strategy   TEXT NOT NULL,
		data       BYTEA NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (video_id, lang)
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	slog.Info("store: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Load(ctx context.Context, videoID, lang string) (StoredTranscript, bool, error) {
	t := StoredTranscript{VideoID: videoID, Lang: lang}
	err := s.pool.QueryRow(ctx,
		`SELECT strategy, data, fetched_at FROM transcripts WHERE video_id = $1 AND lang = $2`,
		videoID, lang).Scan(&t.Strategy, &t.Data, &t.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredTranscript{}, false, nil
	}
	if err != nil {
		return StoredTranscript{}, false, fmt.Errorf("store: load %s: %w", videoID, err)
	}
	return t, true, nil
}

func (s *postgresStore) Save(ctx context.Context, t StoredTranscript) error {
	if t.FetchedAt.IsZero() {
		t.FetchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (video_id, lang, strategy, data, fetched_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (video_id, lang) DO UPDATE SET strategy = EXCLUDED.strategy, data = EXCLUDED.data, fetched_at = EXCLUDED.fetched_at`,
		t.VideoID, t.Lang, t.Strategy, t.Data, t.FetchedAt)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", t.VideoID, err)
	}
	return nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
