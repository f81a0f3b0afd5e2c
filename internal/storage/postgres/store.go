package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapwatch/internal/watcher"
)

const schema = `
CREATE TABLE IF NOT EXISTS swapwatch_checkpoints (
	name         TEXT PRIMARY KEY,
	block_number BIGINT NOT NULL,
	block_hash   TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store provides Postgres persistence for watcher progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the stored checkpoint for a name.
func (s *Store) LoadCheckpoint(ctx context.Context, name string) (watcher.Checkpoint, bool, error) {
	if name == "" {
		return watcher.Checkpoint{}, false, fmt.Errorf("checkpoint name required")
	}
	var (
		cp     watcher.Checkpoint
		number int64
	)
	row := s.pool.QueryRow(ctx, `SELECT block_number, block_hash, updated_at FROM swapwatch_checkpoints WHERE name=$1`, name)
	if err := row.Scan(&number, &cp.BlockHash, &cp.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return watcher.Checkpoint{}, false, nil
		}
		return watcher.Checkpoint{}, false, err
	}
	cp.BlockNumber = uint64(number)
	return cp, true, nil
}

// SaveCheckpoint upserts the checkpoint for a name.
func (s *Store) SaveCheckpoint(ctx context.Context, name string, cp watcher.Checkpoint) error {
	if name == "" {
		return fmt.Errorf("checkpoint name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swapwatch_checkpoints (name, block_number, block_hash, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET block_number = EXCLUDED.block_number, block_hash = EXCLUDED.block_hash, updated_at = now()
	`, name, int64(cp.BlockNumber), cp.BlockHash)
	return err
}

// CheckpointStore binds a Store to one checkpoint name.
type CheckpointStore struct {
	store *Store
	name  string
}

func NewCheckpointStore(store *Store, name string) (*CheckpointStore, error) {
	if store == nil {
		return nil, fmt.Errorf("postgres store is nil")
	}
	if name == "" {
		return nil, fmt.Errorf("checkpoint name required")
	}
	return &CheckpointStore{store: store, name: name}, nil
}

func (c *CheckpointStore) Load(ctx context.Context) (watcher.Checkpoint, bool, error) {
	return c.store.LoadCheckpoint(ctx, c.name)
}

func (c *CheckpointStore) Save(ctx context.Context, cp watcher.Checkpoint) error {
	return c.store.SaveCheckpoint(ctx, c.name, cp)
}
