// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/playback-beacon/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "beacons"

// BeaconStoreConfig controls the Postgres connection pool used for beacon rows.
type BeaconStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// BeaconStore implements store.BeaconRepository using Postgres.
type BeaconStore struct {
	pool  pool
	table string
}

var _ store.BeaconRepository = (*BeaconStore)(nil)

// NewBeaconStore creates a Postgres-backed BeaconStore using the provided config.
func NewBeaconStore(ctx context.Context, cfg BeaconStoreConfig) (*BeaconStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewBeaconStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewBeaconStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBeaconStoreWithPool(p pool, table string) (*BeaconStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &BeaconStore{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *BeaconStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InsertBeacon appends one beacon row.
func (s *BeaconStore) InsertBeacon(ctx context.Context, row store.BeaconRow) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("beacon store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	session_id,
	provider,
	category,
	action,
	label,
	value,
	non_interaction,
	recorded_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		row.ID,
		row.SessionID,
		row.Provider,
		row.Category,
		row.Action,
		row.Label,
		row.Value,
		row.NonInteraction,
		row.RecordedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert beacon: %w", err)
	}
	return nil
}

// ListSessionBeacons returns up to limit beacons for a session, oldest first.
// Rows sharing a timestamp fall back to id order, which is insertion order
// for UUIDv7 ids.
// It returns store.ErrNotFound when the session has no beacons.
func (s *BeaconStore) ListSessionBeacons(ctx context.Context, sessionID string, limit int) ([]store.BeaconRow, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("beacon store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT id, session_id, provider, category, action, label, value, non_interaction, recorded_at
FROM %s
WHERE session_id = $1
ORDER BY recorded_at, id
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query beacons: %w", err)
	}
	defer rows.Close()

	var out []store.BeaconRow
	for rows.Next() {
		var row store.BeaconRow
		if err := rows.Scan(
			&row.ID,
			&row.SessionID,
			&row.Provider,
			&row.Category,
			&row.Action,
			&row.Label,
			&row.Value,
			&row.NonInteraction,
			&row.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan beacon: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beacons: %w", err)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}
