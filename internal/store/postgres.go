package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/shopscan/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a small connection pool. Lookups
// are sequential and throttled, so a handful of connections is plenty.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS resolutions (
	shop_id     TEXT PRIMARY KEY,
	query_hash  TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	presence    TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	resolved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_expires_at ON resolutions(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetResolution(ctx context.Context, shopID, queryHash string) (*Resolution, error) {
	var (
		r        Resolution
		presence string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT shop_id, query_hash, website, presence, note, resolved_at FROM resolutions
		 WHERE shop_id = $1 AND query_hash = $2 AND expires_at > now()`,
		shopID, queryHash,
	).Scan(&r.ShopID, &r.QueryHash, &r.Website, &presence, &r.Note, &r.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get resolution %s", shopID)
	}
	r.Presence = model.Presence(presence)
	return &r, nil
}

func (s *PostgresStore) PutResolution(ctx context.Context, r Resolution, ttl time.Duration) error {
	now := time.Now().UTC()
	if r.ResolvedAt.IsZero() {
		r.ResolvedAt = now
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resolutions (shop_id, query_hash, website, presence, note, resolved_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (shop_id) DO UPDATE SET
		   query_hash = $2, website = $3, presence = $4, note = $5, resolved_at = $6, expires_at = $7`,
		r.ShopID, r.QueryHash, r.Website, string(r.Presence), r.Note, r.ResolvedAt, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put resolution %s", r.ShopID)
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM resolutions WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Clear(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM resolutions`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resolutions`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count")
}
