package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/shopscan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, nowFunc: time.Now}, nil
}

// Times are stored as unix seconds so expiry compares numerically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS resolutions (
	shop_id     TEXT PRIMARY KEY,
	query_hash  TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	presence    TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	resolved_at INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_expires_at ON resolutions(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetResolution(ctx context.Context, shopID, queryHash string) (*Resolution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT shop_id, query_hash, website, presence, note, resolved_at FROM resolutions
		 WHERE shop_id = ? AND query_hash = ? AND expires_at > ?`,
		shopID, queryHash, s.nowFunc().Unix(),
	)

	var (
		r          Resolution
		presence   string
		resolvedAt int64
	)
	err := row.Scan(&r.ShopID, &r.QueryHash, &r.Website, &presence, &r.Note, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get resolution %s", shopID)
	}
	r.Presence = model.Presence(presence)
	r.ResolvedAt = time.Unix(resolvedAt, 0).UTC()
	return &r, nil
}

func (s *SQLiteStore) PutResolution(ctx context.Context, r Resolution, ttl time.Duration) error {
	now := s.nowFunc()
	if r.ResolvedAt.IsZero() {
		r.ResolvedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (shop_id, query_hash, website, presence, note, resolved_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (shop_id) DO UPDATE SET
		   query_hash = excluded.query_hash, website = excluded.website, presence = excluded.presence, note = excluded.note,
		   resolved_at = excluded.resolved_at, expires_at = excluded.expires_at`,
		r.ShopID, r.QueryHash, r.Website, string(r.Presence), r.Note, r.ResolvedAt.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "sqlite: put resolution %s", r.ShopID)
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resolutions WHERE expires_at <= ?`, s.nowFunc().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resolutions`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear")
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resolutions`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count")
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "rows affected")
	}
	return int(n), nil
}
