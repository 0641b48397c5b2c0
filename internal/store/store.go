// Package store persists website lookup outcomes between runs so a re-run
// does not query the Places API again for shops it has already resolved.
package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopscan/internal/config"
	"github.com/sells-group/shopscan/internal/model"
)

// Resolution is a cached lookup outcome for one shop. QueryHash ties it to
// the search text that produced it.
type Resolution struct {
	ShopID     string         `json:"shop_id"`
	QueryHash  string         `json:"query_hash"`
	Website    string         `json:"website,omitempty"`
	Presence   model.Presence `json:"presence"`
	Note       string         `json:"note,omitempty"`
	ResolvedAt time.Time      `json:"resolved_at"`
}

// Store defines the persistence interface for lookup outcomes.
type Store interface {
	// GetResolution returns nil, nil when the shop is not cached, expired,
	// or was cached under a different query.
	GetResolution(ctx context.Context, shopID, queryHash string) (*Resolution, error)
	PutResolution(ctx context.Context, r Resolution, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// QueryHash returns the SHA-256 hex of a lookup query. A changed query,
// such as a new state or city, no longer matches the cached row.
func QueryHash(query string) string {
	h := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%x", h)
}

// Open connects the configured store and migrates it. It returns nil, nil
// when no driver is configured.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
