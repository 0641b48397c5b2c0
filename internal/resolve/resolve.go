// Package resolve looks up each shop's website through Google Places and
// records the outcome on the shop record.
package resolve

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/config"
	"github.com/sells-group/shopscan/internal/model"
	"github.com/sells-group/shopscan/internal/resilience"
	"github.com/sells-group/shopscan/internal/store"
	"github.com/sells-group/shopscan/internal/throttle"
	"github.com/sells-group/shopscan/pkg/google"
)

// Notes written on records the resolver could not confirm.
const (
	NoteOffline     = "API key not provided"
	NoteNotFound    = "place not found"
	NoteNoWebsite   = "no website listed"
	NoteCircuitOpen = "lookup skipped: circuit open"
	noteLookupError = "lookup error: "
)

// Outcome is the result of resolving one shop.
type Outcome struct {
	Website  string
	Presence model.Presence
	Note     string
}

// Stats counts how outcomes were obtained during a run.
type Stats struct {
	Lookups   int64 `json:"lookups"`
	CacheHits int64 `json:"cache_hits"`
	StoreHits int64 `json:"store_hits"`
	Skipped   int64 `json:"skipped"`

	// Circuit is the quota breaker state when the snapshot was taken.
	Circuit string `json:"circuit"`
}

// Resolver resolves shop websites. It is safe for concurrent use; all
// goroutines share one throttle gate and one circuit breaker.
type Resolver struct {
	client  google.Client
	gate    throttle.Gate
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	state   string

	store store.Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]Outcome

	lookups, cacheHits, storeHits, skipped atomic.Int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore enables the persistent cache. Entries live for ttl.
func WithStore(st store.Store, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.store = st
		r.ttl = ttl
	}
}

// WithRetry overrides the retry policy built from the resolver config.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(r *Resolver) {
		r.retry = rc
	}
}

// New creates a Resolver. A nil client puts the resolver in offline mode,
// where every shop is left unverified without a request. A nil gate
// disables throttling.
func New(client google.Client, gate throttle.Gate, cfg config.ResolverConfig, opts ...Option) *Resolver {
	if gate == nil {
		gate = throttle.Nop{}
	}
	r := &Resolver{
		client: client,
		gate:   gate,
		retry:  resilience.FromResolverConfig(cfg),
		state:  cfg.State,
		cache:  make(map[string]Outcome),
	}

	breakerCfg := resilience.QuotaBreakerConfig(cfg)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("resolve: quota circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	r.breaker = resilience.NewCircuitBreaker(breakerCfg)

	for _, o := range opts {
		o(r)
	}
	return r
}

// Offline reports whether the resolver runs without an API client.
func (r *Resolver) Offline() bool {
	return r.client == nil
}

// Stats returns a snapshot of the resolver counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Lookups:   r.lookups.Load(),
		CacheHits: r.cacheHits.Load(),
		StoreHits: r.storeHits.Load(),
		Skipped:   r.skipped.Load(),
		Circuit:   r.breaker.State().String(),
	}
}

// Apply resolves rec and writes the outcome onto it. Records that already
// carry a website are confirmed without a lookup. The only error returned
// is ctx's, when the run is cancelled mid-lookup.
func (r *Resolver) Apply(ctx context.Context, rec *model.ShopRecord) error {
	if rec.HasWebsite.Resolved() {
		return nil
	}
	if rec.Website != "" {
		rec.Website = NormalizeURL(rec.Website)
		rec.HasWebsite = model.PresenceConfirmed
		return nil
	}

	out, err := r.Resolve(ctx, rec)
	if err != nil {
		return err
	}
	rec.Website = out.Website
	rec.HasWebsite = out.Presence
	rec.AddNote(out.Note)
	return nil
}

// Resolve returns the lookup outcome for rec, consulting the run cache and
// the persistent store before querying the API.
func (r *Resolver) Resolve(ctx context.Context, rec *model.ShopRecord) (Outcome, error) {
	if r.client == nil {
		r.skipped.Add(1)
		return Outcome{Presence: model.PresenceUnverified, Note: NoteOffline}, nil
	}

	if out, ok := r.cached(rec.ShopID); ok {
		r.cacheHits.Add(1)
		return out, nil
	}

	query := Query(rec.AccountName, rec.BillingCity, r.state)
	queryHash := store.QueryHash(query)
	if out, ok := r.stored(ctx, rec.ShopID, queryHash); ok {
		r.storeHits.Add(1)
		r.remember(rec.ShopID, out)
		return out, nil
	}

	if err := r.breaker.Allow(); err != nil {
		r.skipped.Add(1)
		return Outcome{Presence: model.PresenceUnverified, Note: NoteCircuitOpen}, nil
	}

	out, err := r.lookup(ctx, rec.ShopID, query)
	if err != nil && ctx.Err() != nil {
		r.breaker.Abandon()
		return Outcome{}, ctx.Err()
	}
	r.breaker.Record(err)

	r.remember(rec.ShopID, out)
	r.persist(ctx, rec.ShopID, queryHash, out)
	return out, nil
}

func (r *Resolver) lookup(ctx context.Context, shopID, query string) (Outcome, error) {
	log := zap.L().With(zap.String("shop_id", shopID), zap.String("query", query))

	retry := r.retry
	retry.OnRetry = resilience.RetryLogger("google_places", zap.String("shop_id", shopID))

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*google.SearchTextResponse, error) {
		if err := r.gate.Wait(ctx); err != nil {
			return nil, err
		}
		r.lookups.Add(1)
		resp, err := r.client.SearchText(ctx, query)
		return resp, classifyError(err)
	})
	if err != nil {
		log.Warn("resolve: lookup failed", zap.Bool("quota", resilience.IsQuota(err)), zap.Error(err))
		return Outcome{Presence: model.PresenceUnverified, Note: noteLookupError + err.Error()}, err
	}

	out := fromResponse(resp)
	log.Debug("resolve: lookup complete",
		zap.String("presence", string(out.Presence)),
		zap.String("website", out.Website),
	)
	return out, nil
}

func fromResponse(resp *google.SearchTextResponse) Outcome {
	if resp == nil || len(resp.Places) == 0 {
		return Outcome{Presence: model.PresenceConfirmedAbsent, Note: NoteNotFound}
	}
	for _, p := range resp.Places {
		if site := strings.TrimSpace(p.WebsiteURI); site != "" {
			return Outcome{Website: NormalizeURL(site), Presence: model.PresenceConfirmed}
		}
	}
	return Outcome{Presence: model.PresenceConfirmedAbsent, Note: NoteNoWebsite}
}

// classifyError maps Places API failures onto the retry taxonomy.
func classifyError(err error) error {
	var apiErr *google.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.QuotaExhausted() {
		return resilience.NewQuotaError(err, apiErr.StatusCode)
	}
	if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}

func (r *Resolver) cached(shopID string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.cache[shopID]
	return out, ok
}

// remember caches every looked-up outcome for the run, failed lookups
// included, so a revisited shop is never queried again.
func (r *Resolver) remember(shopID string, out Outcome) {
	r.mu.Lock()
	r.cache[shopID] = out
	r.mu.Unlock()
}

func (r *Resolver) stored(ctx context.Context, shopID, queryHash string) (Outcome, bool) {
	if r.store == nil {
		return Outcome{}, false
	}
	res, err := r.store.GetResolution(ctx, shopID, queryHash)
	if err != nil {
		zap.L().Warn("resolve: cache read failed", zap.String("shop_id", shopID), zap.Error(err))
		return Outcome{}, false
	}
	if res == nil {
		return Outcome{}, false
	}
	return Outcome{Website: res.Website, Presence: res.Presence, Note: res.Note}, true
}

// persist writes confirmed outcomes to the store. Unverified ones are
// retried on the next run.
func (r *Resolver) persist(ctx context.Context, shopID, queryHash string, out Outcome) {
	if r.store == nil || out.Presence == model.PresenceUnverified {
		return
	}
	err := r.store.PutResolution(ctx, store.Resolution{
		ShopID:    shopID,
		QueryHash: queryHash,
		Website:   out.Website,
		Presence:  out.Presence,
		Note:      out.Note,
	}, r.ttl)
	if err != nil {
		zap.L().Warn("resolve: cache write failed", zap.String("shop_id", shopID), zap.Error(err))
	}
}

// Query builds the text search query "<name>, <city>, <state>", omitting
// empty parts.
func Query(name, city, state string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, city, state} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizeURL reduces a website to its lowercased host, without scheme or a
// leading www., followed by any path and query. Unparseable input is returned
// trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "https://" + raw
	}
	u, err := url.Parse(withScheme)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.TrimPrefix(strings.TrimSuffix(strings.ToLower(u.Host), "."), "www.")
	rest := u.EscapedPath()
	if rest == "/" {
		rest = ""
	}
	if u.RawQuery != "" {
		rest += "?" + u.RawQuery
	}
	return host + rest
}
