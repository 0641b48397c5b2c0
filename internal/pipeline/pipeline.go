// Package pipeline runs deduplicated shop records through website
// resolution, classification and outreach generation.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/shopscan/internal/classify"
	"github.com/sells-group/shopscan/internal/dedup"
	"github.com/sells-group/shopscan/internal/model"
	"github.com/sells-group/shopscan/internal/outreach"
	"github.com/sells-group/shopscan/internal/resolve"
)

// Sink receives each finished record, in dedup order.
type Sink interface {
	Write(rec *model.ShopRecord, msg *model.OutreachMessage) error
}

// Options tune a run.
type Options struct {
	// Concurrency is the number of records processed at once. Values below
	// one mean one.
	Concurrency int
	// Limit caps the number of records processed after dedup. Zero means all.
	Limit int
}

// Pipeline wires the stages together.
type Pipeline struct {
	dedup    *dedup.Deduplicator
	resolver *resolve.Resolver
	domains  *classify.DomainSet
	outreach *outreach.Generator
	opts     Options
}

// New creates a Pipeline.
func New(
	dd *dedup.Deduplicator,
	resolver *resolve.Resolver,
	domains *classify.DomainSet,
	gen *outreach.Generator,
	opts Options,
) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		dedup:    dd,
		resolver: resolver,
		domains:  domains,
		outreach: gen,
		opts:     opts,
	}
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	Entries  int                    `json:"entries"`
	Records  int                    `json:"records"`
	Merged   int                    `json:"merged"`
	Emitted  int                    `json:"emitted"`
	Presence map[model.Presence]int `json:"presence"`
	Ordering map[model.Ordering]int `json:"ordering"`
	Resolver resolve.Stats          `json:"resolver"`
	Duration time.Duration          `json:"duration"`
}

func (s *Summary) count(rec *model.ShopRecord) {
	s.Emitted++
	s.Presence[rec.HasWebsite]++
	s.Ordering[rec.DirectOrdering]++
}

type result struct {
	msg model.OutreachMessage
	err error
}

// Run deduplicates entries and processes every record, writing each to sink
// as soon as it and all records before it are done. Rows written before a
// cancellation or sink failure stay written; the summary covers them.
func (p *Pipeline) Run(ctx context.Context, entries []model.ShopEntry, sink Sink) (*Summary, error) {
	start := time.Now()
	deduped := p.dedup.Dedup(entries)
	records := deduped.Records
	if p.opts.Limit > 0 && len(records) > p.opts.Limit {
		records = records[:p.opts.Limit]
	}

	summary := &Summary{
		Entries:  len(entries),
		Records:  len(deduped.Records),
		Merged:   deduped.Merged,
		Presence: make(map[model.Presence]int),
		Ordering: make(map[model.Ordering]int),
	}
	log := zap.L().With(zap.Int("records", len(records)), zap.Int("concurrency", p.opts.Concurrency))
	log.Info("pipeline: starting run", zap.Int("entries", len(entries)), zap.Int("merged", deduped.Merged))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	results := make([]result, len(records))
	done := make([]chan struct{}, len(records))
	for i := range done {
		done[i] = make(chan struct{})
	}

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := range records {
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				defer close(done[i])
				msg, err := p.process(gctx, records[i])
				results[i] = result{msg: msg, err: err}
				return err
			})
		}
	}()

	var emitErr error
emit:
	for i, rec := range records {
		select {
		case <-done[i]:
		case <-gctx.Done():
			break emit
		}
		if results[i].err != nil {
			break emit
		}
		if err := sink.Write(rec, &results[i].msg); err != nil {
			emitErr = eris.Wrap(err, "pipeline: write record")
			cancel()
			break emit
		}
		summary.count(rec)
	}

	<-launched
	waitErr := g.Wait()

	summary.Resolver = p.resolver.Stats()
	summary.Duration = time.Since(start)
	p.logSummary(summary)

	if emitErr != nil {
		return summary, emitErr
	}
	if waitErr != nil {
		return summary, eris.Wrap(waitErr, "pipeline: run")
	}
	if summary.Emitted < len(records) {
		return summary, eris.Wrap(ctx.Err(), "pipeline: run interrupted")
	}
	return summary, nil
}

// process resolves, classifies and drafts outreach for one record.
func (p *Pipeline) process(ctx context.Context, rec *model.ShopRecord) (model.OutreachMessage, error) {
	if err := p.resolver.Apply(ctx, rec); err != nil {
		return model.OutreachMessage{}, err
	}
	classify.Apply(rec, p.domains)

	msg, err := p.outreach.Generate(rec)
	if err != nil {
		return model.OutreachMessage{}, err
	}

	zap.L().Debug("pipeline: record complete",
		zap.String("shop_id", rec.ShopID),
		zap.String("has_website", string(rec.HasWebsite)),
		zap.String("direct_ordering", string(rec.DirectOrdering)),
	)
	return msg, nil
}

func (p *Pipeline) logSummary(s *Summary) {
	zap.L().Info("pipeline: run complete",
		zap.Int("entries", s.Entries),
		zap.Int("records", s.Records),
		zap.Int("merged", s.Merged),
		zap.Int("emitted", s.Emitted),
		zap.Int("confirmed", s.Presence[model.PresenceConfirmed]),
		zap.Int("confirmed_absent", s.Presence[model.PresenceConfirmedAbsent]),
		zap.Int("unverified", s.Presence[model.PresenceUnverified]),
		zap.Int("direct", s.Ordering[model.OrderingDirect]),
		zap.Int("third_party", s.Ordering[model.OrderingThirdParty]),
		zap.Int("none", s.Ordering[model.OrderingNone]),
		zap.Int64("lookups", s.Resolver.Lookups),
		zap.Int64("cache_hits", s.Resolver.CacheHits+s.Resolver.StoreHits),
		zap.Int64("skipped", s.Resolver.Skipped),
		zap.String("quota_circuit", s.Resolver.Circuit),
		zap.Duration("duration", s.Duration),
	)
}
