package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/classify"
	"github.com/sells-group/shopscan/internal/config"
	"github.com/sells-group/shopscan/internal/dedup"
	"github.com/sells-group/shopscan/internal/outreach"
	"github.com/sells-group/shopscan/internal/pipeline"
	"github.com/sells-group/shopscan/internal/resolve"
	"github.com/sells-group/shopscan/internal/store"
	"github.com/sells-group/shopscan/internal/throttle"
	"github.com/sells-group/shopscan/pkg/google"
)

// pipelineEnv holds everything the analyze command needs.
type pipelineEnv struct {
	Store    store.Store // may be nil
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the configured domains and templates, opens the
// cache store and builds the pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config, offline bool, opts pipeline.Options) (*pipelineEnv, error) {
	domains, err := classify.FromConfig(c.Classify)
	if err != nil {
		return nil, err
	}

	gen, err := outreach.New(c.Outreach)
	if err != nil {
		return nil, err
	}

	var client google.Client
	switch {
	case offline:
		zap.L().Info("offline mode, website lookups disabled")
	case c.Google.Key == "":
		zap.L().Warn("no google api key configured, website lookups disabled")
	default:
		var gopts []google.Option
		if c.Google.BaseURL != "" {
			gopts = append(gopts, google.WithBaseURL(c.Google.BaseURL))
		}
		client = google.NewClient(c.Google.Key, gopts...)
		zap.L().Info("google places api enabled")
	}

	env := &pipelineEnv{}
	resolveOpts := []resolve.Option{}
	if client != nil {
		st, err := store.Open(ctx, c.Store)
		if err != nil {
			return nil, eris.Wrap(err, "init store")
		}
		if st != nil {
			env.Store = st
			resolveOpts = append(resolveOpts, resolve.WithStore(st, c.Store.TTL()))
		}
	}

	resolver := resolve.New(client, throttle.NewIntervalGate(c.Resolver.MinInterval()), c.Resolver, resolveOpts...)
	env.Pipeline = pipeline.New(dedup.New(c.Ingest.PhoneRegion), resolver, domains, gen, opts)
	return env, nil
}

func sheetsOrDefault(c *config.Config) []string {
	if len(c.Ingest.Sheets) > 0 {
		return c.Ingest.Sheets
	}
	return config.DefaultSheets
}
