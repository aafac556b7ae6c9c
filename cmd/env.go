package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/api"
	"github.com/sells-group/placerank/internal/identity"
	"github.com/sells-group/placerank/internal/monitoring"
	"github.com/sells-group/placerank/internal/proxy"
	"github.com/sells-group/placerank/internal/rank"
	"github.com/sells-group/placerank/internal/search"
	"github.com/sells-group/placerank/internal/store"
)

const probeTimeout = 10 * time.Second

// sinkPolicy says whether a command can run without the result store.
type sinkPolicy int

const (
	// sinkRequired fails the command when the store cannot be opened.
	sinkRequired sinkPolicy = iota
	// sinkOptional runs without recording when the store cannot be opened.
	sinkOptional
)

// appEnv holds the wired components shared by the commands.
type appEnv struct {
	Store      store.Store
	Pool       *proxy.Pool
	Search     *search.Adapter
	Resolver   *identity.Resolver
	Recorder   *rank.Recorder
	Ranks      *rank.Service
	Discoverer *rank.Discoverer
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens the store and wires the
// search, resolution and rank components. With sinkOptional a store that
// cannot be opened is logged and results go unrecorded; Store and Recorder
// are then nil. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, policy sinkPolicy) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		if policy == sinkRequired {
			return nil, err
		}
		zap.L().Warn("result store unavailable, results will not be recorded",
			zap.String("driver", cfg.Store.Driver),
			zap.Error(err),
		)
	}

	pool := proxy.NewPool(cfg.Proxy)
	adapter := search.New(cfg.Search)
	resolver := identity.New(cfg.Resolve, adapter, pool)
	var rec *rank.Recorder
	if st != nil {
		rec = rank.NewRecorder(st, cfg.Store)
	}

	return &appEnv{
		Store:      st,
		Pool:       pool,
		Search:     adapter,
		Resolver:   resolver,
		Recorder:   rec,
		Ranks:      rank.NewService(adapter, pool, rec, cfg.Rank),
		Discoverer: rank.NewDiscoverer(resolver, adapter, pool, rec, cfg.Discovery),
	}, nil
}

// probe reports proxy health through a freshly drawn endpoint.
func (e *appEnv) probe(ctx context.Context) proxy.Status {
	return proxy.Probe(ctx, e.Pool, cfg.Proxy.ProbeURL, probeTimeout)
}

// apiDeps adapts the environment to the HTTP handlers.
func (e *appEnv) apiDeps() api.Deps {
	return api.Deps{
		Ranker:     e.Ranks,
		Discoverer: e.Discoverer,
		History:    e.Store,
		ProbeProxy: e.probe,
		PingSink:   e.Store.Ping,
	}
}

// startMonitoring runs the rank movement alert checker in the background
// until ctx is canceled. It does nothing when no webhook is configured.
func (e *appEnv) startMonitoring(ctx context.Context) {
	if cfg.Monitoring.WebhookURL == "" {
		zap.L().Debug("monitoring disabled: no webhook configured")
		return
	}
	if e.Store == nil {
		zap.L().Warn("monitoring disabled: result store unavailable")
		return
	}
	collector := monitoring.NewCollector(e.Store, e.Recorder.Breaker())
	checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
	go checker.Run(ctx)
}
