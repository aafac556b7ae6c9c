package rank

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/resilience"
)

// Sink is the append side of the result store.
type Sink interface {
	AppendCheck(ctx context.Context, r *model.RankCheckResult) error
	AppendDiscovery(ctx context.Context, r *model.DiscoveryReport) error
	AppendSnapshot(ctx context.Context, s *model.CompetitorSnapshot) error
}

// Recorder writes results to a Sink without ever failing the caller.
// Transient failures are retried; a circuit breaker stops writes while the
// sink is down. A nil Recorder discards everything.
type Recorder struct {
	sink    Sink
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	log     *zap.Logger
}

// NewRecorder wraps sink with the retry, breaker and timeout policies from cfg.
func NewRecorder(sink Sink, cfg config.StoreConfig) *Recorder {
	retry, breaker := resilience.SinkPolicies(cfg)
	timeout := time.Duration(cfg.WriteTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		sink:    sink,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breaker),
		timeout: timeout,
		log:     zap.L().With(zap.String("component", "recorder")),
	}
}

// Breaker exposes the circuit state for health reporting.
func (r *Recorder) Breaker() *resilience.CircuitBreaker {
	if r == nil {
		return nil
	}
	return r.breaker
}

// RecordCheck appends a rank check result.
func (r *Recorder) RecordCheck(ctx context.Context, res *model.RankCheckResult) bool {
	if r == nil {
		return false
	}
	return r.write(ctx, "check", func(ctx context.Context) error {
		return r.sink.AppendCheck(ctx, res)
	})
}

// RecordDiscovery appends a discovery report.
func (r *Recorder) RecordDiscovery(ctx context.Context, rep *model.DiscoveryReport) bool {
	if r == nil {
		return false
	}
	return r.write(ctx, "discovery", func(ctx context.Context) error {
		return r.sink.AppendDiscovery(ctx, rep)
	})
}

// RecordSnapshot appends a competitor snapshot.
func (r *Recorder) RecordSnapshot(ctx context.Context, snap *model.CompetitorSnapshot) bool {
	if r == nil {
		return false
	}
	return r.write(ctx, "snapshot", func(ctx context.Context) error {
		return r.sink.AppendSnapshot(ctx, snap)
	})
}

// write runs fn under the breaker with retries. The caller's cancellation is
// ignored so a finished request still gets its result stored.
func (r *Recorder) write(ctx context.Context, kind string, fn func(ctx context.Context) error) bool {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	err := r.breaker.Execute(wctx, func(ctx context.Context) error {
		return resilience.Do(ctx, r.retry, fn)
	})
	if err != nil {
		r.log.Warn("result not recorded", zap.String("kind", kind), zap.Error(err))
		return false
	}
	return true
}
