package watch

import (
	"context"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/rank"
)

// Checker runs a single rank check.
type Checker interface {
	Check(ctx context.Context, req rank.CheckRequest) (*model.RankCheckResult, error)
}

// Scheduler runs every entry on its cron schedule. Runs are independent;
// a failed check is logged and the schedule continues.
type Scheduler struct {
	cron    *cron.Cron
	checker Checker
	entries []Entry
	log     *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates a Scheduler and registers all entries. Both 5-field and
// 6-field (with seconds) specs are accepted.
func New(checker Checker, entries []Entry, defaultSchedule string) (*Scheduler, error) {
	log := zap.L().With(zap.String("component", "watch"))
	clog := cronLogger{log.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		checker: checker,
		entries: entries,
		log:     log,
		ctx:     context.Background(),
	}

	for _, e := range entries {
		spec := e.Schedule
		if spec == "" {
			spec = defaultSchedule
		}
		if spec == "" {
			return nil, eris.Errorf("watch: %s: no schedule", e.Label())
		}
		entry := e
		if _, err := s.cron.AddFunc(normalizeCron(spec), func() { s.RunOnce(s.runContext(), entry) }); err != nil {
			return nil, eris.Wrapf(err, "watch: %s: schedule %q", e.Label(), spec)
		}
	}
	return s, nil
}

// normalizeCron prepends "0 " to standard 5-field cron expressions so they
// work with the 6-field (with seconds) parser.
func normalizeCron(schedule string) string {
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Len returns the number of scheduled entries.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is canceled, then waits for
// running checks to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("watch started", zap.Int("entries", s.Len()))
	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.log.Info("watch stopped")
}

// RunAll checks every entry once, sequentially.
func (s *Scheduler) RunAll(ctx context.Context) []*model.RankCheckResult {
	out := make([]*model.RankCheckResult, 0, len(s.entries))
	for _, e := range s.entries {
		if ctx.Err() != nil {
			break
		}
		if res := s.RunOnce(ctx, e); res != nil {
			out = append(out, res)
		}
	}
	return out
}

// RunOnce checks a single entry. Errors are logged and nil is returned.
func (s *Scheduler) RunOnce(ctx context.Context, e Entry) *model.RankCheckResult {
	res, err := s.checker.Check(ctx, e.Request())
	if err != nil {
		s.log.Warn("watch check failed", zap.String("entry", e.Label()), zap.Error(err))
		return nil
	}
	s.log.Info("watch check",
		zap.String("entry", e.Label()),
		zap.Bool("found", res.Found),
		zap.Int("rank", res.Rank),
		zap.Int("total_biz", res.TotalCompetitorCount),
		zap.Bool("unavailable", res.Unavailable),
	)
	return res
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
