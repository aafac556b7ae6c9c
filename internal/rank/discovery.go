package rank

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/keyword"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/proxy"
	"github.com/sells-group/placerank/internal/search"
)

// Resolver turns raw listing input into an identity.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*model.ListingIdentity, error)
}

// DiscoverRequest asks which generated keywords the listing at PlaceURL
// ranks for within RankLimit. Zero values use the configured defaults.
type DiscoverRequest struct {
	PlaceURL     string
	KeywordCount int
	RankLimit    int
}

// Discoverer generates candidate keywords for a listing and checks each one
// concurrently.
type Discoverer struct {
	resolver Resolver
	searcher Searcher
	pool     *proxy.Pool
	rec      *Recorder
	gen      keyword.Generator
	cfg      config.DiscoveryConfig
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewDiscoverer creates a Discoverer. A positive RequestsPerSecond enables
// outbound throttling across all workers.
func NewDiscoverer(resolver Resolver, searcher Searcher, pool *proxy.Pool, rec *Recorder, cfg config.DiscoveryConfig) *Discoverer {
	if cfg.KeywordCount <= 0 {
		cfg.KeywordCount = 30
	}
	if cfg.RankLimit <= 0 {
		cfg.RankLimit = 5
	}
	if cfg.ScanDepth <= 0 {
		cfg.ScanDepth = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	d := &Discoverer{
		resolver: resolver,
		searcher: searcher,
		pool:     pool,
		rec:      rec,
		gen:      keyword.Generator{Modifiers: cfg.Modifiers},
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "discovery")),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(int(cfg.RequestsPerSecond), 1)
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return d
}

type outcome int

const (
	outcomeOutOfRank outcome = iota
	outcomeQualified
	outcomePaid
	outcomeUnavailable
)

type candidateResult struct {
	cand    model.KeywordCandidate
	outcome outcome
	rank    int
	total   int
}

// Discover resolves the listing, generates keywords and checks them with a
// bounded worker pool. A failed keyword never aborts the run. Paid
// placements are counted but excluded from the returned keywords, which are
// sorted by rank and then by generation order.
func (d *Discoverer) Discover(ctx context.Context, req DiscoverRequest) (*model.DiscoveryReport, error) {
	placeURL := strings.TrimSpace(req.PlaceURL)
	count := req.KeywordCount
	if count <= 0 {
		count = d.cfg.KeywordCount
	}
	limit := req.RankLimit
	if limit <= 0 {
		limit = d.cfg.RankLimit
	}
	depth := max(d.cfg.ScanDepth, limit)

	ident, err := d.resolver.Resolve(ctx, placeURL)
	if err != nil {
		return nil, err
	}

	keywords := d.gen.Generate(*ident, count)
	target := ident.Target()
	d.log.Info("discovery started",
		zap.String("place_id", ident.ID),
		zap.String("place_name", ident.Name),
		zap.Int("keywords", len(keywords)),
		zap.Int("concurrency", d.cfg.Concurrency),
	)

	var (
		mu      sync.Mutex
		results = make([]candidateResult, 0, len(keywords))
	)

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, kw := range keywords {
		cand := model.KeywordCandidate{Keyword: kw, Index: i}
		g.Go(func() error {
			r := d.evaluate(ctx, cand, target, depth, limit)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "rank: discovery canceled")
	}

	report := buildReport(placeURL, *ident, results)
	report.Stats.Generated = len(keywords)

	d.log.Info("discovery complete",
		zap.String("place_id", ident.ID),
		zap.Int("qualified", report.Stats.Qualified),
		zap.Int("cpc_excluded", report.Stats.CPCExcluded),
		zap.Int("out_of_rank", report.Stats.OutOfRank),
		zap.Int("unavailable", report.Stats.Unavailable),
	)
	d.rec.RecordDiscovery(ctx, report)
	return report, nil
}

func (d *Discoverer) evaluate(ctx context.Context, cand model.KeywordCandidate, target model.Target, depth, limit int) candidateResult {
	res := candidateResult{cand: cand, outcome: outcomeUnavailable}
	log := d.log.With(zap.String("keyword", cand.Keyword))

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Debug("rate limiter wait aborted", zap.Error(err))
			return res
		}
	}

	results, err := d.searcher.Search(ctx, cand.Keyword, d.pool.Acquire())
	if err != nil {
		if !errors.Is(err, search.ErrUnavailable) {
			log.Warn("keyword search failed", zap.Error(err))
		}
		return res
	}

	res.total = max(results.Total, 0)
	idx, _, ok := Match(target, results.Entries, depth)
	if !ok || idx+1 > limit {
		res.outcome = outcomeOutOfRank
		return res
	}
	res.rank = idx + 1
	if results.Entries[idx].IsAd {
		res.outcome = outcomePaid
	} else {
		res.outcome = outcomeQualified
	}
	return res
}

func buildReport(placeURL string, ident model.ListingIdentity, results []candidateResult) *model.DiscoveryReport {
	sort.Slice(results, func(i, j int) bool {
		if results[i].rank != results[j].rank {
			return results[i].rank < results[j].rank
		}
		return results[i].cand.Index < results[j].cand.Index
	})

	report := &model.DiscoveryReport{
		PlaceURL:  placeURL,
		Place:     ident,
		Keywords:  []model.DiscoveredKeyword{},
		CreatedAt: time.Now().UTC(),
	}
	for _, r := range results {
		switch r.outcome {
		case outcomeQualified:
			report.Keywords = append(report.Keywords, model.DiscoveredKeyword{
				Keyword:              r.cand.Keyword,
				Rank:                 r.rank,
				Type:                 model.PlacementOrganic,
				TotalCompetitorCount: r.total,
				Competition:          model.CompetitionFor(r.total),
			})
		case outcomePaid:
			report.Stats.CPCExcluded++
		case outcomeOutOfRank:
			report.Stats.OutOfRank++
		case outcomeUnavailable:
			report.Stats.Unavailable++
		}
	}
	report.Stats.Qualified = len(report.Keywords)
	return report
}
