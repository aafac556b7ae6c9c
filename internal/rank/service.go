// Package rank locates a listing inside search results, scores its
// visibility and runs rank checks, competitor listings and keyword discovery
// on top of the search adapter.
package rank

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/proxy"
	"github.com/sells-group/placerank/internal/search"
)

const (
	defaultScanDepth       = 300
	defaultCompetitorLimit = 50

	// Platform tags competitor snapshots with their source.
	Platform = "naver_place"
)

// ErrInvalidRequest marks caller input problems (empty keyword, no target).
var ErrInvalidRequest = eris.New("rank: invalid request")

// Searcher runs a keyword search through an egress endpoint.
type Searcher interface {
	Search(ctx context.Context, keyword string, ep proxy.Endpoint) (*model.SearchResults, error)
}

// CheckRequest asks where Target ranks for Keyword. ScanDepth of zero uses
// the configured depth.
type CheckRequest struct {
	Keyword   string
	Target    model.Target
	ScanDepth int
}

// Service runs single rank checks and competitor listings.
type Service struct {
	searcher        Searcher
	pool            *proxy.Pool
	rec             *Recorder
	scanDepth       int
	competitorLimit int
	log             *zap.Logger
}

// NewService creates a Service. rec may be nil to skip persistence.
func NewService(searcher Searcher, pool *proxy.Pool, rec *Recorder, cfg config.RankConfig) *Service {
	depth := cfg.ScanDepth
	if depth <= 0 {
		depth = defaultScanDepth
	}
	limit := cfg.CompetitorLimit
	if limit <= 0 {
		limit = defaultCompetitorLimit
	}
	return &Service{
		searcher:        searcher,
		pool:            pool,
		rec:             rec,
		scanDepth:       depth,
		competitorLimit: limit,
		log:             zap.L().With(zap.String("component", "rank")),
	}
}

// Check searches the keyword once, evaluates the target and records the
// result. An unavailable upstream yields Found=false with a zero total and
// nothing is recorded. Sink failures are logged, never returned.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*model.RankCheckResult, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "keyword is required")
	}
	if req.Target.IsZero() {
		return nil, eris.Wrap(ErrInvalidRequest, "one of place_id, place_name or phone is required")
	}
	depth := req.ScanDepth
	if depth <= 0 {
		depth = s.scanDepth
	}

	ep := s.pool.Acquire()
	results, err := s.searcher.Search(ctx, keyword, ep)
	if errors.Is(err, search.ErrUnavailable) {
		s.log.Info("rank check upstream unavailable", zap.String("keyword", keyword), zap.Error(err))
		res := Evaluate(keyword, req.Target, nil, depth)
		res.Unavailable = true
		return &res, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "rank: check %q", keyword)
	}

	res := Evaluate(keyword, req.Target, results, depth)
	s.log.Info("rank check complete",
		zap.String("keyword", keyword),
		zap.Bool("found", res.Found),
		zap.Int("rank", res.Rank),
		zap.Int("total", res.TotalCompetitorCount),
		zap.String("source", results.Source),
		zap.String("proxy", ep.String()),
	)
	s.rec.RecordCheck(ctx, &res)
	return &res, nil
}

// Competitors returns the first limit listings for keyword in upstream order
// and records the snapshot. A limit of zero uses the configured default.
func (s *Service) Competitors(ctx context.Context, keyword string, limit int) (*model.CompetitorSnapshot, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "keyword is required")
	}
	if limit <= 0 {
		limit = s.competitorLimit
	}

	snap := &model.CompetitorSnapshot{
		Keyword:     keyword,
		Platform:    Platform,
		Competitors: []model.Competitor{},
		CreatedAt:   time.Now().UTC(),
	}

	results, err := s.searcher.Search(ctx, keyword, s.pool.Acquire())
	if errors.Is(err, search.ErrUnavailable) {
		s.log.Info("competitor search upstream unavailable", zap.String("keyword", keyword), zap.Error(err))
		return snap, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "rank: competitors %q", keyword)
	}

	snap.Total = results.Total
	for i, e := range results.Entries {
		if i >= limit {
			break
		}
		snap.Competitors = append(snap.Competitors, model.Competitor{
			Rank:            i + 1,
			ID:              e.ID,
			Name:            e.Name,
			Phone:           e.Phone,
			Address:         e.Address,
			Category:        e.Category,
			ReviewCount:     e.ReviewCount,
			BlogReviewCount: e.BlogReviewCount,
			Rating:          e.Rating,
			IsAd:            e.IsAd,
		})
	}
	s.rec.RecordSnapshot(ctx, snap)
	return snap, nil
}
