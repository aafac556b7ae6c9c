// Package monitoring watches recorded rank checks for movements worth an
// alert and delivers those alerts to a webhook.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/resilience"
)

// RankMovement compares the two most recent checks of one keyword/listing
// pair. A rank of zero means the listing was not found.
type RankMovement struct {
	Keyword    string       `json:"keyword"`
	Target     model.Target `json:"target"`
	PlaceName  string       `json:"place_name,omitempty"`
	Previous   int          `json:"previous_rank"`
	Current    int          `json:"current_rank"`
	PreviousAt time.Time    `json:"previous_at"`
	CurrentAt  time.Time    `json:"current_at"`
}

// Dropped returns how many positions the listing fell. It is zero unless
// both checks found the listing.
func (m RankMovement) Dropped() int {
	if m.Previous == 0 || m.Current == 0 {
		return 0
	}
	return max(m.Current-m.Previous, 0)
}

// Lost reports whether the listing was found before and is gone now.
func (m RankMovement) Lost() bool {
	return m.Previous > 0 && m.Current == 0
}

// Snapshot holds a point-in-time view of rank movements and sink health.
type Snapshot struct {
	Checks        int            `json:"checks"`
	NotFound      int            `json:"not_found"`
	Movements     []RankMovement `json:"movements"`
	SinkState     string         `json:"sink_state,omitempty"`
	LookbackHours int            `json:"lookback_hours"`
	CollectedAt   time.Time      `json:"collected_at"`
}

// HistoryQuerier reads recorded rank checks, newest first.
type HistoryQuerier interface {
	QueryChecks(ctx context.Context, keyword string, since time.Time) ([]model.RankCheckResult, error)
}

// Collector gathers rank movements from the history store.
type Collector struct {
	history HistoryQuerier
	breaker *resilience.CircuitBreaker
}

// NewCollector creates a Collector. breaker may be nil; when set, its state
// is reported as the sink state.
func NewCollector(history HistoryQuerier, breaker *resilience.CircuitBreaker) *Collector {
	return &Collector{history: history, breaker: breaker}
}

// Collect gathers movements for every keyword/listing pair checked at least
// twice within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
		Movements:     []RankMovement{},
	}
	if c.breaker != nil {
		snap.SinkState = c.breaker.State().String()
	}

	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)
	checks, err := c.history.QueryChecks(ctx, "", cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: query checks")
	}
	snap.Checks = len(checks)

	type pairKey struct {
		keyword string
		target  model.Target
	}
	latest := make(map[pairKey][]model.RankCheckResult)
	var order []pairKey
	for _, r := range checks {
		if !r.Found {
			snap.NotFound++
		}
		k := pairKey{keyword: r.Keyword, target: r.Target}
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		if len(latest[k]) < 2 {
			latest[k] = append(latest[k], r)
		}
	}

	for _, k := range order {
		pair := latest[k]
		if len(pair) < 2 {
			continue
		}
		cur, prev := pair[0], pair[1]
		if cur.CheckedAt.Before(prev.CheckedAt) {
			cur, prev = prev, cur
		}
		name := cur.PlaceName
		if name == "" {
			name = prev.PlaceName
		}
		snap.Movements = append(snap.Movements, RankMovement{
			Keyword:    k.keyword,
			Target:     k.target,
			PlaceName:  name,
			Previous:   prev.Rank,
			Current:    cur.Rank,
			PreviousAt: prev.CheckedAt,
			CurrentAt:  cur.CheckedAt,
		})
	}

	sort.SliceStable(snap.Movements, func(i, j int) bool {
		return snap.Movements[i].CurrentAt.After(snap.Movements[j].CurrentAt)
	})
	return snap, nil
}
