package rank

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/placerank/internal/model"
)

type matchRule struct {
	name  model.MatchRule
	match func(t model.Target, e model.SearchResultEntry) bool
}

// matchRules are applied to each entry in order; the first hit wins.
var matchRules = []matchRule{
	{model.MatchByID, func(t model.Target, e model.SearchResultEntry) bool {
		return t.ID != "" && strings.Contains(e.ID, t.ID)
	}},
	{model.MatchByName, func(t model.Target, e model.SearchResultEntry) bool {
		name := strings.TrimSpace(norm.NFC.String(t.Name))
		return name != "" && strings.Contains(norm.NFC.String(e.Name), name)
	}},
	{model.MatchByPhone, func(t model.Target, e model.SearchResultEntry) bool {
		want := digits(t.Phone)
		return want != "" && strings.Contains(digits(e.Phone), want)
	}},
}

// Match scans entries in order, at most scanDepth of them, and returns the
// 0-based index of the first entry that matches target along with the rule
// that matched.
func Match(target model.Target, entries []model.SearchResultEntry, scanDepth int) (int, model.MatchRule, bool) {
	if scanDepth > len(entries) {
		scanDepth = len(entries)
	}
	for i := 0; i < scanDepth; i++ {
		for _, r := range matchRules {
			if r.match(target, entries[i]) {
				return i, r.name, true
			}
		}
	}
	return -1, "", false
}

// Evaluate locates target in results and scores the match. An unmatched
// target yields Found=false with the upstream total still recorded.
func Evaluate(keyword string, target model.Target, results *model.SearchResults, scanDepth int) model.RankCheckResult {
	out := model.RankCheckResult{
		Keyword:   keyword,
		Target:    target,
		CheckedAt: time.Now().UTC(),
	}
	if results == nil {
		return out
	}
	out.TotalCompetitorCount = max(results.Total, 0)

	idx, rule, ok := Match(target, results.Entries, scanDepth)
	if !ok {
		return out
	}

	e := results.Entries[idx]
	rank := idx + 1
	s := Score(keyword, e.Name, e.ReviewCount, e.BlogReviewCount, rank, out.TotalCompetitorCount)

	out.Found = true
	out.Rank = rank
	out.PlaceID = e.ID
	out.PlaceName = e.Name
	out.N1, out.N2, out.N3 = s.N1, s.N2, s.N3
	out.VisitorReviews = max(e.ReviewCount, 0)
	out.BlogReviews = max(e.BlogReviewCount, 0)
	out.IsAd = e.IsAd
	out.MatchedBy = rule
	return out
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
