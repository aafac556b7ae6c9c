package rank

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Score weights. Changing any of these changes historical comparability of
// stored checks.
const (
	maxComponent = 0.5

	relevanceBase     = 0.2
	relevancePerToken = 0.08
	relevanceReviews  = 10000.0
	relevanceCap      = 0.1

	popularityBase    = 0.2
	popularityReviews = 5000.0
	popularityRevCap  = 0.12
	popularityBlog    = 3000.0
	popularityBlogCap = 0.1
)

// Scores holds the three visibility components, each within [0, 0.5].
type Scores struct {
	N1 float64 // keyword relevance
	N2 float64 // review popularity
	N3 float64 // position within the total result count
}

// Score computes the visibility components for a listing named name that sits
// at 1-based rank out of total results for keyword. Negative counts are
// treated as zero.
func Score(keyword, name string, visitorReviews, blogReviews, rank, total int) Scores {
	v := float64(max(visitorReviews, 0))
	b := float64(max(blogReviews, 0))

	name = norm.NFC.String(name)
	tokens := 0
	for _, tok := range strings.Fields(norm.NFC.String(keyword)) {
		if strings.Contains(name, tok) {
			tokens++
		}
	}

	n1 := relevanceBase + relevancePerToken*float64(tokens) + math.Min(v/relevanceReviews, relevanceCap)
	n2 := popularityBase + math.Min(v/popularityReviews, popularityRevCap) + math.Min(b/popularityBlog, popularityBlogCap)

	var n3 float64
	if total > 0 && rank > 0 {
		n3 = round(math.Max(0, 1-float64(rank)/float64(total))*maxComponent, 3)
	}

	return Scores{
		N1: round(clamp(n1), 6),
		N2: round(clamp(n2), 6),
		N3: clamp(n3),
	}
}

func clamp(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return math.Min(x, maxComponent)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
