package model

import "time"

// PlacementType distinguishes earned positions from purchased ones.
type PlacementType string

const (
	PlacementOrganic PlacementType = "organic"
	PlacementPaid    PlacementType = "cpc"
)

// Competition is an approximate competition level for a keyword.
type Competition string

const (
	CompetitionLow    Competition = "low"
	CompetitionMedium Competition = "medium"
	CompetitionHigh   Competition = "high"
)

// CompetitionFor approximates competition from the upstream total count.
func CompetitionFor(total int) Competition {
	switch {
	case total < 50:
		return CompetitionLow
	case total < 300:
		return CompetitionMedium
	default:
		return CompetitionHigh
	}
}

// KeywordCandidate is a generated keyword awaiting evaluation.
type KeywordCandidate struct {
	Keyword string `json:"keyword"`
	Index   int    `json:"-"` // generation order
}

// DiscoveredKeyword is a keyword for which the listing ranks within the
// requested limit.
type DiscoveredKeyword struct {
	Keyword              string        `json:"keyword"`
	Rank                 int           `json:"rank"`
	Type                 PlacementType `json:"type"`
	TotalCompetitorCount int           `json:"total_biz"`
	MonthlySearch        int           `json:"monthly_search"` // 0 when unknown
	Competition          Competition   `json:"competition"`
}

// DiscoveryStats summarizes one discovery run.
type DiscoveryStats struct {
	Generated   int `json:"generated"`
	Qualified   int `json:"qualified"`
	CPCExcluded int `json:"cpc_excluded"`
	OutOfRank   int `json:"out_of_rank"`
	Unavailable int `json:"unavailable"`
}

// DiscoveryReport is the output of a keyword discovery run.
type DiscoveryReport struct {
	ID        string              `json:"id,omitempty"`
	PlaceURL  string              `json:"place_url"`
	Place     ListingIdentity     `json:"place"`
	Stats     DiscoveryStats      `json:"stats"`
	Keywords  []DiscoveredKeyword `json:"keywords"`
	CreatedAt time.Time           `json:"created_at"`
}
