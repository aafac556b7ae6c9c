package model

import "time"

// MatchRule names the rule that located a listing in a result list.
type MatchRule string

const (
	MatchByID    MatchRule = "id"
	MatchByName  MatchRule = "name"
	MatchByPhone MatchRule = "phone"
)

// RankCheckResult is the outcome of a single point-in-time rank check.
// Rank is 1-based and zero when Found is false.
type RankCheckResult struct {
	ID                   string    `json:"id,omitempty"`
	Keyword              string    `json:"keyword"`
	Found                bool      `json:"found"`
	Rank                 int       `json:"rank,omitempty"`
	PlaceID              string    `json:"place_id,omitempty"`
	PlaceName            string    `json:"place_name,omitempty"`
	N1                   float64   `json:"n1"`
	N2                   float64   `json:"n2"`
	N3                   float64   `json:"n3"`
	VisitorReviews       int       `json:"visitor_reviews"`
	BlogReviews          int       `json:"blog_reviews"`
	TotalCompetitorCount int       `json:"total_biz"`
	IsAd                 bool      `json:"is_ad,omitempty"`
	MatchedBy            MatchRule `json:"matched_by,omitempty"`
	Unavailable          bool      `json:"unavailable,omitempty"`
	Target               Target    `json:"target"`
	CheckedAt            time.Time `json:"checked_at"`
}

// Competitor is one listing returned for a keyword, in upstream order.
type Competitor struct {
	Rank            int      `json:"rank"`
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Phone           string   `json:"tel,omitempty"`
	Address         string   `json:"address,omitempty"`
	Category        []string `json:"category,omitempty"`
	ReviewCount     int      `json:"review_count"`
	BlogReviewCount int      `json:"blog_review_count"`
	Rating          float64  `json:"rating"`
	IsAd            bool     `json:"is_ad"`
}

// CompetitorSnapshot is a persisted competitor listing for a keyword.
type CompetitorSnapshot struct {
	ID          string       `json:"id,omitempty"`
	Keyword     string       `json:"keyword"`
	Platform    string       `json:"platform"`
	Total       int          `json:"total_biz"`
	Competitors []Competitor `json:"sellers"`
	CreatedAt   time.Time    `json:"created_at"`
}
