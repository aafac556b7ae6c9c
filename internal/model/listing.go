package model

// ListingIdentity is the canonical identity of a business listing on the
// map search platform. ID is the only reliable matching key.
type ListingIdentity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category []string `json:"category"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// Target returns the matching hints for this identity.
func (l ListingIdentity) Target() Target {
	return Target{ID: l.ID, Name: l.Name, Phone: l.Phone}
}

// Target holds the hints used to locate a listing inside a result list.
// Empty fields disable the corresponding match rule.
type Target struct {
	ID    string `json:"place_id,omitempty"`
	Name  string `json:"place_name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsZero reports whether no hint is set.
func (t Target) IsZero() bool {
	return t.ID == "" && t.Name == "" && t.Phone == ""
}

// SearchResultEntry is one row of an upstream result list. Its position in
// SearchResults.Entries is the rank signal.
type SearchResultEntry struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Phone           string   `json:"phone,omitempty"`
	Category        []string `json:"category,omitempty"`
	Address         string   `json:"address,omitempty"`
	ReviewCount     int      `json:"review_count"`
	BlogReviewCount int      `json:"blog_review_count"`
	Rating          float64  `json:"rating"`
	IsAd            bool     `json:"is_ad"`
}

// SearchResults is a normalized upstream response for one keyword.
type SearchResults struct {
	Keyword string              `json:"keyword"`
	Entries []SearchResultEntry `json:"entries"`
	Total   int                 `json:"total"`  // upstream-reported total count
	Source  string              `json:"source"` // endpoint variant that answered
}
