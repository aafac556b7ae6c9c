package search

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/placerank/internal/model"
)

// AdPredicate reports whether a raw result entry is a paid placement.
type AdPredicate func(entry gjson.Result) bool

// DefaultAdPredicate flags entries carrying an ad marker or an ad id.
func DefaultAdPredicate(entry gjson.Result) bool {
	if entry.Get("isAdPlace").Bool() || entry.Get("isAd").Bool() {
		return true
	}
	ad := entry.Get("adId")
	return ad.Exists() && ad.Type != gjson.Null && ad.String() != ""
}

var (
	errInvalidJSON = eris.New("invalid json")
	errEmptyList   = eris.New("missing or empty result list")
)

// parseResults extracts the ordered entries and the upstream total count from
// a response body using the declarative paths of one variant.
func parseResults(body []byte, listPath, totalPath string, isAd AdPredicate) ([]model.SearchResultEntry, int, error) {
	if !gjson.ValidBytes(body) {
		return nil, 0, errInvalidJSON
	}

	list := gjson.GetBytes(body, listPath)
	if !list.IsArray() {
		return nil, 0, errEmptyList
	}
	items := list.Array()
	if len(items) == 0 {
		return nil, 0, errEmptyList
	}

	entries := make([]model.SearchResultEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, parseEntry(item, isAd))
	}

	total := 0
	if totalPath != "" {
		total = toInt(gjson.GetBytes(body, totalPath))
	}
	return entries, total, nil
}

func parseEntry(item gjson.Result, isAd AdPredicate) model.SearchResultEntry {
	return model.SearchResultEntry{
		ID:              firstString(item, "id", "sid", "placeId"),
		Name:            firstString(item, "name", "title"),
		Phone:           firstString(item, "tel", "telDisplay", "phone", "virtualTel"),
		Category:        categories(item.Get("category")),
		Address:         firstString(item, "address", "roadAddress", "commonAddress"),
		ReviewCount:     firstInt(item, "reviewCount", "visitorReviewCount"),
		BlogReviewCount: firstInt(item, "blogReviewCount", "blogCafeReviewCount"),
		Rating:          toFloat(item.Get("rating")),
		IsAd:            isAd(item),
	}
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(item.Get(k).String()); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(item gjson.Result, keys ...string) int {
	for _, k := range keys {
		if r := item.Get(k); r.Exists() && r.Type != gjson.Null {
			return toInt(r)
		}
	}
	return 0
}

// categories accepts either an array or a delimited string such as "카페,디저트".
func categories(r gjson.Result) []string {
	var raw []string
	switch {
	case r.IsArray():
		for _, c := range r.Array() {
			raw = append(raw, c.String())
		}
	case r.Type == gjson.String:
		raw = strings.FieldsFunc(r.String(), func(c rune) bool { return c == ',' || c == '>' })
	}

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toInt(r gjson.Result) int {
	return int(toFloat(r))
}

// toFloat reads numbers that may arrive as strings with thousands separators.
func toFloat(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Num
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(r.Str), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
