// Package keyword derives candidate search keywords from a listing's
// category, name and address.
package keyword

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/placerank/internal/model"
)

const (
	maxLocalities      = 3
	maxBaseTerms       = 10
	modifierLocalities = 2
)

// adminSuffixes are the final characters of Korean administrative and road
// units: city, province, county, district, neighborhood, town, township,
// village, road, street and street section.
var adminSuffixes = map[rune]bool{
	'시': true, '도': true, '군': true, '구': true, '동': true, '읍': true,
	'면': true, '리': true, '로': true, '길': true, '가': true,
}

// metroNames are metropolitan and province short names as they appear in
// addresses ("서울 강남구 ...").
var metroNames = map[string]bool{
	"서울": true, "부산": true, "대구": true, "인천": true, "광주": true, "대전": true,
	"울산": true, "세종": true, "제주": true, "경기": true, "강원": true, "충북": true,
	"충남": true, "전북": true, "전남": true, "경북": true, "경남": true,
}

// Generator builds keyword candidates. The zero value is ready to use.
type Generator struct {
	// Modifiers are appended to the leading localities ("<locality> <modifier>")
	// after the core keywords.
	Modifiers []string
}

// Generate returns up to maxCount deduplicated keywords for ident using a
// Generator without modifiers.
func Generate(ident model.ListingIdentity, maxCount int) []string {
	return Generator{}.Generate(ident, maxCount)
}

// Generate returns up to maxCount keywords in priority order: locality and
// base term pairs, base terms alone, the full name, then modifier pairs.
// Output is deterministic for a given identity.
func (g Generator) Generate(ident model.ListingIdentity, maxCount int) []string {
	if maxCount <= 0 {
		return []string{}
	}

	name := clean(ident.Name)
	bases := BaseTerms(ident)
	locs := LocalityTerms(ident.Address)

	out := newOrderedSet(maxCount)

	for _, loc := range head(locs, maxLocalities) {
		for _, base := range head(bases, maxBaseTerms) {
			out.add(loc + " " + base)
		}
	}
	for _, base := range bases {
		out.add(base)
	}
	out.add(name)
	for _, loc := range head(locs, modifierLocalities) {
		for _, mod := range g.Modifiers {
			out.add(loc + " " + clean(mod))
		}
	}

	return out.items
}

// BaseTerms returns each category followed by each name token longer than
// one character, deduplicated in first-seen order.
func BaseTerms(ident model.ListingIdentity) []string {
	set := newOrderedSet(0)
	for _, c := range ident.Category {
		set.add(clean(c))
	}
	for _, tok := range strings.Fields(clean(ident.Name)) {
		if utf8.RuneCountInString(tok) > 1 {
			set.add(tok)
		}
	}
	return set.items
}

// LocalityTerms returns address tokens longer than one character that end in
// an administrative suffix or name a metropolitan area.
func LocalityTerms(address string) []string {
	set := newOrderedSet(0)
	for _, tok := range strings.Fields(clean(address)) {
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		last, _ := utf8.DecodeLastRuneInString(tok)
		if adminSuffixes[last] || metroNames[tok] {
			set.add(tok)
		}
	}
	return set.items
}

func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// orderedSet keeps first-seen order and stops accepting at limit (0 = no limit).
type orderedSet struct {
	items []string
	seen  map[string]bool
	limit int
}

func newOrderedSet(limit int) *orderedSet {
	return &orderedSet{items: []string{}, seen: map[string]bool{}, limit: limit}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	if s.limit > 0 && len(s.items) >= s.limit {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
