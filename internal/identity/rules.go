package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// ExtractRule pulls a listing identifier out of raw input. u is nil when raw
// does not parse as a URL.
type ExtractRule interface {
	Name() string
	Extract(raw string, u *url.URL) (string, bool)
}

type pathRule struct {
	re *regexp.Regexp
}

// PathRule matches a numeric identifier in a path segment following one of
// the given listing kinds, e.g. /place/123 or /restaurant/123.
func PathRule(kinds ...string) ExtractRule {
	pattern := `/(?:` + strings.Join(kinds, "|") + `)/(\d+)`
	return pathRule{re: regexp.MustCompile(pattern)}
}

func (pathRule) Name() string { return "path" }

func (r pathRule) Extract(_ string, u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	// Fragments sometimes carry the SPA route.
	for _, s := range []string{u.Path, u.Fragment} {
		if m := r.re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

type queryRule struct {
	keys []string
}

// QueryRule matches a numeric identifier in one of the given query parameters.
func QueryRule(keys ...string) ExtractRule {
	return queryRule{keys: keys}
}

func (queryRule) Name() string { return "query" }

func (r queryRule) Extract(_ string, u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	q := u.Query()
	for _, k := range r.keys {
		if v := q.Get(k); isNumeric(v) {
			return v, true
		}
	}
	return "", false
}

type bareRule struct {
	minDigits int
}

// BareIDRule accepts input that is itself a numeric identifier of at least
// minDigits digits.
func BareIDRule(minDigits int) ExtractRule {
	return bareRule{minDigits: minDigits}
}

func (bareRule) Name() string { return "bare" }

func (r bareRule) Extract(raw string, _ *url.URL) (string, bool) {
	if len(raw) >= r.minDigits && isNumeric(raw) {
		return raw, true
	}
	return "", false
}

// DefaultRules returns the rules applied in order: path segment, query
// parameter, bare numeric ID.
func DefaultRules() []ExtractRule {
	return []ExtractRule{
		PathRule("place", "restaurant", "cafe", "hairshop", "hospital", "accommodation", "nailshop", "beauty"),
		QueryRule("placeId", "placeid", "id"),
		BareIDRule(5),
	}
}

// hostMatches reports whether host is one of hosts or a subdomain of one.
func hostMatches(host string, hosts []string) bool {
	host = strings.ToLower(host)
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseInput parses raw as a URL, assuming https when the scheme is missing.
// It returns nil for input that is not URL-shaped.
func parseInput(raw string) *url.URL {
	if isNumeric(raw) {
		return nil
	}
	s := raw
	if !strings.Contains(s, "://") {
		if !strings.Contains(s, ".") {
			return nil
		}
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// applyRules runs rules against raw. URL input is only considered when
// hostAllowed accepts its host.
func applyRules(rules []ExtractRule, raw string, hostAllowed func(host string) bool) (string, string, bool) {
	u := parseInput(raw)
	if u != nil && !hostAllowed(u.Hostname()) {
		return "", "", false
	}
	for _, r := range rules {
		if id, ok := r.Extract(raw, u); ok {
			return id, r.Name(), true
		}
	}
	return "", "", false
}
