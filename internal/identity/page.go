package identity

import (
	"bytes"
	"mime"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/htmlindex"
)

// Partial is the subset of listing fields one extractor could recover.
type Partial struct {
	Name     string
	Category []string
	Address  string
	Phone    string
}

func (p Partial) empty() bool {
	return p.Name == "" && len(p.Category) == 0 && p.Address == "" && p.Phone == ""
}

// PageExtractor recovers listing fields from a detail page.
type PageExtractor interface {
	Name() string
	Extract(html string) (Partial, bool)
}

// DefaultExtractors returns the extractors tried in order on a detail page.
func DefaultExtractors(titleSuffixes []string) []PageExtractor {
	return []PageExtractor{
		OpenGraphExtractor{TitleSuffixes: titleSuffixes},
		JSONLDExtractor{},
		EmbeddedStateExtractor{},
	}
}

// OpenGraphExtractor reads og: meta tags, falling back to <title>.
type OpenGraphExtractor struct {
	TitleSuffixes []string
}

func (OpenGraphExtractor) Name() string { return "opengraph" }

func (e OpenGraphExtractor) Extract(html string) (Partial, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Partial{}, false
	}

	meta := func(prop string) string {
		v, _ := doc.Find(`meta[property="` + prop + `"]`).First().Attr("content")
		return strings.TrimSpace(v)
	}

	title := meta("og:title")
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	for _, suffix := range e.TitleSuffixes {
		title = strings.TrimSpace(strings.TrimSuffix(title, suffix))
	}

	p := Partial{Name: title}
	if addr := meta("place:location:address"); addr != "" {
		p.Address = addr
	}
	return p, !p.empty()
}

// JSONLDExtractor reads schema.org LocalBusiness blocks.
type JSONLDExtractor struct{}

func (JSONLDExtractor) Name() string { return "jsonld" }

func (JSONLDExtractor) Extract(html string) (Partial, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Partial{}, false
	}

	var p Partial
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if !gjson.Valid(raw) {
			return true
		}
		node := gjson.Parse(raw)
		if node.IsArray() {
			node = node.Get("0")
		}
		if g := node.Get("@graph"); g.IsArray() {
			node = g.Get("0")
		}

		p.Name = strings.TrimSpace(node.Get("name").String())
		p.Phone = strings.TrimSpace(node.Get("telephone").String())

		addr := node.Get("address")
		if addr.IsObject() {
			parts := []string{}
			for _, k := range []string{"addressRegion", "addressLocality", "streetAddress"} {
				if v := strings.TrimSpace(addr.Get(k).String()); v != "" {
					parts = append(parts, v)
				}
			}
			p.Address = strings.Join(parts, " ")
		} else {
			p.Address = strings.TrimSpace(addr.String())
		}

		for _, k := range []string{"servesCuisine", "category"} {
			c := node.Get(k)
			if c.IsArray() {
				for _, v := range c.Array() {
					p.Category = append(p.Category, v.String())
				}
			} else if c.String() != "" {
				p.Category = append(p.Category, c.String())
			}
		}
		return p.empty()
	})
	return p, !p.empty()
}

var (
	stateName     = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	stateCategory = regexp.MustCompile(`"category"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	stateAddress  = regexp.MustCompile(`"(?:roadAddress|address)"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	statePhone    = regexp.MustCompile(`"(?:phone|virtualPhone)"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	stateMarker   = regexp.MustCompile(`window\.__APOLLO_STATE__\s*=`)
)

// EmbeddedStateExtractor pattern-matches fields out of the client state
// blob that detail pages embed in a script tag.
type EmbeddedStateExtractor struct{}

func (EmbeddedStateExtractor) Name() string { return "embedded_state" }

func (EmbeddedStateExtractor) Extract(html string) (Partial, bool) {
	blob := html
	if loc := stateMarker.FindStringIndex(html); loc != nil {
		blob = html[loc[1]:]
	}

	find := func(re *regexp.Regexp) string {
		m := re.FindStringSubmatch(blob)
		if m == nil {
			return ""
		}
		if s, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(m[1])
	}

	p := Partial{
		Name:    find(stateName),
		Address: find(stateAddress),
		Phone:   find(statePhone),
	}
	if c := find(stateCategory); c != "" {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				p.Category = append(p.Category, part)
			}
		}
	}
	return p, !p.empty()
}

// mergePartials fills each field from the first extractor that produced it.
func mergePartials(parts []Partial) Partial {
	var out Partial
	for _, p := range parts {
		if out.Name == "" {
			out.Name = p.Name
		}
		if len(out.Category) == 0 {
			out.Category = p.Category
		}
		if out.Address == "" {
			out.Address = p.Address
		}
		if out.Phone == "" {
			out.Phone = p.Phone
		}
	}
	return out
}

var metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([a-zA-Z0-9_\-]+)`)

// decodeBody converts body to UTF-8 using the charset from the Content-Type
// header or a <meta> tag. Unknown charsets leave the body untouched.
func decodeBody(body []byte, contentType string) string {
	name := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		name = params["charset"]
	}
	if name == "" {
		head := body
		if len(head) > 2048 {
			head = head[:2048]
		}
		if m := metaCharset.FindSubmatch(head); m != nil {
			name = string(m[1])
		}
	}
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return string(body)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(bytes.ToValidUTF8(body, nil))
	}
	return string(decoded)
}
