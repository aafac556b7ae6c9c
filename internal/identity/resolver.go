// Package identity turns a listing URL, short link or bare numeric ID into a
// canonical listing identity.
package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/proxy"
)

const (
	maxRedirects  = 10
	maxPageBytes  = 2 << 20
	reasonNoID    = "identifier not found"
	reasonEmpty   = "empty input"
	defaultDetail = "https://pcmap.place.naver.com/place/%s/home"
)

var defaultListingHosts = []string{"naver.com"}

// Searcher runs a keyword search through an egress endpoint.
type Searcher interface {
	Search(ctx context.Context, keyword string, ep proxy.Endpoint) (*model.SearchResults, error)
}

// Resolver resolves raw input into a ListingIdentity.
type Resolver struct {
	rules      []ExtractRule
	extractors []PageExtractor
	hosts      []string
	shorteners map[string]bool
	detailURL  string
	userAgent  string
	timeout    time.Duration
	searcher   Searcher
	pool       *proxy.Pool
	log        *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRules replaces the identifier extraction rules.
func WithRules(rules ...ExtractRule) Option {
	return func(r *Resolver) {
		r.rules = rules
	}
}

// WithExtractors replaces the detail page extractors.
func WithExtractors(extractors ...PageExtractor) Option {
	return func(r *Resolver) {
		r.extractors = extractors
	}
}

// WithUserAgent sets the User-Agent for redirect and page fetches.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		r.userAgent = ua
	}
}

// New creates a Resolver. searcher may be nil, in which case the lookup step
// is skipped and only the detail page is consulted.
func New(cfg config.ResolveConfig, searcher Searcher, pool *proxy.Pool, opts ...Option) *Resolver {
	shorteners := make(map[string]bool, len(cfg.ShortenerHosts))
	for _, h := range cfg.ShortenerHosts {
		shorteners[strings.ToLower(h)] = true
	}
	hosts := make([]string, 0, len(cfg.ListingHosts))
	for _, h := range cfg.ListingHosts {
		hosts = append(hosts, strings.ToLower(h))
	}
	if len(hosts) == 0 {
		hosts = defaultListingHosts
	}
	detail := cfg.DetailURL
	if detail == "" {
		detail = defaultDetail
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r := &Resolver{
		rules:      DefaultRules(),
		extractors: DefaultExtractors(cfg.TitleSuffixes),
		hosts:      hosts,
		shorteners: shorteners,
		detailURL:  detail,
		timeout:    timeout,
		searcher:   searcher,
		pool:       pool,
		log:        zap.L().With(zap.String("component", "identity")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the listing ID from raw and fills in what is known about
// the listing. It fails only when no identifier can be found.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.ListingIdentity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ResolutionError{Input: raw, Reason: reasonEmpty}
	}

	id, err := r.ExtractID(ctx, raw)
	if err != nil {
		return nil, err
	}

	ident := &model.ListingIdentity{
		ID:  id,
		URL: fmt.Sprintf(r.detailURL, id),
	}

	r.lookup(ctx, ident)
	if ident.Name == "" {
		r.fetchDetail(ctx, ident)
	}
	if ident.Name == "" {
		ident.Name = "listing " + id
	}

	ident.Name = norm.NFC.String(ident.Name)
	ident.Address = norm.NFC.String(ident.Address)
	for i, c := range ident.Category {
		ident.Category[i] = norm.NFC.String(c)
	}
	if ident.Category == nil {
		ident.Category = []string{}
	}
	return ident, nil
}

// ExtractID runs the extraction rules against raw and, for short links,
// against the redirect chain.
func (r *Resolver) ExtractID(ctx context.Context, raw string) (string, error) {
	if id, rule, ok := applyRules(r.rules, raw, r.acceptsHost); ok {
		r.log.Debug("identifier extracted", zap.String("rule", rule), zap.String("id", id))
		return id, nil
	}

	u := parseInput(raw)
	if u == nil || !r.isShortener(u.Hostname()) {
		return "", &ResolutionError{Input: raw, Reason: reasonNoID}
	}

	final, hops, err := r.follow(ctx, u.String())
	if err != nil {
		r.log.Warn("short link follow failed", zap.String("input", raw), zap.Error(err))
	}
	candidates := make([]string, 0, len(hops)+1)
	if final != "" {
		candidates = append(candidates, final)
	}
	candidates = append(candidates, hops...)

	for _, c := range candidates {
		if id, rule, ok := applyRules(r.rules, c, r.acceptsHost); ok {
			r.log.Debug("identifier extracted from redirect",
				zap.String("rule", rule), zap.String("url", c), zap.String("id", id))
			return id, nil
		}
	}
	return "", &ResolutionError{Input: raw, Reason: reasonNoID}
}

// acceptsHost reports whether URL input on host may carry a listing ID.
// Shortener hosts are accepted so redirect hops on them are still read.
func (r *Resolver) acceptsHost(host string) bool {
	return hostMatches(host, r.hosts) || r.isShortener(host)
}

func (r *Resolver) isShortener(host string) bool {
	return r.shorteners[strings.TrimPrefix(strings.ToLower(host), "www.")]
}

// follow GETs target, following redirects, and returns the final URL along
// with every intermediate hop in order.
func (r *Resolver) follow(ctx context.Context, target string) (string, []string, error) {
	var hops []string
	client := proxy.NewClient(r.pool.Acquire(), r.timeout,
		proxy.WithCheckRedirect(func(req *http.Request, via []*http.Request) error {
			hops = append(hops, req.URL.String())
			if len(via) >= maxRedirects {
				return eris.Errorf("identity: stopped after %d redirects", maxRedirects)
			}
			return nil
		}),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil, eris.Wrap(err, "identity: build redirect request")
	}
	r.setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", hops, eris.Wrap(err, "identity: follow short link")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.Request.URL.String(), hops, nil
}

// lookup searches the identifier itself and accepts the first entry when its
// ID matches exactly.
func (r *Resolver) lookup(ctx context.Context, ident *model.ListingIdentity) {
	if r.searcher == nil {
		return
	}
	res, err := r.searcher.Search(ctx, ident.ID, r.pool.Acquire())
	if err != nil {
		r.log.Debug("identity lookup failed", zap.String("id", ident.ID), zap.Error(err))
		return
	}
	if len(res.Entries) == 0 || res.Entries[0].ID != ident.ID {
		return
	}
	e := res.Entries[0]
	ident.Name = e.Name
	ident.Category = append([]string(nil), e.Category...)
	ident.Address = e.Address
	ident.Phone = e.Phone
}

// fetchDetail loads the canonical detail page and merges extractor output.
func (r *Resolver) fetchDetail(ctx context.Context, ident *model.ListingIdentity) {
	page, err := r.fetchPage(ctx, ident.URL)
	if err != nil {
		r.log.Debug("detail page fetch failed", zap.String("id", ident.ID), zap.Error(err))
		return
	}

	parts := make([]Partial, 0, len(r.extractors))
	for _, x := range r.extractors {
		if p, ok := x.Extract(page); ok {
			r.log.Debug("detail extractor hit", zap.String("extractor", x.Name()), zap.String("id", ident.ID))
			parts = append(parts, p)
		}
	}
	merged := mergePartials(parts)

	if ident.Name == "" {
		ident.Name = merged.Name
	}
	if len(ident.Category) == 0 {
		ident.Category = merged.Category
	}
	if ident.Address == "" {
		ident.Address = merged.Address
	}
	if ident.Phone == "" {
		ident.Phone = merged.Phone
	}
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if _, err := url.Parse(pageURL); err != nil {
		return "", eris.Wrap(err, "identity: parse detail url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "identity: build detail request")
	}
	r.setHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := proxy.NewClient(r.pool.Acquire(), r.timeout).Do(req)
	if err != nil {
		return "", eris.Wrap(err, "identity: fetch detail page")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("identity: detail page status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", eris.Wrap(err, "identity: read detail page")
	}
	return decodeBody(body, resp.Header.Get("Content-Type")), nil
}

func (r *Resolver) setHeaders(req *http.Request) {
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
}
