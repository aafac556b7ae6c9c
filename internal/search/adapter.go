// Package search queries the upstream map search service for a keyword and
// normalizes the ordered result list.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/proxy"
	"github.com/sells-group/placerank/internal/resilience"
)

const maxBodyBytes = 8 << 20

// ClientFactory builds the HTTP client for one request.
type ClientFactory func(ep proxy.Endpoint, timeout time.Duration) *http.Client

// Adapter searches the upstream service by trying endpoint variants in order
// until one returns a non-empty result list.
type Adapter struct {
	variants       []config.EndpointConfig
	timeout        time.Duration
	userAgent      string
	acceptLanguage string
	isAd           AdPredicate
	newClient      ClientFactory
	log            *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAdPredicate overrides paid-placement detection.
func WithAdPredicate(fn AdPredicate) Option {
	return func(a *Adapter) {
		a.isAd = fn
	}
}

// WithClientFactory overrides how per-request clients are built.
func WithClientFactory(fn ClientFactory) Option {
	return func(a *Adapter) {
		a.newClient = fn
	}
}

// New creates an Adapter from search configuration. Without configured
// endpoints the built-in desktop and mobile variants are used.
func New(cfg config.SearchConfig, opts ...Option) *Adapter {
	variants := cfg.Endpoints
	if len(variants) == 0 {
		variants = config.DefaultEndpoints()
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	a := &Adapter{
		variants:       variants,
		timeout:        timeout,
		userAgent:      cfg.UserAgent,
		acceptLanguage: cfg.AcceptLanguage,
		isAd:           DefaultAdPredicate,
		newClient: func(ep proxy.Endpoint, timeout time.Duration) *http.Client {
			return proxy.NewClient(ep, timeout)
		},
		log: zap.L().With(zap.String("component", "search")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Variants returns the names of the configured endpoint variants in order.
func (a *Adapter) Variants() []string {
	names := make([]string, len(a.variants))
	for i, v := range a.variants {
		names[i] = v.Name
	}
	return names
}

// Search runs keyword against each variant through ep. The first variant with
// a parseable, non-empty list wins. When all fail the error is an
// *UnavailableError.
func (a *Adapter) Search(ctx context.Context, keyword string, ep proxy.Endpoint) (*model.SearchResults, error) {
	unavailable := &UnavailableError{Keyword: keyword}

	for _, v := range a.variants {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "search: canceled")
		}

		entries, total, err := a.searchVariant(ctx, v, keyword, ep)
		if err != nil {
			f := VariantFailure{
				Variant:   v.Name,
				Reason:    err.Error(),
				Transient: resilience.IsTransient(err),
			}
			unavailable.Failures = append(unavailable.Failures, f)
			a.log.Debug("search variant failed",
				zap.String("variant", v.Name),
				zap.String("keyword", keyword),
				zap.Stringer("proxy", ep),
				zap.Bool("transient", f.Transient),
				zap.Error(err),
			)
			continue
		}

		return &model.SearchResults{
			Keyword: keyword,
			Entries: entries,
			Total:   total,
			Source:  v.Name,
		}, nil
	}

	a.log.Info("search unavailable",
		zap.String("keyword", keyword),
		zap.Int("variants", len(a.variants)),
	)
	return nil, unavailable
}

func (a *Adapter) searchVariant(ctx context.Context, v config.EndpointConfig, keyword string, ep proxy.Endpoint) ([]model.SearchResultEntry, int, error) {
	reqURL, err := buildURL(v, keyword)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "search: build request")
	}
	a.setHeaders(req, v)

	resp, err := a.newClient(ep, a.timeout).Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "search: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("search: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, 0, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, 0, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, eris.Wrap(err, "search: read body")
	}

	return parseResults(body, v.ListPath, v.TotalPath, a.isAd)
}

func (a *Adapter) setHeaders(req *http.Request, v config.EndpointConfig) {
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if a.acceptLanguage != "" {
		req.Header.Set("Accept-Language", a.acceptLanguage)
	}
	if v.Referer != "" {
		req.Header.Set("Referer", v.Referer)
	}
}

func buildURL(v config.EndpointConfig, keyword string) (string, error) {
	u, err := url.Parse(v.URL)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("search: parse endpoint %q", v.Name))
	}
	q := u.Query()
	for k, val := range v.Params {
		q.Set(k, val)
	}
	param := v.QueryParam
	if param == "" {
		param = "query"
	}
	q.Set(param, keyword)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
