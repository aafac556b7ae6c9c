// Package proxy hands out egress proxy endpoints and builds HTTP clients that
// route through them.
package proxy

import (
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sells-group/placerank/internal/config"
)

// Endpoint is one egress address. The zero Endpoint means a direct connection.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Direct reports whether requests through e bypass any proxy.
func (e Endpoint) Direct() bool {
	return e.Host == ""
}

// URL returns the proxy URL for e, or nil for a direct endpoint.
func (e Endpoint) URL() *url.URL {
	if e.Direct() {
		return nil
	}
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
	}
	if e.Username != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u
}

// String renders e without credentials, for logs.
func (e Endpoint) String() string {
	if e.Direct() {
		return "direct"
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Pool draws a fresh endpoint per request from a port range on a single
// gateway host. It holds no mutable state and is safe for concurrent use.
type Pool struct {
	host     string
	username string
	password string
	portMin  int
	portMax  int
}

// NewPool creates a pool from proxy configuration. An empty host yields a pool
// of direct endpoints.
func NewPool(cfg config.ProxyConfig) *Pool {
	lo, hi := cfg.PortMin, cfg.PortMax
	if hi < lo {
		lo, hi = hi, lo
	}
	return &Pool{
		host:     cfg.Host,
		username: cfg.Username,
		password: cfg.Password,
		portMin:  lo,
		portMax:  hi,
	}
}

// Acquire returns an endpoint on a port chosen uniformly from the inclusive
// configured range.
func (p *Pool) Acquire() Endpoint {
	if p.host == "" {
		return Endpoint{}
	}
	return Endpoint{
		Host:     p.host,
		Port:     p.portMin + rand.IntN(p.portMax-p.portMin+1),
		Username: p.username,
		Password: p.password,
	}
}

// Host returns the gateway host, empty for a direct pool.
func (p *Pool) Host() string {
	return p.host
}

// Size returns the number of distinct ports the pool can hand out.
func (p *Pool) Size() int {
	if p.host == "" {
		return 0
	}
	return p.portMax - p.portMin + 1
}

// ClientOption customizes a client built by NewClient.
type ClientOption func(*http.Client)

// WithCheckRedirect installs a redirect policy on the client.
func WithCheckRedirect(fn func(req *http.Request, via []*http.Request) error) ClientOption {
	return func(c *http.Client) {
		c.CheckRedirect = fn
	}
}

// WithTransport replaces the client transport. The endpoint is ignored when
// this option is used.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *http.Client) {
		c.Transport = rt
	}
}

// NewClient builds a single-use client that sends every request through ep.
// Connections are not pooled across calls so each request exits on its own port.
func NewClient(ep Endpoint, timeout time.Duration, opts ...ClientOption) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyURL(ep.URL()),
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
	}
	c := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
