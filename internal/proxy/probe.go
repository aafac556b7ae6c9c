package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Status reports the health of the proxy pool as seen through one endpoint.
type Status struct {
	Host      string `json:"host"`
	Ports     int    `json:"total_ports"`
	Endpoint  string `json:"endpoint"`
	EgressIP  string `json:"egress_ip,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Probe fetches an IP-echo URL through a freshly drawn endpoint. Failures are
// reported in the Status, never returned.
func Probe(ctx context.Context, pool *Pool, probeURL string, timeout time.Duration) Status {
	ep := pool.Acquire()
	st := Status{
		Host:     pool.Host(),
		Ports:    pool.Size(),
		Endpoint: ep.String(),
	}
	if st.Host == "" {
		st.Host = "direct"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	start := time.Now()
	resp, err := NewClient(ep, timeout).Do(req)
	st.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		zap.L().Warn("proxy: probe failed", zap.Stringer("endpoint", ep), zap.Error(err))
		st.Error = err.Error()
		return st
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		st.Error = err.Error()
		return st
	}
	if resp.StatusCode != http.StatusOK {
		st.Error = resp.Status
		return st
	}

	st.EgressIP = gjson.GetBytes(body, "origin").String()
	if st.EgressIP == "" {
		st.EgressIP = gjson.GetBytes(body, "ip").String()
	}
	st.OK = true
	return st
}
