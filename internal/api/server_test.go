package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placerank/internal/identity"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/proxy"
	"github.com/sells-group/placerank/internal/rank"
	"github.com/sells-group/placerank/internal/store"
)

type mockRanker struct{ mock.Mock }

func (m *mockRanker) Check(ctx context.Context, req rank.CheckRequest) (*model.RankCheckResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.RankCheckResult)
	return res, args.Error(1)
}

func (m *mockRanker) Competitors(ctx context.Context, keyword string, limit int) (*model.CompetitorSnapshot, error) {
	args := m.Called(ctx, keyword, limit)
	snap, _ := args.Get(0).(*model.CompetitorSnapshot)
	return snap, args.Error(1)
}

type mockDiscoverer struct{ mock.Mock }

func (m *mockDiscoverer) Discover(ctx context.Context, req rank.DiscoverRequest) (*model.DiscoveryReport, error) {
	args := m.Called(ctx, req)
	rep, _ := args.Get(0).(*model.DiscoveryReport)
	return rep, args.Error(1)
}

type mockHistory struct{ mock.Mock }

func (m *mockHistory) QueryChecks(ctx context.Context, keyword string, since time.Time) ([]model.RankCheckResult, error) {
	args := m.Called(ctx, keyword, since)
	out, _ := args.Get(0).([]model.RankCheckResult)
	return out, args.Error(1)
}

func (m *mockHistory) DeleteCheck(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockHistory) ListDiscoveries(ctx context.Context, limit int) ([]model.DiscoveryReport, error) {
	args := m.Called(ctx, limit)
	out, _ := args.Get(0).([]model.DiscoveryReport)
	return out, args.Error(1)
}

type fixture struct {
	ranker     *mockRanker
	discoverer *mockDiscoverer
	history    *mockHistory
	router     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ranker:     &mockRanker{},
		discoverer: &mockDiscoverer{},
		history:    &mockHistory{},
	}
	h := NewHandler(Deps{
		Ranker:     f.ranker,
		Discoverer: f.discoverer,
		History:    f.history,
		ProbeProxy: func(context.Context) proxy.Status {
			return proxy.Status{Host: "direct", OK: true, EgressIP: "203.0.113.7"}
		},
	})
	f.router = NewRouter(h, []string{"https://dash.example.com"})
	t.Cleanup(func() {
		f.ranker.AssertExpectations(t)
		f.discoverer.AssertExpectations(t)
		f.history.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestHealth_SinkReachable(t *testing.T) {
	var pinged bool
	router := NewRouter(NewHandler(Deps{PingSink: func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		pinged = hasDeadline
		return nil
	}}), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["sink"])
	assert.True(t, pinged, "ping runs under a deadline")
}

func TestHealth_SinkUnreachable(t *testing.T) {
	router := NewRouter(NewHandler(Deps{PingSink: func(context.Context) error {
		return eris.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	}}), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unreachable", body["sink"])
	assert.NotContains(t, rec.Body.String(), "5432")
}

func TestProxyStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/proxy/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "direct", body["host"])
	assert.Equal(t, "203.0.113.7", body["egress_ip"])
}

func TestProxyStatus_NotConfigured(t *testing.T) {
	router := NewRouter(NewHandler(Deps{}), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRankCheck(t *testing.T) {
	f := newFixture(t)
	want := rank.CheckRequest{
		Keyword:   "강남 카페",
		Target:    model.Target{Name: "스타벅스", Phone: "02-555-1234"},
		ScanDepth: 100,
	}
	f.ranker.On("Check", mock.Anything, want).Return(&model.RankCheckResult{
		Keyword: "강남 카페", Found: true, Rank: 3, PlaceName: "스타벅스 강남", TotalCompetitorCount: 40,
	}, nil)

	rec := f.do(http.MethodPost, "/api/rank/check",
		`{"keyword":"강남 카페","place_name":"스타벅스","phone":"02-555-1234","rank_range":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["found"])
	assert.EqualValues(t, 3, body["rank"])
	assert.EqualValues(t, 40, body["total_biz"])
}

func TestRankCheck_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	f.ranker.On("Check", mock.Anything, mock.Anything).
		Return(nil, eris.Wrap(rank.ErrInvalidRequest, "keyword is required"))

	rec := f.do(http.MethodPost, "/api/rank/check", `{"keyword":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid request")
}

func TestRankCheck_MalformedBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/rank/check", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode(t, rec)["error"])
}

func TestRankCheck_InternalError(t *testing.T) {
	f := newFixture(t)
	f.ranker.On("Check", mock.Anything, mock.Anything).Return(nil, eris.New("boom"))

	rec := f.do(http.MethodPost, "/api/rank/check", `{"keyword":"카페","place_id":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "boom")
}

func TestRankHistory(t *testing.T) {
	f := newFixture(t)
	f.history.On("QueryChecks", mock.Anything, "카페", mock.MatchedBy(func(since time.Time) bool {
		return time.Since(since) > 6*24*time.Hour && time.Since(since) < 8*24*time.Hour
	})).Return([]model.RankCheckResult{{ID: "r1", Keyword: "카페", Rank: 2}}, nil)

	rec := f.do(http.MethodGet, "/api/rank/history?keyword=%EC%B9%B4%ED%8E%98&days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "카페", body["keyword"])
	assert.EqualValues(t, 7, body["days"])
	assert.Len(t, body["history"], 1)
}

func TestRankHistory_DefaultDays(t *testing.T) {
	f := newFixture(t)
	f.history.On("QueryChecks", mock.Anything, "", mock.MatchedBy(func(since time.Time) bool {
		return time.Since(since) > 13*24*time.Hour && time.Since(since) < 15*24*time.Hour
	})).Return([]model.RankCheckResult{}, nil)

	rec := f.do(http.MethodGet, "/api/rank/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 14, decode(t, rec)["days"])
}

func TestRankHistory_BadDays(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/rank/history?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteHistory(t *testing.T) {
	f := newFixture(t)
	f.history.On("DeleteCheck", mock.Anything, "r1").Return(nil)
	f.history.On("DeleteCheck", mock.Anything, "missing").Return(eris.Wrap(store.ErrNotFound, "rank check missing"))

	rec := f.do(http.MethodDelete, "/api/rank/history/r1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", decode(t, rec)["deleted"])

	rec = f.do(http.MethodDelete, "/api/rank/history/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)
	f.discoverer.On("Discover", mock.Anything, rank.DiscoverRequest{
		PlaceURL: "https://naver.me/abc", KeywordCount: 10, RankLimit: 3,
	}).Return(&model.DiscoveryReport{
		PlaceURL: "https://naver.me/abc",
		Place:    model.ListingIdentity{ID: "1234567", Name: "스타벅스 강남"},
		Stats:    model.DiscoveryStats{Generated: 10, Qualified: 1},
		Keywords: []model.DiscoveredKeyword{{Keyword: "서울 카페", Rank: 1, Type: model.PlacementOrganic}},
	}, nil)

	rec := f.do(http.MethodPost, "/api/keyhunter/analyze",
		`{"place_url":"https://naver.me/abc","keyword_count":10,"rank_limit":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 10, stats["generated"])
	assert.Len(t, body["keywords"], 1)
}

func TestAnalyze_ResolutionError(t *testing.T) {
	f := newFixture(t)
	f.discoverer.On("Discover", mock.Anything, mock.Anything).
		Return(nil, &identity.ResolutionError{Input: "https://example.com", Reason: "identifier not found"})

	rec := f.do(http.MethodPost, "/api/keyhunter/analyze", `{"place_url":"https://example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "identifier not found")
}

func TestAnalyze_MissingURL(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/keyhunter/analyze", `{"keyword_count":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscoveryHistory(t *testing.T) {
	f := newFixture(t)
	f.history.On("ListDiscoveries", mock.Anything, 5).Return([]model.DiscoveryReport{{ID: "d1"}}, nil)

	rec := f.do(http.MethodGet, "/api/keyhunter/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["reports"], 1)
}

func TestSellerSearch(t *testing.T) {
	f := newFixture(t)
	f.ranker.On("Competitors", mock.Anything, "카페", 2).Return(&model.CompetitorSnapshot{
		Keyword:  "카페",
		Platform: rank.Platform,
		Total:    77,
		Competitors: []model.Competitor{
			{Rank: 1, ID: "1", Name: "가게 1"},
			{Rank: 2, ID: "2", Name: "가게 2"},
		},
	}, nil)

	rec := f.do(http.MethodGet, "/api/sellerdb/search?keyword=%EC%B9%B4%ED%8E%98&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.EqualValues(t, 77, body["total_biz"])
	assert.Equal(t, "naver_place", body["platform"])
}

func TestSellerSearch_DefaultLimitAndValidation(t *testing.T) {
	f := newFixture(t)
	f.ranker.On("Competitors", mock.Anything, "카페", defaultSellerLimit).
		Return(&model.CompetitorSnapshot{Keyword: "카페", Competitors: []model.Competitor{}}, nil)

	rec := f.do(http.MethodGet, "/api/sellerdb/search?keyword=%EC%B9%B4%ED%8E%98", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/sellerdb/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/sellerdb/search?keyword=x&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/rank/check", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&identity.ResolutionError{Input: "x"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(eris.Wrap(rank.ErrInvalidRequest, "empty")))
	assert.Equal(t, http.StatusNotFound, statusFor(eris.Wrap(store.ErrNotFound, "r1")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(eris.New("other")))
}

func TestServe_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ListenError(t *testing.T) {
	err := Serve(context.Background(), "127.0.0.1:99999", http.NotFoundHandler())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api: listen")
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", Addr(8080))
}
