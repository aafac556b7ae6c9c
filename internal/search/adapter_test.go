package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/proxy"
)

const desktopBody = `{
  "result": {
    "place": {
      "totalCount": "1,234",
      "list": [
        {"id": "1001", "name": "광고 카페", "tel": "02-111-2222", "category": ["카페", "디저트"],
         "address": "서울 강남구 역삼동 1", "reviewCount": "2,345", "blogReviewCount": 120, "rating": "4.5",
         "isAdPlace": true},
        {"id": "1002", "name": "스타벅스 강남점", "telDisplay": "02-333-4444", "category": "카페,커피전문점",
         "roadAddress": "서울 강남구 테헤란로 123", "visitorReviewCount": 800, "blogReviewCount": "45", "rating": 4.2},
        {"id": 1003, "name": "동네 커피", "virtualTel": "0507-1234-5678", "adId": "ad-77"}
      ]
    }
  }
}`

const mobileBody = `{
  "result": {
    "site": {
      "totalCount": 2,
      "list": [
        {"id": "2001", "name": "모바일 첫번째", "tel": "02-000-0000"},
        {"id": "2002", "name": "모바일 두번째"}
      ]
    }
  }
}`

func testEndpoints(base string) []config.EndpointConfig {
	eps := config.DefaultEndpoints()
	eps[0].URL = base + "/desktop"
	eps[1].URL = base + "/mobile"
	return eps
}

func newTestAdapter(base string, opts ...Option) *Adapter {
	return New(config.SearchConfig{
		TimeoutSecs:    2,
		UserAgent:      "placerank-test",
		AcceptLanguage: "ko-KR",
		Endpoints:      testEndpoints(base),
	}, opts...)
}

func TestSearch_DesktopSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/desktop", r.URL.Path)
		assert.Equal(t, "강남 카페", r.URL.Query().Get("query"))
		assert.Equal(t, "place", r.URL.Query().Get("type"))
		assert.Equal(t, "placerank-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "ko-KR", r.Header.Get("Accept-Language"))
		assert.Equal(t, "https://map.naver.com/", r.Header.Get("Referer"))
		assert.Contains(t, r.Header.Get("Accept"), "application/json")
		w.Write([]byte(desktopBody)) //nolint:errcheck
	}))
	defer srv.Close()

	res, err := newTestAdapter(srv.URL).Search(context.Background(), "강남 카페", proxy.Endpoint{})
	require.NoError(t, err)

	assert.Equal(t, "desktop", res.Source)
	assert.Equal(t, "강남 카페", res.Keyword)
	assert.Equal(t, 1234, res.Total)
	require.Len(t, res.Entries, 3)

	first := res.Entries[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, "02-111-2222", first.Phone)
	assert.Equal(t, []string{"카페", "디저트"}, first.Category)
	assert.Equal(t, 2345, first.ReviewCount)
	assert.Equal(t, 120, first.BlogReviewCount)
	assert.InDelta(t, 4.5, first.Rating, 0.001)
	assert.True(t, first.IsAd)

	second := res.Entries[1]
	assert.Equal(t, "02-333-4444", second.Phone)
	assert.Equal(t, []string{"카페", "커피전문점"}, second.Category)
	assert.Equal(t, "서울 강남구 테헤란로 123", second.Address)
	assert.Equal(t, 800, second.ReviewCount)
	assert.Equal(t, 45, second.BlogReviewCount)
	assert.False(t, second.IsAd)

	third := res.Entries[2]
	assert.Equal(t, "1003", third.ID)
	assert.Equal(t, "0507-1234-5678", third.Phone)
	assert.True(t, third.IsAd)
}

func TestSearch_FallsBackToMobile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		desktop func(w http.ResponseWriter)
	}{
		{"server error", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }},
		{"forbidden", func(w http.ResponseWriter) { w.WriteHeader(http.StatusForbidden) }},
		{"invalid json", func(w http.ResponseWriter) { _, _ = w.Write([]byte("<html>blocked</html>")) }},
		{"empty list", func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"result":{"place":{"list":[],"totalCount":0}}}`)) }},
		{"missing path", func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"result":{}}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/desktop" {
					tt.desktop(w)
					return
				}
				assert.Equal(t, "SITE_1", r.URL.Query().Get("type"))
				assert.Equal(t, "https://m.map.naver.com/", r.Header.Get("Referer"))
				w.Write([]byte(mobileBody)) //nolint:errcheck
			}))
			defer srv.Close()

			res, err := newTestAdapter(srv.URL).Search(context.Background(), "카페", proxy.Endpoint{})
			require.NoError(t, err)
			assert.Equal(t, "mobile", res.Source)
			assert.Equal(t, 2, res.Total)
			require.Len(t, res.Entries, 2)
			assert.Equal(t, "2001", res.Entries[0].ID)
		})
	}
}

func TestSearch_AllVariantsFail(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res, err := newTestAdapter(srv.URL).Search(context.Background(), "카페", proxy.Endpoint{})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "카페", ue.Keyword)
	require.Len(t, ue.Failures, 2)
	assert.Equal(t, "desktop", ue.Failures[0].Variant)
	assert.Equal(t, "mobile", ue.Failures[1].Variant)
	assert.True(t, ue.Failures[0].Transient)
	assert.Contains(t, err.Error(), "status 500")

	// No retry within a variant.
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_TimeoutIsVariantFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/desktop" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(mobileBody)) //nolint:errcheck
	}))
	defer srv.Close()

	fastClient := func(ep proxy.Endpoint, _ time.Duration) *http.Client {
		return proxy.NewClient(ep, 100*time.Millisecond)
	}
	res, err := newTestAdapter(srv.URL, WithClientFactory(fastClient)).Search(context.Background(), "카페", proxy.Endpoint{})
	require.NoError(t, err)
	assert.Equal(t, "mobile", res.Source)
}

func TestSearch_CanceledContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(desktopBody)) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAdapter(srv.URL).Search(ctx, "카페", proxy.Endpoint{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSearch_CustomAdPredicate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(desktopBody)) //nolint:errcheck
	}))
	defer srv.Close()

	never := func(gjson.Result) bool { return false }
	res, err := newTestAdapter(srv.URL, WithAdPredicate(never)).Search(context.Background(), "카페", proxy.Endpoint{})
	require.NoError(t, err)
	for _, e := range res.Entries {
		assert.False(t, e.IsAd)
	}
}

func TestNew_DefaultsAndVariants(t *testing.T) {
	t.Parallel()
	a := New(config.SearchConfig{})
	assert.Equal(t, []string{"desktop", "mobile"}, a.Variants())
	assert.Equal(t, 20*time.Second, a.timeout)
}

func TestBuildURL(t *testing.T) {
	t.Parallel()
	u, err := buildURL(config.EndpointConfig{
		URL:    "https://example.com/search?fixed=1",
		Params: map[string]string{"type": "place"},
	}, "강남 맛집")
	require.NoError(t, err)
	assert.Contains(t, u, "fixed=1")
	assert.Contains(t, u, "type=place")
	assert.Contains(t, u, "query=%EA%B0%95%EB%82%A8+%EB%A7%9B%EC%A7%91")

	_, err = buildURL(config.EndpointConfig{Name: "bad", URL: "://nope"}, "x")
	assert.Error(t, err)
}
