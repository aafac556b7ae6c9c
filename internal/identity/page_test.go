package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func TestOpenGraphExtractor(t *testing.T) {
	t.Parallel()
	x := OpenGraphExtractor{TitleSuffixes: []string{" : 네이버", " - 네이버 지도"}}

	p, ok := x.Extract(`<html><head><meta property="og:title" content="동네 커피 : 네이버"></head></html>`)
	require.True(t, ok)
	assert.Equal(t, "동네 커피", p.Name)

	p, ok = x.Extract(`<html><head><title>동네 커피 - 네이버 지도</title></head></html>`)
	require.True(t, ok)
	assert.Equal(t, "동네 커피", p.Name)

	_, ok = x.Extract(`<html><body>nothing</body></html>`)
	assert.False(t, ok)
}

func TestJSONLDExtractor(t *testing.T) {
	t.Parallel()
	html := `<script type="application/ld+json">not json</script>
<script type="application/ld+json">[{"@type":"Restaurant","name":"한식당","telephone":"031-000-1111",
"address":"경기 성남시 분당구 정자동 1","servesCuisine":"한식"}]</script>`

	p, ok := JSONLDExtractor{}.Extract(html)
	require.True(t, ok)
	assert.Equal(t, "한식당", p.Name)
	assert.Equal(t, "031-000-1111", p.Phone)
	assert.Equal(t, "경기 성남시 분당구 정자동 1", p.Address)
	assert.Equal(t, []string{"한식"}, p.Category)

	_, ok = JSONLDExtractor{}.Extract(`<html></html>`)
	assert.False(t, ok)
}

func TestEmbeddedStateExtractor(t *testing.T) {
	t.Parallel()
	html := `<script>window.__APOLLO_STATE__ = {"PlaceDetailBase:1234567":{"name":"스타벅스 강남",
"category":"카페,커피전문점","roadAddress":"서울 강남구 테헤란로 123","virtualPhone":"0507-1234-5678"}};</script>`

	p, ok := EmbeddedStateExtractor{}.Extract(html)
	require.True(t, ok)
	assert.Equal(t, "스타벅스 강남", p.Name)
	assert.Equal(t, []string{"카페", "커피전문점"}, p.Category)
	assert.Equal(t, "서울 강남구 테헤란로 123", p.Address)
	assert.Equal(t, "0507-1234-5678", p.Phone)

	_, ok = EmbeddedStateExtractor{}.Extract(`<html></html>`)
	assert.False(t, ok)
}

func TestMergePartials_FirstNonEmptyWins(t *testing.T) {
	t.Parallel()
	merged := mergePartials([]Partial{
		{Name: "first"},
		{Name: "second", Address: "addr-2", Category: []string{"c2"}},
		{Phone: "010", Address: "addr-3"},
	})
	assert.Equal(t, "first", merged.Name)
	assert.Equal(t, "addr-2", merged.Address)
	assert.Equal(t, []string{"c2"}, merged.Category)
	assert.Equal(t, "010", merged.Phone)
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()
	euc, err := korean.EUCKR.NewEncoder().String("강남 카페")
	require.NoError(t, err)

	assert.Equal(t, "강남 카페", decodeBody([]byte(euc), "text/html; charset=euc-kr"))

	withMeta := `<html><head><meta charset="euc-kr"></head><body>` + euc + `</body></html>`
	assert.Contains(t, decodeBody([]byte(withMeta), "text/html"), "강남 카페")

	assert.Equal(t, "plain", decodeBody([]byte("plain"), ""))
	assert.Equal(t, "plain", decodeBody([]byte("plain"), "text/html; charset=x-unknown"))
}
