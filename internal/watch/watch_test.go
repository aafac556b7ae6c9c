package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/rank"
)

type recordingChecker struct {
	mu   sync.Mutex
	reqs []rank.CheckRequest
	err  error
}

func (c *recordingChecker) Check(_ context.Context, req rank.CheckRequest) (*model.RankCheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return nil, c.err
	}
	return &model.RankCheckResult{Keyword: req.Keyword, Found: true, Rank: 2}, nil
}

func (c *recordingChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

const sampleList = `
- keyword: 강남 카페
  place_id: "1234567"
  schedule: "0 9 * * *"
- keyword: " 서울 카페 "
  place_name: 스타벅스 강남
  phone: 02-555-1234
  scan_depth: 100
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleList), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "강남 카페", entries[0].Keyword)
	assert.Equal(t, "1234567", entries[0].PlaceID)
	assert.Equal(t, "0 9 * * *", entries[0].Schedule)

	assert.Equal(t, "서울 카페", entries[1].Keyword)
	assert.Equal(t, 100, entries[1].ScanDepth)
	assert.Equal(t, rank.CheckRequest{
		Keyword:   "서울 카페",
		Target:    model.Target{Name: "스타벅스 강남", Phone: "02-555-1234"},
		ScanDepth: 100,
	}, entries[1].Request())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch: read")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("- keyword: \"\"\n- keyword: 카페\n  scan_depth: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0: keyword is required")
	assert.Contains(t, err.Error(), "entry 1: one of place_id, place_name or phone is required")
	assert.Contains(t, err.Error(), "entry 1: scan_depth must be >= 0")

	_, err = Parse([]byte("keyword: not a list"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch: parse list")
}

func TestParse_Empty(t *testing.T) {
	entries, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntryLabel(t *testing.T) {
	assert.Equal(t, "카페 @ 1", Entry{Keyword: "카페", PlaceID: "1", PlaceName: "x"}.Label())
	assert.Equal(t, "카페 @ x", Entry{Keyword: "카페", PlaceName: "x"}.Label())
	assert.Equal(t, "카페 @ 02", Entry{Keyword: "카페", Phone: "02"}.Label())
}

func TestNormalizeCron(t *testing.T) {
	assert.Equal(t, "0 0 9 * * *", normalizeCron("0 9 * * *"))
	assert.Equal(t, "*/5 * * * * *", normalizeCron("*/5 * * * * *"))
	assert.Equal(t, "@every 1m", normalizeCron("@every 1m"))
}

func TestNew_Schedules(t *testing.T) {
	entries := []Entry{
		{Keyword: "a", PlaceID: "1", Schedule: "0 9 * * *"},
		{Keyword: "b", PlaceID: "2"},
	}
	s, err := New(&recordingChecker{}, entries, "@hourly")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(&recordingChecker{}, []Entry{{Keyword: "a", PlaceID: "1", Schedule: "not a cron"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `schedule "not a cron"`)
}

func TestNew_NoSchedule(t *testing.T) {
	_, err := New(&recordingChecker{}, []Entry{{Keyword: "a", PlaceID: "1"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schedule")
}

func TestRunAll_FailSoft(t *testing.T) {
	checker := &recordingChecker{err: eris.New("upstream exploded")}
	s, err := New(checker, []Entry{
		{Keyword: "a", PlaceID: "1"},
		{Keyword: "b", PlaceID: "2"},
	}, "@daily")
	require.NoError(t, err)

	out := s.RunAll(context.Background())
	assert.Empty(t, out)
	assert.Equal(t, 2, checker.count(), "a failed entry does not stop the others")
}

func TestRunAll_Results(t *testing.T) {
	checker := &recordingChecker{}
	s, err := New(checker, []Entry{{Keyword: "a", PlaceID: "1"}}, "@daily")
	require.NoError(t, err)

	out := s.RunAll(context.Background())
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Rank)
}

func TestRun_FiresOnSchedule(t *testing.T) {
	checker := &recordingChecker{}
	s, err := New(checker, []Entry{{Keyword: "a", PlaceID: "1", Schedule: "* * * * * *"}}, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return checker.count() > 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
