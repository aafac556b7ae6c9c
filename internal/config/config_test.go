package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10001, cfg.Proxy.PortMin)
	assert.Equal(t, 19999, cfg.Proxy.PortMax)
	assert.Empty(t, cfg.Proxy.Host)
	assert.Equal(t, 20, cfg.Search.TimeoutSecs)
	assert.Equal(t, 30, cfg.Discovery.KeywordCount)
	assert.Equal(t, 5, cfg.Discovery.RankLimit)
	assert.Equal(t, 50, cfg.Discovery.ScanDepth)
	assert.Equal(t, 8, cfg.Discovery.Concurrency)
	assert.Zero(t, cfg.Discovery.RequestsPerSecond)
	assert.Equal(t, 300, cfg.Rank.ScanDepth)
	assert.Equal(t, 50, cfg.Rank.CompetitorLimit)
	assert.Equal(t, "https://pcmap.place.naver.com/place/%s/home", cfg.Resolve.DetailURL)
	assert.Contains(t, cfg.Resolve.ShortenerHosts, "naver.me")
	assert.Equal(t, []string{"naver.com"}, cfg.Resolve.ListingHosts)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, 5, cfg.Monitoring.RankDropThreshold)
	assert.Equal(t, 48, cfg.Monitoring.LookbackWindowHours)

	require.Len(t, cfg.Search.Endpoints, 2)
	assert.Equal(t, "desktop", cfg.Search.Endpoints[0].Name)
	assert.Equal(t, "result.place.list", cfg.Search.Endpoints[0].ListPath)
	assert.Equal(t, "mobile", cfg.Search.Endpoints[1].Name)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/placerank
log:
  level: debug
  format: console
server:
  port: 9090
discovery:
  concurrency: 4
  modifiers: ["맛집", "추천"]
search:
  endpoints:
    - name: staging
      url: http://localhost:9999/search
      query_param: q
      list_path: data.items
      total_path: data.total
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/placerank", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Discovery.Concurrency)
	assert.Equal(t, []string{"맛집", "추천"}, cfg.Discovery.Modifiers)
	require.Len(t, cfg.Search.Endpoints, 1)
	assert.Equal(t, "q", cfg.Search.Endpoints[0].QueryParam)
	assert.Equal(t, "data.items", cfg.Search.Endpoints[0].ListPath)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Discovery.KeywordCount)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PLACERANK_STORE_DRIVER", "postgres")
	t.Setenv("PLACERANK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PLACERANK_SERVER_PORT", "3000")
	t.Setenv("PLACERANK_PROXY_HOST", "gw.example.net")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "gw.example.net", cfg.Proxy.Host)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Proxy.PortMin = 10001
	cfg.Proxy.PortMax = 19999
	cfg.Search.TimeoutSecs = 20
	cfg.Search.Endpoints = DefaultEndpoints()
	cfg.Rank.ScanDepth = 300
	cfg.Discovery.KeywordCount = 30
	cfg.Discovery.RankLimit = 5
	cfg.Discovery.ScanDepth = 50
	cfg.Discovery.Concurrency = 8
	cfg.Store.Driver = "sqlite"
	cfg.Watch.File = "watch.yaml"
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"check", "discover", "serve", "watch"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")

	// Port only matters when serving.
	assert.NoError(t, cfg.Validate("check"))
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/placerank"
	assert.NoError(t, cfg.Validate("check"))
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestValidateProxyRange(t *testing.T) {
	cfg := validDefaults()
	cfg.Proxy.PortMin = 20000
	cfg.Proxy.PortMax = 10000

	// Range is ignored while no proxy host is configured.
	assert.NoError(t, cfg.Validate("check"))

	cfg.Proxy.Host = "gw.example.net"
	err := cfg.Validate("check")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "proxy port range")
}

func TestValidateDiscoveryBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Discovery.Concurrency = 0
	err := cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "discovery.concurrency must be between 1 and 64")

	cfg.Discovery.Concurrency = 65
	assert.Error(t, cfg.Validate("discover"))

	cfg.Discovery.Concurrency = 64
	cfg.Discovery.RequestsPerSecond = -1
	err = cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requests_per_second")

	cfg.Discovery.RequestsPerSecond = 2
	assert.NoError(t, cfg.Validate("discover"))
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.TimeoutSecs = 0
	cfg.Rank.ScanDepth = 0
	cfg.Search.Endpoints = []EndpointConfig{{Name: "broken"}}

	err := cfg.Validate("check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.timeout_secs")
	assert.Contains(t, err.Error(), "rank.scan_depth")
	assert.Contains(t, err.Error(), "search.endpoints[0]")
}

func TestValidateWatchNeedsFile(t *testing.T) {
	cfg := validDefaults()
	cfg.Watch.File = ""
	err := cfg.Validate("watch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "watch.file is required")
}

func TestValidateMonitoringThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.WebhookURL = "https://hooks.example.com/rank"
	err := cfg.Validate("watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.rank_drop_threshold")

	cfg.Monitoring.RankDropThreshold = 3
	assert.NoError(t, cfg.Validate("watch"))
}

func TestValidateSearchTimeoutBounds(t *testing.T) {
	cfg := validDefaults()
	for _, secs := range []int{15, 20, 25} {
		cfg.Search.TimeoutSecs = secs
		assert.NoError(t, cfg.Validate("check"), "timeout %d", secs)
	}
	for _, secs := range []int{-1, 5, 14, 26, 60} {
		cfg.Search.TimeoutSecs = secs
		err := cfg.Validate("check")
		require.Error(t, err, "timeout %d", secs)
		assert.Contains(t, err.Error(), "search.timeout_secs must be between 15 and 25")
	}
}
