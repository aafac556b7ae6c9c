package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Bounds for the per-request upstream search timeout.
const (
	MinSearchTimeoutSecs = 15
	MaxSearchTimeoutSecs = 25
)

// Config holds the full application configuration.
type Config struct {
	Proxy      ProxyConfig      `yaml:"proxy" mapstructure:"proxy"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Resolve    ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Rank       RankConfig       `yaml:"rank" mapstructure:"rank"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProxyConfig configures the egress proxy pool. An empty host disables
// proxying and every request goes out directly.
type ProxyConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	PortMin  int    `yaml:"port_min" mapstructure:"port_min"`
	PortMax  int    `yaml:"port_max" mapstructure:"port_max"`
	ProbeURL string `yaml:"probe_url" mapstructure:"probe_url"`
}

// EndpointConfig describes one upstream search endpoint variant.
type EndpointConfig struct {
	Name       string            `yaml:"name" mapstructure:"name"`
	URL        string            `yaml:"url" mapstructure:"url"`
	QueryParam string            `yaml:"query_param" mapstructure:"query_param"`
	Params     map[string]string `yaml:"params" mapstructure:"params"`
	ListPath   string            `yaml:"list_path" mapstructure:"list_path"`
	TotalPath  string            `yaml:"total_path" mapstructure:"total_path"`
	Referer    string            `yaml:"referer" mapstructure:"referer"`
}

// SearchConfig configures the upstream search adapter.
type SearchConfig struct {
	TimeoutSecs    int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent      string           `yaml:"user_agent" mapstructure:"user_agent"`
	AcceptLanguage string           `yaml:"accept_language" mapstructure:"accept_language"`
	Endpoints      []EndpointConfig `yaml:"endpoints" mapstructure:"endpoints"`
}

// ResolveConfig configures listing identity resolution.
type ResolveConfig struct {
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ListingHosts   []string `yaml:"listing_hosts" mapstructure:"listing_hosts"`
	ShortenerHosts []string `yaml:"shortener_hosts" mapstructure:"shortener_hosts"`
	DetailURL      string   `yaml:"detail_url" mapstructure:"detail_url"`
	TitleSuffixes  []string `yaml:"title_suffixes" mapstructure:"title_suffixes"`
}

// DiscoveryConfig configures keyword discovery runs.
type DiscoveryConfig struct {
	KeywordCount      int      `yaml:"keyword_count" mapstructure:"keyword_count"`
	RankLimit         int      `yaml:"rank_limit" mapstructure:"rank_limit"`
	ScanDepth         int      `yaml:"scan_depth" mapstructure:"scan_depth"`
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Modifiers         []string `yaml:"modifiers" mapstructure:"modifiers"`
}

// RankConfig configures single rank checks.
type RankConfig struct {
	ScanDepth       int `yaml:"scan_depth" mapstructure:"scan_depth"`
	CompetitorLimit int `yaml:"competitor_limit" mapstructure:"competitor_limit"`
}

// StoreConfig configures the result sink backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	RetryAttempts    int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WatchConfig configures scheduled rank checks.
type WatchConfig struct {
	File            string `yaml:"file" mapstructure:"file"`
	DefaultSchedule string `yaml:"default_schedule" mapstructure:"default_schedule"`
}

// MonitoringConfig configures rank movement alerts. An empty webhook URL
// disables alert delivery.
type MonitoringConfig struct {
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url"`
	RankDropThreshold   int    `yaml:"rank_drop_threshold" mapstructure:"rank_drop_threshold"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int    `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultEndpoints returns the built-in desktop and mobile search variants.
func DefaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{
			Name:       "desktop",
			URL:        "https://map.naver.com/p/api/search/allSearch",
			QueryParam: "query",
			Params:     map[string]string{"type": "place"},
			ListPath:   "result.place.list",
			TotalPath:  "result.place.totalCount",
			Referer:    "https://map.naver.com/",
		},
		{
			Name:       "mobile",
			URL:        "https://m.map.naver.com/search2/searchMore.naver",
			QueryParam: "query",
			Params: map[string]string{
				"sm":           "clk",
				"style":        "v5",
				"page":         "1",
				"displayCount": "75",
				"type":         "SITE_1",
			},
			ListPath:  "result.site.list",
			TotalPath: "result.site.totalCount",
			Referer:   "https://m.map.naver.com/",
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLACERANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("proxy.port_min", 10001)
	v.SetDefault("proxy.port_max", 19999)
	v.SetDefault("proxy.probe_url", "https://httpbin.org/ip")
	v.SetDefault("search.timeout_secs", 20)
	v.SetDefault("search.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("search.accept_language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	v.SetDefault("resolve.timeout_secs", 15)
	v.SetDefault("resolve.listing_hosts", []string{"naver.com"})
	v.SetDefault("resolve.shortener_hosts", []string{"naver.me", "me2.do", "han.gl"})
	v.SetDefault("resolve.detail_url", "https://pcmap.place.naver.com/place/%s/home")
	v.SetDefault("resolve.title_suffixes", []string{" : 네이버", " - 네이버 지도", " : 네이버 플레이스"})
	v.SetDefault("discovery.keyword_count", 30)
	v.SetDefault("discovery.rank_limit", 5)
	v.SetDefault("discovery.scan_depth", 50)
	v.SetDefault("discovery.concurrency", 8)
	v.SetDefault("discovery.requests_per_second", 0)
	v.SetDefault("discovery.modifiers", []string{})
	v.SetDefault("rank.scan_depth", 300)
	v.SetDefault("rank.competitor_limit", 50)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.write_timeout_secs", 5)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.breaker_threshold", 5)
	v.SetDefault("store.breaker_reset_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("watch.file", "watch.yaml")
	v.SetDefault("watch.default_schedule", "0 9 * * *")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.rank_drop_threshold", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 48)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Search.Endpoints) == 0 {
		cfg.Search.Endpoints = DefaultEndpoints()
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode ("check",
// "discover", "serve", "watch"). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "check", "discover", "watch":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Proxy.Host != "" && (c.Proxy.PortMin <= 0 || c.Proxy.PortMax > 65535 || c.Proxy.PortMin > c.Proxy.PortMax) {
		errs = append(errs, fmt.Sprintf("proxy port range %d-%d is invalid", c.Proxy.PortMin, c.Proxy.PortMax))
	}
	if c.Search.TimeoutSecs < MinSearchTimeoutSecs || c.Search.TimeoutSecs > MaxSearchTimeoutSecs {
		errs = append(errs, fmt.Sprintf("search.timeout_secs must be between %d and %d",
			MinSearchTimeoutSecs, MaxSearchTimeoutSecs))
	}
	for i, ep := range c.Search.Endpoints {
		if ep.URL == "" || ep.ListPath == "" {
			errs = append(errs, fmt.Sprintf("search.endpoints[%d] needs url and list_path", i))
		}
	}
	if c.Rank.ScanDepth <= 0 {
		errs = append(errs, "rank.scan_depth must be > 0")
	}
	if mode == "discover" || mode == "serve" {
		if c.Discovery.KeywordCount <= 0 {
			errs = append(errs, "discovery.keyword_count must be > 0")
		}
		if c.Discovery.RankLimit <= 0 || c.Discovery.ScanDepth <= 0 {
			errs = append(errs, "discovery.rank_limit and discovery.scan_depth must be > 0")
		}
		if c.Discovery.Concurrency < 1 || c.Discovery.Concurrency > 64 {
			errs = append(errs, "discovery.concurrency must be between 1 and 64")
		}
		if c.Discovery.RequestsPerSecond < 0 {
			errs = append(errs, "discovery.requests_per_second must be >= 0")
		}
	}
	if c.Monitoring.WebhookURL != "" && c.Monitoring.RankDropThreshold < 1 {
		errs = append(errs, "monitoring.rank_drop_threshold must be >= 1")
	}
	if mode == "watch" && c.Watch.File == "" {
		errs = append(errs, "watch.file is required")
	}

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
