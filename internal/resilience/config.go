package resilience

import (
	"time"

	"github.com/sells-group/placerank/internal/config"
)

// SinkPolicies derives the retry and breaker settings for result sink writes
// from store configuration. Zero values fall back to the defaults.
func SinkPolicies(cfg config.StoreConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	retry.OnRetry = RetryLogger("store", "append")

	breaker := DefaultCircuitBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerResetSecs > 0 {
		breaker.ResetTimeout = time.Duration(cfg.BreakerResetSecs) * time.Second
	}
	breaker.OnStateChange = StateLogger("store")
	return retry, breaker
}
