package resilience

import (
	"time"

	"github.com/sells-group/shopscan/internal/config"
)

// FromResolverConfig builds the lookup retry policy from resolver settings.
func FromResolverConfig(rc config.ResolverConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(rc.InitialBackoffMs) * time.Millisecond
	}
	if rc.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	}
	if rc.Multiplier > 0 {
		cfg.Multiplier = rc.Multiplier
	}
	if rc.Jitter >= 0 {
		cfg.JitterFraction = rc.Jitter
	}
	return cfg
}

// QuotaBreakerConfig builds a breaker that trips on consecutive quota errors.
func QuotaBreakerConfig(rc config.ResolverConfig) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: rc.CircuitThreshold,
		ResetTimeout:     time.Duration(rc.CircuitResetSecs) * time.Second,
		ShouldTrip:       IsQuota,
	}
}
