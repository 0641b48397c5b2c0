package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/shopscan/internal/config"
)

func TestFromResolverConfig(t *testing.T) {
	cfg := FromResolverConfig(config.ResolverConfig{
		MaxAttempts:      6,
		InitialBackoffMs: 100,
		MaxBackoffMs:     2000,
		Multiplier:       3,
		Jitter:           0,
	})

	assert.Equal(t, 6, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.MaxBackoff)
	assert.InDelta(t, 3.0, cfg.Multiplier, 0.001)
	assert.Zero(t, cfg.JitterFraction)
}

func TestFromResolverConfig_ZeroKeepsDefaults(t *testing.T) {
	cfg := FromResolverConfig(config.ResolverConfig{Jitter: -1})
	def := DefaultRetryConfig()

	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, cfg.InitialBackoff)
	assert.InDelta(t, def.JitterFraction, cfg.JitterFraction, 0.001)
}

func TestQuotaBreakerConfig(t *testing.T) {
	cfg := QuotaBreakerConfig(config.ResolverConfig{CircuitThreshold: 2, CircuitResetSecs: 30})

	assert.Equal(t, 2, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.ResetTimeout)
	assert.True(t, cfg.ShouldTrip(NewQuotaError(errors.New("quota"), 429)))
	assert.False(t, cfg.ShouldTrip(errors.New("forbidden")))
}
