package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	fail := errors.New("quota")

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(fail)
	}
	assert.Equal(t, CircuitClosed, cb.State())

	require.NoError(t, cb.Allow())
	cb.Record(fail)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	fail := errors.New("quota")

	cb.Record(fail)
	cb.Record(nil)
	cb.Record(fail)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenTrialCloses(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.Record(errors.New("quota"))
	require.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	*now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())
	require.NoError(t, cb.Allow())

	cb.Record(nil)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAdmitsSingleCaller(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.Record(NewQuotaError(errors.New("RESOURCE_EXHAUSTED"), 429))
	*now = now.Add(time.Minute)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen, "callers fail fast while the trial call is out")

	cb.Record(nil)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_AbandonedTrialFreesSlot(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.Record(errors.New("quota"))
	*now = now.Add(time.Minute)

	require.NoError(t, cb.Allow())
	require.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.Abandon()
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		cb.Record(errors.New("quota"))
	}

	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(errors.New("quota"))

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_ShouldTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       IsQuota,
	})

	cb.Record(errors.New("403 forbidden"))
	assert.Equal(t, CircuitClosed, cb.State())

	cb.Record(NewQuotaError(errors.New("RESOURCE_EXHAUSTED"), 429))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_DisabledAtZeroThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	for i := 0; i < 10; i++ {
		cb.Record(errors.New("fail"))
	}
	assert.NoError(t, cb.Allow())

	var nilBreaker *CircuitBreaker
	assert.NoError(t, nilBreaker.Allow())
	nilBreaker.Record(errors.New("fail"))
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.Record(errors.New("fail"))
	cb.Record(errors.New("fail"))
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Allow()
			if i%2 == 0 {
				cb.Record(errors.New("fail"))
			} else {
				cb.Record(nil)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
