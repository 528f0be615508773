package client

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Hour)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Do(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Open circuit rejects without invoking the function.
	called := false
	err := cb.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond)

	_ = cb.Do(func() error { return errors.New("boom") })
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	// Cooldown elapsed: the probe runs and a success closes the circuit.
	err := cb.Do(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond)

	_ = cb.Do(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)

	_ = cb.Do(func() error { return errors.New("boom again") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)

	_ = cb.Do(func() error { return errors.New("boom") })
	_ = cb.Do(func() error { return nil })
	_ = cb.Do(func() error { return errors.New("boom") })

	assert.Equal(t, StateClosed, cb.State(), "non-consecutive failures must not open the circuit")
}
