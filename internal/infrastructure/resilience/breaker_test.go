package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func passing() error { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(failing), errBoom)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(passing), ErrOpen)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New(Config{FailureThreshold: 2, Cooldown: time.Hour})

	require.Error(t, b.Do(failing))
	require.NoError(t, b.Do(passing))
	require.Error(t, b.Do(failing))
	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures do not trip")
}

func TestBreakerRecoversThroughProbes(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Probes: 2, Cooldown: time.Millisecond})

	require.Error(t, b.Do(failing))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(5 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(passing))
	require.NoError(t, b.Do(passing))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Cooldown: time.Millisecond})

	require.Error(t, b.Do(failing))
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.ErrorIs(t, b.Do(failing), errBoom)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerReportsTransitions(t *testing.T) {
	var transitions []string
	b := New(Config{
		FailureThreshold: 1,
		Cooldown:         time.Millisecond,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.Error(t, b.Do(failing))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, b.Do(passing))

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
