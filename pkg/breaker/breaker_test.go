package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jebjergk/MIP-sub000/pkg/metrics"
)

func TestDoPassesValuesThrough(t *testing.T) {
	b := New(DefaultSettings("gate_params"), nil, zerolog.Nop())

	v, err := Do(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, "gate_params", b.Name())
	assert.Equal(t, "closed", b.State())
}

func TestDoNilPointerResult(t *testing.T) {
	b := New(DefaultSettings("pattern_trust"), nil, zerolog.Nop())

	v, err := Do(b, func() (*string, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	s := DefaultSettings("pending_count")
	s.Timeout = time.Hour
	b := New(s, metrics.New(), zerolog.Nop())

	boom := errors.New("warehouse timeout")
	for i := 0; i < 3; i++ {
		_, err := Do(b, func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", b.State())

	called := false
	_, err := Do(b, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestFailureRatioNeedsMinimumRequests(t *testing.T) {
	s := DefaultSettings("ratio")
	s.ConsecutiveFailures = 0
	b := New(s, nil, zerolog.Nop())

	fail := errors.New("fail")
	for i := 0; i < 4; i++ {
		_, _ = Do(b, func() (int, error) { return 0, nil })
		_, _ = Do(b, func() (int, error) { return 0, fail })
	}
	// 8 requests, 50% failures, below MinRequests
	assert.Equal(t, "closed", b.State())

	_, _ = Do(b, func() (int, error) { return 0, nil })
	_, _ = Do(b, func() (int, error) { return 0, fail })
	assert.Equal(t, "open", b.State())
}
