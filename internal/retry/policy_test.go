package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, BackoffExponential, p.Mode)
	assert.Equal(t, 100*time.Millisecond, p.Initial)
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, 3, p.MaxRetries)
	require.NoError(t, p.Validate())
}

func TestNewPolicyClampsInitial(t *testing.T) {
	p := NewPolicy(BackoffFixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial)
	assert.Equal(t, BackoffFixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)

	assert.Equal(t, BackoffExponential, NewPolicy("weird", 0, 0, -1).Mode)
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{"fixed", NewPolicy(BackoffFixed, 100*ms, 500*ms, 3), []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{"linear", NewPolicy(BackoffLinear, 100*ms, 250*ms, 5), []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", NewPolicy(BackoffExponential, 50*ms, 160*ms, 5), []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i, want := range tc.want {
				assert.Equal(t, want, tc.policy.Delay(i+1), "retry %d", i+1)
			}
			assert.Zero(t, tc.policy.Delay(0))
			assert.Zero(t, tc.policy.Delay(-1))
		})
	}
	assert.Equal(t, 160*ms, NewPolicy(BackoffExponential, 50*ms, 160*ms, 5).Delay(64))
}

func TestValidate(t *testing.T) {
	require.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errors.New("down")
	})
	require.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	p := NewPolicy(BackoffFixed, time.Hour, time.Hour, 5)
	err := p.Do(ctx, func() error { return errors.New("down") })
	require.ErrorIs(t, err, context.Canceled)
}
