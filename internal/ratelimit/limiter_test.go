package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVisitors_Allow(t *testing.T) {
	t.Parallel()

	v := NewVisitors(0.001, 2)
	require.True(t, v.Allow("alice"))
	require.True(t, v.Allow("alice"))
	require.False(t, v.Allow("alice"), "burst exhausted")

	require.True(t, v.Allow("bob"), "keys are independent")
	require.Equal(t, 2, v.Len())
}

func TestVisitors_Unlimited(t *testing.T) {
	t.Parallel()

	v := NewVisitors(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, v.Allow("alice"))
	}
}

func TestVisitors_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewVisitors(1, 1)
	v.now = func() time.Time { return now }

	v.Allow("idle")
	now = now.Add(5 * time.Minute)
	v.Allow("fresh")

	require.Equal(t, 1, v.Sweep(3*time.Minute))
	require.Equal(t, 1, v.Len())
}
