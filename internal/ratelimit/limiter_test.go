package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qfrontier/qfrontier/internal/metrics"
)

func TestWaitThrottlesPerDomain(t *testing.T) {
	metrics.Init()

	// 10 QPS means one token every 100ms after the initial burst.
	l := New(Config{QPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "a.test"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "a.test"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestWaitDomainsAreIndependent(t *testing.T) {
	metrics.Init()

	l := New(Config{QPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "a.test"))

	// b.test has its own bucket and must not inherit a.test's debt.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "b.test"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitUnlimited(t *testing.T) {
	metrics.Init()

	l := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "a.test"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitRespectsContext(t *testing.T) {
	metrics.Init()

	l := New(Config{QPS: 0.1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "a.test"))
	err := l.Wait(ctx, "a.test")
	require.Error(t, err)
}
