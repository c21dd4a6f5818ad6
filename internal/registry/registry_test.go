package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/testutil"
)

func TestRegistry_Observe(t *testing.T) {
	m := metrics.New()
	r := New(testutil.NewSQLiteStore(t), time.Minute, WithMetrics(m))
	ctx := context.Background()

	created, err := r.Observe(ctx, "AA:BB:CC:11:22:33", "192.168.1.20", "Unknown")
	require.NoError(t, err)
	assert.True(t, created)

	dev, err := r.Lookup(ctx, "aa:bb:cc:11:22:33")
	require.NoError(t, err)
	assert.True(t, dev.Blocked)
	assert.Equal(t, "192.168.1.20", dev.IP)

	require.NoError(t, r.SetBlocked(ctx, dev.MAC, false))
	created, err = r.Observe(ctx, dev.MAC, "192.168.1.30", "")
	require.NoError(t, err)
	assert.False(t, created)

	dev, err = r.LookupByIP(ctx, "192.168.1.30")
	require.NoError(t, err)
	assert.False(t, dev.Blocked, "re-observing must not re-block")

	_, err = r.Observe(ctx, "not-a-mac", "192.168.1.31", "")
	assert.Error(t, err)
}

func TestRegistry_NotFound(t *testing.T) {
	r := New(testutil.NewSQLiteStore(t), time.Minute)
	ctx := context.Background()

	_, err := r.Lookup(ctx, "aa:bb:cc:11:22:33")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.LookupByIP(ctx, "10.0.0.9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.SetBlocked(ctx, "aa:bb:cc:11:22:33", true), ErrNotFound)
	assert.ErrorIs(t, r.Rename(ctx, "aa:bb:cc:11:22:33", "x"), ErrNotFound)
}

func TestRegistry_ListLive(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	stale := New(s, time.Minute)
	_, err := stale.Observe(ctx, "de:ad:be:ef:00:01", "192.168.1.40", "")
	require.NoError(t, err)

	r := New(s, 50*time.Millisecond)
	_, err = r.Observe(ctx, "aa:bb:cc:11:22:33", "192.168.1.20", "")
	require.NoError(t, err)

	live, err := r.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1, "only devices this registry saw are live")
	assert.Equal(t, "aa:bb:cc:11:22:33", live[0].MAC)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Eventually(t, func() bool {
		live, err := r.ListLive(ctx)
		return err == nil && len(live) == 0
	}, time.Second, 20*time.Millisecond)
}
