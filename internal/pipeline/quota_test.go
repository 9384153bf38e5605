package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/talent-cli/internal/store"
)

func newPipelineStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestQuotaGuardLimits(t *testing.T) {
	t.Parallel()
	st := newPipelineStore(t)
	guard := NewQuotaGuard(st, map[string]int{"role_fit": 2}, 10)

	ctx := context.Background()

	// Per-metric limit.
	for i := 0; i < 2; i++ {
		decision, err := guard.Check(ctx, "org-1", "role_fit")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	decision, err := guard.Check(ctx, "org-1", "role_fit")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Equal(t, 2, decision.Limit)

	// Unknown metric falls back to the default limit.
	decision, err = guard.Check(ctx, "org-1", "outreach_draft")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 9, decision.Remaining)

	// Orgs are independent.
	decision, err = guard.Check(ctx, "org-2", "role_fit")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestQuotaGuardUnlimited(t *testing.T) {
	t.Parallel()
	st := newPipelineStore(t)
	guard := NewQuotaGuard(st, nil, Unlimited)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		decision, err := guard.Check(ctx, "org-1", "plan_generation")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, -1, decision.Remaining)
	}

	// Usage is still counted for reporting.
	count, err := guard.Usage(ctx, "org-1", "plan_generation")
	require.NoError(t, err)
	assert.Equal(t, 50, count)
}

func TestQuotaGuardDayBoundary(t *testing.T) {
	t.Parallel()
	st := newPipelineStore(t)
	guard := NewQuotaGuard(st, nil, 1)

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	guard.now = func() time.Time { return day1 }

	ctx := context.Background()
	decision, err := guard.Check(ctx, "org-1", "role_fit")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = guard.Check(ctx, "org-1", "role_fit")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Two minutes later it is a new UTC day and the counter resets.
	guard.now = func() time.Time { return day1.Add(2 * time.Minute) }
	decision, err = guard.Check(ctx, "org-1", "role_fit")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
