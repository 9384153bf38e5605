package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/store"
)

// Unlimited disables the cap for a metric.
const Unlimited = -1

// QuotaGuard enforces per-organization daily generation caps. Each check
// is a single atomic increment in the store, so concurrent requests
// racing the last slot cannot both pass.
type QuotaGuard struct {
	store        store.Store
	limits       map[string]int
	defaultLimit int
	now          func() time.Time
}

// NewQuotaGuard builds a guard with per-metric limits. Metrics absent
// from limits fall back to defaultLimit. A limit of Unlimited admits
// everything while still counting usage.
func NewQuotaGuard(st store.Store, limits map[string]int, defaultLimit int) *QuotaGuard {
	return &QuotaGuard{
		store:        st,
		limits:       limits,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// Check consumes one unit of the metric for the org's current UTC day.
// The decision reports the remaining balance after this consumption.
func (q *QuotaGuard) Check(ctx context.Context, orgID, metric string) (model.QuotaDecision, error) {
	limit, ok := q.limits[metric]
	if !ok {
		limit = q.defaultLimit
	}
	day := q.now().UTC().Format("2006-01-02")

	decision, err := q.store.IncrementQuota(ctx, orgID, metric, day, limit)
	if err != nil {
		return model.QuotaDecision{}, eris.Wrapf(err, "quota check for org %s metric %s", orgID, metric)
	}
	return decision, nil
}

// Usage reports the current day's consumption without consuming a unit.
func (q *QuotaGuard) Usage(ctx context.Context, orgID, metric string) (int, error) {
	day := q.now().UTC().Format("2006-01-02")
	count, err := q.store.GetQuotaUsage(ctx, orgID, metric, day)
	if err != nil {
		return 0, eris.Wrapf(err, "quota usage for org %s metric %s", orgID, metric)
	}
	return count, nil
}
