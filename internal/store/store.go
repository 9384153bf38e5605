package store

import (
	"context"
	"errors"

	"github.com/hireloop/talent-cli/internal/model"
)

// ErrSnapshotNotFound is returned by LatestSnapshot when no snapshot has
// ever been written for the (stage, entity) key. Callers branch on it via
// errors.Is; absence is an expected state, not a failure.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store defines persistence for the derived-artifact pipeline: append-only
// snapshots, atomic daily quota counters, and the write-only audit sink.
type Store interface {
	// Snapshots. AppendSnapshot always inserts a new row; there is no
	// uniqueness constraint on (stage, entity), so concurrent writers for
	// the same key each get their own row and the newest wins on read.
	AppendSnapshot(ctx context.Context, stage model.StageKind, entity model.EntityPair, payload []byte, actor string) (*model.Snapshot, error)
	LatestSnapshot(ctx context.Context, stage model.StageKind, entity model.EntityPair) (*model.Snapshot, error)
	SnapshotHistory(ctx context.Context, stage model.StageKind, entity model.EntityPair, limit int) ([]model.Snapshot, error)

	// Quota counters. IncrementQuota performs the increment and the limit
	// check as a single atomic statement against the (org, metric, day)
	// row; limit -1 means unlimited.
	IncrementQuota(ctx context.Context, orgID, metric, day string, limit int) (model.QuotaDecision, error)
	GetQuotaUsage(ctx context.Context, orgID, metric, day string) (int, error)

	// Audit sink. Insert-only; never read back by the pipeline.
	InsertAuditRecord(ctx context.Context, rec *model.AuditRecord) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// quotaDecision converts a post-increment count into a QuotaDecision.
// Remaining never goes negative even when the counter has overshot.
func quotaDecision(count, limit int) model.QuotaDecision {
	if limit < 0 {
		return model.QuotaDecision{Allowed: true, Remaining: -1, Limit: -1}
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return model.QuotaDecision{
		Allowed:   count <= limit,
		Remaining: remaining,
		Limit:     limit,
	}
}
