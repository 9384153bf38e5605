package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/store"
)

// fairnessAssertions is attached to every audit record for stages that
// evaluate people. The wording is fixed so downstream compliance review
// sees a consistent statement.
var fairnessAssertions = []string{
	"assessment derived only from role requirements and candidate-provided materials",
	"no protected characteristics used as scoring inputs",
	"numeric scores are advisory and require human review before any decision",
}

// AuditLogger writes audit records for completed generations. Recording
// is best effort: a write failure is logged and swallowed so an audit
// outage never blocks the pipeline.
type AuditLogger struct {
	store store.Store
	now   func() time.Time
}

// NewAuditLogger creates an AuditLogger backed by the given store.
func NewAuditLogger(st store.Store) *AuditLogger {
	return &AuditLogger{store: st, now: time.Now}
}

// Record persists one audit entry for a completed stage generation.
func (a *AuditLogger) Record(ctx context.Context, stageKind model.StageKind, entity model.EntityPair, actor, rationale string, meta model.ModelMetadata) {
	rec := &model.AuditRecord{
		Stage:              stageKind,
		Entity:             entity,
		Actor:              actor,
		InputSummary:       "stage inputs: resolved dependency snapshots and entity context",
		OutputSummary:      "generated " + string(stageKind) + " artifact",
		Rationale:          rationale,
		FairnessAssertions: fairnessAssertions,
		ModelMetadata:      meta,
		CreatedAt:          a.now().UTC(),
	}
	if err := a.store.InsertAuditRecord(ctx, rec); err != nil {
		zap.L().Error("audit record write failed",
			zap.String("stage", string(stageKind)),
			zap.String("entity", entity.Key()),
			zap.Error(err),
		)
	}
}
