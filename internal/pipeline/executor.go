package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hireloop/talent-cli/internal/cost"
	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/stage"
	"github.com/hireloop/talent-cli/internal/store"
	"github.com/hireloop/talent-cli/pkg/inference"
)

// OutcomeState classifies how an invocation ended. Rejected means the
// request was premature or over quota and can be retried later without
// code changes. Failed means the upstream computation errored and the
// same request should be retried.
type OutcomeState string

const (
	StateCompleted OutcomeState = "completed"
	StateRejected  OutcomeState = "rejected"
	StateFailed    OutcomeState = "failed"
)

// Stable machine-readable outcome codes for caller branching.
const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeMissingDependency = "MISSING_DEPENDENCY"
	CodeQuotaExhausted    = "QUOTA_EXHAUSTED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeUpstreamError     = "UPSTREAM_ERROR"
)

// Request asks for one stage generation for one entity.
type Request struct {
	Stage  model.StageKind
	Entity model.EntityPair
	Actor  string
	OrgID  string
	// Context carries caller-supplied entity data (role description,
	// candidate materials) injected into the prompt.
	Context map[string]string
}

// Outcome is the terminal result of one invocation. Snapshot is set only
// when State is StateCompleted.
type Outcome struct {
	State    OutcomeState
	Code     string
	Message  string
	Snapshot *model.Snapshot
	Metadata model.ModelMetadata
}

// Completed reports whether the invocation produced a snapshot.
func (o *Outcome) Completed() bool { return o.State == StateCompleted }

// Executor runs the full stage sequence: resolve dependencies, check
// quota, invoke the gateway, persist the snapshot, record the audit
// entry. One Executor serves all stage kinds; per-stage behavior lives
// in the stage definitions. All collaborators are injected, never
// reached through globals.
type Executor struct {
	store    store.Store
	gateway  *Gateway
	quota    *QuotaGuard
	audit    *AuditLogger
	resolver *Resolver
	calc     *cost.Calculator
}

// NewExecutor wires an Executor from its collaborators.
func NewExecutor(st store.Store, gw *Gateway, quota *QuotaGuard, audit *AuditLogger, calc *cost.Calculator) *Executor {
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	return &Executor{
		store:    st,
		gateway:  gw,
		quota:    quota,
		audit:    audit,
		resolver: NewResolver(st),
		calc:     calc,
	}
}

// Execute runs one stage invocation to its terminal outcome. Dependency
// and quota rejections are detected before any upstream call is made.
// The returned error is non-nil only for infrastructure failures, most
// importantly a failed snapshot write: the stage never claims success
// without a durable snapshot.
func (e *Executor) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if req.Actor == "" {
		return &Outcome{
			State:   StateRejected,
			Code:    CodeUnauthenticated,
			Message: "an authenticated actor id is required",
		}, nil
	}
	def, err := stage.Get(req.Stage)
	if err != nil {
		return nil, err
	}

	entity := SnapshotEntity(req.Stage, req.Entity)

	log := zap.L().With(
		zap.String("stage", string(req.Stage)),
		zap.String("entity", entity.Key()),
		zap.String("actor", req.Actor),
	)

	deps, err := e.resolver.Resolve(ctx, def, entity)
	if err != nil {
		var missing *MissingDependencyError
		if errors.As(err, &missing) {
			log.Info("rejected: missing dependency", zap.String("prerequisite", string(missing.Stage)))
			return &Outcome{
				State:   StateRejected,
				Code:    fmt.Sprintf("%s:%s", CodeMissingDependency, missing.Stage),
				Message: fmt.Sprintf("prerequisite stage %s has no snapshot for %s; generate it first", missing.Stage, entity.Key()),
			}, nil
		}
		return nil, eris.Wrap(err, "resolving dependencies")
	}

	decision, err := e.quota.Check(ctx, req.OrgID, def.Metric)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		log.Info("rejected: quota exhausted",
			zap.String("metric", def.Metric),
			zap.Int("limit", decision.Limit),
		)
		return &Outcome{
			State:   StateRejected,
			Code:    CodeQuotaExhausted,
			Message: fmt.Sprintf("daily quota for %s exhausted (limit %d); retry after the UTC day boundary", def.Metric, decision.Limit),
		}, nil
	}

	result, err := e.gateway.Invoke(ctx, def, deps, req.Context)
	if err != nil {
		return e.upstreamOutcome(log, err), nil
	}

	inputTokens := int(result.Usage.InputTokens)
	outputTokens := int(result.Usage.OutputTokens)
	meta := model.ModelMetadata{
		Model:            result.Model,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		EstimatedCostUSD: e.calc.Claude(result.Model, inputTokens, outputTokens),
		Fallback:         result.Fallback,
	}

	snap, err := e.store.AppendSnapshot(ctx, req.Stage, entity, result.Payload, req.Actor)
	if err != nil {
		return nil, eris.Wrapf(err, "persisting %s snapshot for %s", req.Stage, entity.Key())
	}

	rationale := "generated from latest prerequisite snapshots"
	if result.Fallback {
		rationale = "generation output was malformed; schema-valid fallback payload persisted"
	}
	e.audit.Record(ctx, req.Stage, entity, req.Actor, rationale, meta)

	log.Info("stage completed",
		zap.Bool("fallback", result.Fallback),
		zap.Int("input_tokens", meta.InputTokens),
		zap.Int("output_tokens", meta.OutputTokens),
	)
	return &Outcome{
		State:    StateCompleted,
		Snapshot: snap,
		Metadata: meta,
	}, nil
}

// upstreamOutcome maps a classified inference error to a Failed outcome.
func (e *Executor) upstreamOutcome(log *zap.Logger, err error) *Outcome {
	switch {
	case errors.Is(err, inference.ErrRateLimited):
		log.Warn("upstream rate limited", zap.Error(err))
		return &Outcome{
			State:   StateFailed,
			Code:    CodeRateLimited,
			Message: "upstream service is throttling requests; retry with backoff",
		}
	case errors.Is(err, inference.ErrQuotaExhausted):
		log.Warn("upstream quota exhausted", zap.Error(err))
		return &Outcome{
			State:   StateFailed,
			Code:    CodeUpstreamError,
			Message: "upstream account quota exhausted",
		}
	default:
		log.Warn("upstream unavailable", zap.Error(err))
		return &Outcome{
			State:   StateFailed,
			Code:    CodeUpstreamError,
			Message: "upstream service error; retry the request",
		}
	}
}
