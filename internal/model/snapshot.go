package model

import (
	"encoding/json"
	"time"
)

// Snapshot is one immutable, timestamped output of a stage for an entity
// pair. Snapshots are append-only: the pipeline never updates or deletes
// them, and "current value" means the row with the maximum CreatedAt for
// the (stage, entity) key.
type Snapshot struct {
	ID        string          `json:"id"`
	Stage     StageKind       `json:"stage"`
	Entity    EntityPair      `json:"entity"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	CreatedBy string          `json:"created_by"`
}

// ModelMetadata captures which model produced a stage output and what it
// cost. Fallback marks payloads substituted after unparseable output.
type ModelMetadata struct {
	Model            string  `json:"model"`
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	Fallback         bool    `json:"fallback"`
}

// AuditRecord is the write-once record emitted for every stage execution.
// The pipeline only writes these; reporting consumes them elsewhere.
type AuditRecord struct {
	Stage              StageKind     `json:"stage"`
	Entity             EntityPair    `json:"entity"`
	Actor              string        `json:"actor"`
	InputSummary       string        `json:"input_summary"`
	OutputSummary      string        `json:"output_summary"`
	Rationale          string        `json:"rationale"`
	FairnessAssertions []string      `json:"fairness_assertions"`
	ModelMetadata      ModelMetadata `json:"model_metadata"`
	CreatedAt          time.Time     `json:"created_at"`
}

// QuotaDecision is the result of an atomic increment-and-check against a
// daily usage counter. Remaining is never negative; Limit -1 means the
// counter is unlimited.
type QuotaDecision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}
