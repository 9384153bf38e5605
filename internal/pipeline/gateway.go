package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/stage"
	"github.com/hireloop/talent-cli/pkg/inference"
)

// maxContextChars bounds how much caller-supplied entity data is injected
// into a prompt.
const maxContextChars = 8000

// GatewayResult is the outcome of one inference invocation. Fallback marks
// payloads substituted because the generation could not be parsed or
// failed the stage's schema check; it is surfaced on the audit record, not
// as an error.
type GatewayResult struct {
	Payload  json.RawMessage
	Fallback bool
	Model    string
	Usage    inference.TokenUsage
}

// Gateway builds a stage's prompt, makes the single synchronous generation
// call, and owns all response parsing. No automatic retry: upstream errors
// propagate classified (see pkg/inference) and the caller decides.
type Gateway struct {
	client inference.Client
	model  string
}

// NewGateway creates a Gateway using the given client and model ID.
func NewGateway(client inference.Client, modelID string) *Gateway {
	return &Gateway{client: client, model: modelID}
}

// Invoke runs the stage's generation once and returns a schema-valid
// payload. Malformed output is absorbed into the stage fallback; only
// upstream transport failures return an error.
func (g *Gateway) Invoke(ctx context.Context, def stage.Definition, deps map[model.StageKind]*model.Snapshot, entityData map[string]string) (*GatewayResult, error) {
	prompt := buildPrompt(def, deps, entityData)

	resp, err := g.client.CreateMessage(ctx, inference.MessageRequest{
		Model:     g.model,
		MaxTokens: def.MaxTokens,
		Messages: []inference.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	result := &GatewayResult{
		Model: resp.Model,
		Usage: resp.Usage,
	}
	if result.Model == "" {
		result.Model = g.model
	}

	payload, ok := parsePayload(def, inference.ExtractText(resp))
	if !ok {
		zap.L().Warn("gateway: unparseable generation, using fallback",
			zap.String("stage", string(def.Kind)),
		)
		result.Payload = def.Fallback()
		result.Fallback = true
		return result, nil
	}

	processed, err := def.PostProcess(payload)
	if err != nil {
		zap.L().Warn("gateway: post-process failed, using fallback",
			zap.String("stage", string(def.Kind)),
			zap.Error(err),
		)
		result.Payload = def.Fallback()
		result.Fallback = true
		return result, nil
	}
	result.Payload = processed
	return result, nil
}

// parsePayload extracts the first balanced JSON object from the raw text
// and checks the stage's required keys. ok is false when no usable object
// exists.
func parsePayload(def stage.Definition, text string) (json.RawMessage, bool) {
	raw := ExtractJSONObject(text)
	if raw == "" {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	for _, key := range def.Required {
		if _, ok := m[key]; !ok {
			return nil, false
		}
	}
	return json.RawMessage(raw), true
}

// buildPrompt merges the stage's fixed instruction template with context
// assembled from resolved dependency snapshots and entity data.
func buildPrompt(def stage.Definition, deps map[model.StageKind]*model.Snapshot, entityData map[string]string) string {
	var b strings.Builder
	b.WriteString(def.Template)

	// Dependency snapshots in prerequisite order.
	for _, prereq := range def.Prereqs {
		snap, ok := deps[prereq]
		if !ok || snap == nil {
			continue
		}
		fmt.Fprintf(&b, "\n\n--- %s (generated %s) ---\n%s",
			prereq, snap.CreatedAt.Format("2006-01-02 15:04"), string(snap.Payload))
	}

	// Caller-supplied entity data, sorted for a stable prompt.
	keys := make([]string, 0, len(entityData))
	for k := range entityData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	budget := maxContextChars
	for _, k := range keys {
		v := entityData[k]
		if len(v) > budget {
			v = v[:budget]
		}
		budget -= len(v)
		fmt.Fprintf(&b, "\n\n--- %s ---\n%s", k, v)
		if budget <= 0 {
			break
		}
	}

	return b.String()
}
