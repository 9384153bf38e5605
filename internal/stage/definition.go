// Package stage defines the closed set of pipeline stages: their
// prerequisites, instruction templates, output schemas, fallback payloads,
// and post-processing. Stages are fixed in code; the executor in
// internal/pipeline is generic over these definitions.
package stage

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/hireloop/talent-cli/internal/model"
)

// Definition describes one stage kind.
type Definition struct {
	Kind model.StageKind

	// Prereqs is the stage's DependencySpec entry. Order matters: when
	// several prerequisites are missing, resolution reports the first one
	// in this slice.
	Prereqs []model.StageKind

	// Metric is the quota metric charged per execution.
	Metric string

	// Template is the instruction template. It enumerates the exact JSON
	// object the stage expects back.
	Template string

	// Required lists top-level keys that must be present in the parsed
	// output; a response missing any of them is treated as malformed and
	// replaced by the fallback.
	Required []string

	// MaxTokens bounds the generation for this stage.
	MaxTokens int64

	// scoreKey, when set, names a numeric field that is clamped to
	// [0,100] and banded during post-processing.
	scoreKey string
}

// Fallback returns the stage's minimal schema-valid payload, substituted
// when the generation output cannot be parsed or fails the schema check.
func (d Definition) Fallback() json.RawMessage {
	return json.RawMessage(fallbackPayloads[d.Kind])
}

// PostProcess normalizes a parsed payload: clamps the stage's score field
// to [0,100] and derives its categorical band. Stages without a score
// field pass through unchanged.
func (d Definition) PostProcess(payload json.RawMessage) (json.RawMessage, error) {
	if d.scoreKey == "" {
		return payload, nil
	}

	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, eris.Wrapf(err, "stage %s: post-process unmarshal", d.Kind)
	}

	score := 0.0
	if raw, ok := m[d.scoreKey]; ok {
		switch n := raw.(type) {
		case float64:
			score = n
		case json.Number:
			score, _ = n.Float64()
		}
	}
	score = model.ClampScore(score)
	m[d.scoreKey] = score
	m["band"] = model.BandFor(score)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrapf(err, "stage %s: post-process marshal", d.Kind)
	}
	return out, nil
}

// Get returns the definition for a stage kind.
func Get(kind model.StageKind) (Definition, error) {
	d, ok := registry[kind]
	if !ok {
		return Definition{}, fmt.Errorf("no definition for stage %q", kind)
	}
	return d, nil
}

// All returns every stage definition in canonical order.
func All() []Definition {
	defs := make([]Definition, 0, len(registry))
	for _, kind := range model.AllStageKinds {
		defs = append(defs, registry[kind])
	}
	return defs
}

// DependencySpec returns the static prerequisite mapping across all stages.
func DependencySpec() map[model.StageKind][]model.StageKind {
	spec := make(map[model.StageKind][]model.StageKind, len(registry))
	for kind, d := range registry {
		spec[kind] = d.Prereqs
	}
	return spec
}

// ValidateDAG verifies that the prerequisite mapping is acyclic and only
// references known stages. Called once at startup.
func ValidateDAG() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[model.StageKind]int, len(registry))

	var visit func(k model.StageKind) error
	visit = func(k model.StageKind) error {
		switch state[k] {
		case visiting:
			return fmt.Errorf("stage dependency cycle through %q", k)
		case done:
			return nil
		}
		d, ok := registry[k]
		if !ok {
			return fmt.Errorf("stage %q referenced but not defined", k)
		}
		state[k] = visiting
		for _, p := range d.Prereqs {
			if err := visit(p); err != nil {
				return err
			}
		}
		state[k] = done
		return nil
	}

	for kind := range registry {
		if err := visit(kind); err != nil {
			return err
		}
	}
	return nil
}
