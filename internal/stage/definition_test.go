package stage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/talent-cli/internal/model"
)

func TestEveryStageKindHasDefinition(t *testing.T) {
	for _, kind := range model.AllStageKinds {
		d, err := Get(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, d.Kind)
		assert.NotEmpty(t, d.Template, kind)
		assert.NotEmpty(t, d.Metric, kind)
		assert.NotEmpty(t, d.Required, kind)
	}

	_, err := Get(model.StageKind("bogus"))
	assert.Error(t, err)
}

func TestValidateDAG(t *testing.T) {
	assert.NoError(t, ValidateDAG())
}

func TestDependencySpecOrder(t *testing.T) {
	spec := DependencySpec()
	assert.Empty(t, spec[model.StageRoleProfile])
	assert.Equal(t, []model.StageKind{model.StageRoleProfile}, spec[model.StageRoleFit])
	// Resolution order is the slice order: role_profile reported first when
	// both are missing.
	assert.Equal(t,
		[]model.StageKind{model.StageRoleProfile, model.StageRoleFit},
		spec[model.StageShortlistScore])
}

func TestFallbackIsSchemaValid(t *testing.T) {
	for _, kind := range model.AllStageKinds {
		d, err := Get(kind)
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(d.Fallback(), &m), kind)
		for _, key := range d.Required {
			_, ok := m[key]
			assert.True(t, ok, "fallback for %s missing required key %s", kind, key)
		}
	}
}

func TestPostProcessClampsAndBands(t *testing.T) {
	d, err := Get(model.StageRoleFit)
	require.NoError(t, err)

	out, err := d.PostProcess(json.RawMessage(`{"score":135,"strengths":["go"],"gaps":[],"rationale":"r"}`))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, 100.0, m["score"])
	assert.Equal(t, "high", m["band"])

	out, err = d.PostProcess(json.RawMessage(`{"score":-7}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, 0.0, m["score"])
	assert.Equal(t, "low", m["band"])

	out, err = d.PostProcess(json.RawMessage(`{"score":60}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "medium", m["band"])
}

func TestPostProcessPassThroughWithoutScore(t *testing.T) {
	d, err := Get(model.StagePlanGeneration)
	require.NoError(t, err)

	in := json.RawMessage(`{"steps":[{"action":"post the role"}],"rationale":"r"}`)
	out, err := d.PostProcess(in)
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
}
