package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/pipeline"
)

func TestLoadEntityContextFlagsOnly(t *testing.T) {
	ctx, err := loadEntityContext([]string{"role_description=Staff engineer", "team=platform"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Staff engineer", ctx["role_description"])
	assert.Equal(t, "platform", ctx["team"])
}

func TestLoadEntityContextFileAndFlagMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role_description: From file\nlocation: remote\n"), 0644))

	ctx, err := loadEntityContext([]string{"role_description=From flag"}, path)
	require.NoError(t, err)
	// Flags win on conflict.
	assert.Equal(t, "From flag", ctx["role_description"])
	assert.Equal(t, "remote", ctx["location"])
}

func TestLoadEntityContextInvalidPair(t *testing.T) {
	_, err := loadEntityContext([]string{"no-equals-sign"}, "")
	assert.Error(t, err)

	_, err = loadEntityContext([]string{"=value"}, "")
	assert.Error(t, err)
}

func TestOutcomeViewCompleted(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newOutcomeView(&pipeline.Outcome{
		State: pipeline.StateCompleted,
		Snapshot: &model.Snapshot{
			Payload:   json.RawMessage(`{"score":70}`),
			CreatedAt: created,
		},
		Metadata: model.ModelMetadata{
			Model:            "claude-sonnet-4-5-20250929",
			EstimatedCostUSD: 0.0123,
			Fallback:         true,
		},
	})

	assert.True(t, v.Success)
	assert.Equal(t, "2026-03-01T12:00:00Z", v.CreatedAt)
	assert.True(t, v.Fallback)
	assert.InDelta(t, 0.0123, v.CostUSD, 0.0001)
}

func TestOutcomeViewRejected(t *testing.T) {
	v := newOutcomeView(&pipeline.Outcome{
		State:   pipeline.StateRejected,
		Code:    "MISSING_DEPENDENCY:role_profile",
		Message: "generate it first",
	})

	assert.False(t, v.Success)
	assert.Equal(t, "MISSING_DEPENDENCY:role_profile", v.Code)
	assert.Empty(t, v.Snapshot)
}

func TestStageListNamesAllStages(t *testing.T) {
	list := stageList()
	for _, kind := range model.AllStageKinds {
		assert.Contains(t, list, string(kind))
	}
}
