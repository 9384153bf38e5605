package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/stage"
)

func TestResolveReportsFirstMissingPrereq(t *testing.T) {
	t.Parallel()
	st := newPipelineStore(t)
	resolver := NewResolver(st)
	ctx := context.Background()

	pair := model.EntityPair{RoleID: "r1", CandidateID: "c1"}
	def, err := stage.Get(model.StageShortlistScore)
	require.NoError(t, err)

	// Nothing exists: the first prereq in spec order is reported even
	// though role_fit is missing too.
	_, err = resolver.Resolve(ctx, def, pair)
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, model.StageRoleProfile, missing.Stage)

	// With a role profile in place the next missing prereq is reported.
	_, err = st.AppendSnapshot(ctx, model.StageRoleProfile, model.EntityPair{RoleID: "r1"}, []byte(`{"title":"x"}`), "user-1")
	require.NoError(t, err)

	_, err = resolver.Resolve(ctx, def, pair)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, model.StageRoleFit, missing.Stage)
}

func TestResolveNarrowsRoleScopedPrereqs(t *testing.T) {
	t.Parallel()
	st := newPipelineStore(t)
	resolver := NewResolver(st)
	ctx := context.Background()

	// The profile is stored under the role key only.
	_, err := st.AppendSnapshot(ctx, model.StageRoleProfile, model.EntityPair{RoleID: "r1"}, []byte(`{"title":"x"}`), "user-1")
	require.NoError(t, err)

	// A candidate-level stage still resolves it.
	def, err := stage.Get(model.StageRoleFit)
	require.NoError(t, err)

	deps, err := resolver.Resolve(ctx, def, model.EntityPair{RoleID: "r1", CandidateID: "c9"})
	require.NoError(t, err)
	require.Contains(t, deps, model.StageRoleProfile)
	assert.Equal(t, "r1", deps[model.StageRoleProfile].Entity.Key())
}

func TestSnapshotEntityDropsCandidateForRoleScopedStages(t *testing.T) {
	t.Parallel()
	full := model.EntityPair{RoleID: "r1", CandidateID: "c1"}

	assert.Equal(t, model.EntityPair{RoleID: "r1"}, SnapshotEntity(model.StageRoleProfile, full))
	assert.Equal(t, model.EntityPair{RoleID: "r1"}, SnapshotEntity(model.StagePipelineHealth, full))
	assert.Equal(t, full, SnapshotEntity(model.StageRoleFit, full))
}
