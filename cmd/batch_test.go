package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/pkg/inference/mocks"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRoster(t *testing.T) {
	path := writeRoster(t, `
- role: r1
  candidate: c1
  context:
    candidate_resume: ten years of Go
- role: r1
  candidate: c2
`)
	entries, err := loadRoster(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0].Role)
	assert.Equal(t, "c1", entries[0].Candidate)
	assert.Equal(t, "ten years of Go", entries[0].Context["candidate_resume"])
	assert.Empty(t, entries[1].Context)
}

func TestLoadRosterMissingRole(t *testing.T) {
	path := writeRoster(t, `
- candidate: c1
`)
	_, err := loadRoster(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "role is required")
}

func TestLoadRosterMissingFile(t *testing.T) {
	_, err := loadRoster(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestProcessBatchMixedOutcomes(t *testing.T) {
	client := mocks.NewMockClient(t)
	// Only the role_profile generation reaches upstream; the fit entry is
	// rejected first for its missing prerequisite.
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(profileResponse(), nil).
		Once()
	env := testEnv(t, client)

	entries := []rosterEntry{
		{Role: "r1"},
	}
	err := processBatch(context.Background(), env.Executor, model.StageRoleProfile, entries, "user-1", "org-1", 0, 2)
	require.NoError(t, err)

	// The fit batch for candidates of an unprofiled role rejects each
	// entry without aborting the run.
	fitEntries := []rosterEntry{
		{Role: "r-unprofiled", Candidate: "c1"},
		{Role: "r-unprofiled", Candidate: "c2"},
	}
	err = processBatch(context.Background(), env.Executor, model.StageRoleFit, fitEntries, "user-1", "org-1", 0, 2)
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestProcessBatchAppliesLimit(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(profileResponse(), nil).
		Twice()
	env := testEnv(t, client)

	entries := []rosterEntry{
		{Role: "r1"},
		{Role: "r2"},
		{Role: "r3"},
	}
	err := processBatch(context.Background(), env.Executor, model.StageRoleProfile, entries, "user-1", "org-1", 2, 2)
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestProcessBatchEmptyRoster(t *testing.T) {
	env := testEnv(t, mocks.NewMockClient(t))
	err := processBatch(context.Background(), env.Executor, model.StageRoleProfile, nil, "user-1", "org-1", 0, 2)
	assert.NoError(t, err)
}
