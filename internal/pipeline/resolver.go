package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/stage"
	"github.com/hireloop/talent-cli/internal/store"
)

// MissingDependencyError reports the first prerequisite stage (in spec
// order) that has never been computed for the entity. Callers use Stage to
// render "generate <stage> first".
type MissingDependencyError struct {
	Stage model.StageKind
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: %s", e.Stage)
}

// Resolver fetches the latest snapshot of each prerequisite stage.
//
// Resolution only requires that a latest snapshot exists; it does not check
// whether the prerequisite was produced after upstream edits to the entity.
// Staleness is an accepted limitation: regenerating the prerequisite is the
// only invalidation mechanism.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver over the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the latest snapshot per prerequisite kind, or a
// MissingDependencyError naming the first absent prerequisite. Prereqs are
// checked left to right over the static spec, so the reported stage is
// deterministic regardless of store contents.
func (r *Resolver) Resolve(ctx context.Context, def stage.Definition, entity model.EntityPair) (map[model.StageKind]*model.Snapshot, error) {
	resolved := make(map[model.StageKind]*model.Snapshot, len(def.Prereqs))
	for _, prereq := range def.Prereqs {
		snap, err := r.store.LatestSnapshot(ctx, prereq, prereqEntity(prereq, entity))
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, &MissingDependencyError{Stage: prereq}
		}
		if err != nil {
			return nil, eris.Wrapf(err, "resolve %s for %s", prereq, entity.Key())
		}
		resolved[prereq] = snap
	}
	return resolved, nil
}

// prereqEntity narrows the entity pair to the prerequisite's scope:
// role-level stages are keyed by role only, so a candidate-level stage
// resolves them without the candidate component.
func prereqEntity(prereq model.StageKind, entity model.EntityPair) model.EntityPair {
	if roleScoped[prereq] {
		return model.EntityPair{RoleID: entity.RoleID}
	}
	return entity
}

// roleScoped marks stages whose snapshots are keyed by role alone.
var roleScoped = map[model.StageKind]bool{
	model.StageRoleProfile:    true,
	model.StagePipelineHealth: true,
	model.StagePlanGeneration: true,
}

// RoleScoped reports whether a stage's snapshots are keyed by role only.
func RoleScoped(kind model.StageKind) bool {
	return roleScoped[kind]
}

// SnapshotEntity returns the key a stage's snapshots are stored under.
// Role-level stages drop the candidate so candidate-level callers and
// role-level callers share one snapshot lineage.
func SnapshotEntity(kind model.StageKind, entity model.EntityPair) model.EntityPair {
	if RoleScoped(kind) {
		return model.EntityPair{RoleID: entity.RoleID}
	}
	return entity
}
