package model

import "fmt"

// StageKind names one computation in the derived-artifact pipeline.
// The set is closed: stages are defined in code, not by users.
type StageKind string

const (
	StageRoleProfile     StageKind = "role_profile"
	StageRoleFit         StageKind = "role_fit"
	StageShortlistScore  StageKind = "shortlist_score"
	StageOfferLikelihood StageKind = "offer_likelihood"
	StagePipelineHealth  StageKind = "pipeline_health"
	StagePlanGeneration  StageKind = "plan_generation"
	StageInterviewPrep   StageKind = "interview_prep"
	StageOutreachDraft   StageKind = "outreach_draft"
)

// AllStageKinds lists every stage in pipeline order.
var AllStageKinds = []StageKind{
	StageRoleProfile,
	StageRoleFit,
	StageShortlistScore,
	StageOfferLikelihood,
	StagePipelineHealth,
	StagePlanGeneration,
	StageInterviewPrep,
	StageOutreachDraft,
}

// Valid reports whether k is a known stage kind.
func (k StageKind) Valid() bool {
	for _, s := range AllStageKinds {
		if s == k {
			return true
		}
	}
	return false
}

func (k StageKind) String() string {
	return string(k)
}

// ParseStageKind converts a user-supplied string into a StageKind.
func ParseStageKind(s string) (StageKind, error) {
	k := StageKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown stage kind: %q", s)
	}
	return k, nil
}
