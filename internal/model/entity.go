package model

// EntityPair identifies what a stage's output is scoped to: a role and,
// for candidate-level stages, a candidate. Immutable, owned by the caller's
// domain, passed by value.
type EntityPair struct {
	RoleID      string `json:"role_id"`
	CandidateID string `json:"candidate_id,omitempty"`
}

// Key returns a stable string form used in store keys and log fields.
func (e EntityPair) Key() string {
	if e.CandidateID == "" {
		return e.RoleID
	}
	return e.RoleID + "/" + e.CandidateID
}
