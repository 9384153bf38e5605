package stage

import "github.com/hireloop/talent-cli/internal/model"

// Instruction templates. Each enumerates the exact JSON object the stage
// must return; context assembled from resolved snapshots and entity data
// is appended by the gateway.
const roleProfileTemplate = `You are a recruiting analyst extracting a structured role profile from a job description.

Return a valid JSON object:
{"title": "<normalized role title>", "seniority": "<junior|mid|senior|staff|executive>", "skills": ["<required skill>"], "requirements": ["<hard requirement>"], "summary": "<two-sentence summary>", "rationale": "<brief explanation>"}`

const roleFitTemplate = `You are a recruiting analyst scoring how well a candidate fits a role. Use only the role profile and candidate material provided; do not consider or infer protected attributes (age, gender, ethnicity, disability, family status).

Return a valid JSON object:
{"score": <0-100>, "strengths": ["<matched strength>"], "gaps": ["<missing requirement>"], "rationale": "<brief explanation>"}`

const shortlistScoreTemplate = `You are a recruiting analyst producing a shortlist score for a candidate, combining the role profile and the fit assessment provided. Weight demonstrated skills over credentials; do not consider or infer protected attributes.

Return a valid JSON object:
{"score": <0-100>, "rank_factors": ["<factor that moved the score>"], "rationale": "<brief explanation>"}`

const offerLikelihoodTemplate = `You are a recruiting analyst estimating the likelihood that an offer to this candidate would be accepted, given the role profile, fit assessment, and shortlist score provided.

Return a valid JSON object:
{"score": <0-100>, "risk_factors": ["<acceptance risk>"], "rationale": "<brief explanation>"}`

const pipelineHealthTemplate = `You are a recruiting analyst assessing the health of the hiring pipeline for a role, given the role profile and the funnel data provided.

Return a valid JSON object:
{"score": <0-100>, "bottlenecks": ["<stage of the funnel that is underperforming>"], "rationale": "<brief explanation>"}`

const planGenerationTemplate = `You are a recruiting strategist. Given the pipeline health assessment provided, produce a concrete sourcing-and-hiring plan for the role.

Return a valid JSON object:
{"steps": [{"action": "<concrete action>", "owner": "<recruiter|hiring_manager>", "timeframe": "<e.g. this week>"}], "rationale": "<brief explanation>"}`

const interviewPrepTemplate = `You are a recruiting analyst preparing an interviewer for a candidate conversation, given the role profile and fit assessment provided. Focus questions on the identified gaps; keep them job-related only.

Return a valid JSON object:
{"questions": ["<interview question>"], "focus_areas": ["<area to probe>"], "rationale": "<brief explanation>"}`

const outreachDraftTemplate = `You are a recruiting copywriter drafting a first-touch outreach message to a candidate, grounded in the role profile and fit assessment provided. Professional, specific, no salary promises.

Return a valid JSON object:
{"subject": "<email subject>", "body": "<email body>", "rationale": "<brief explanation>"}`

// registry holds every stage definition, keyed by kind.
var registry = map[model.StageKind]Definition{
	model.StageRoleProfile: {
		Kind:      model.StageRoleProfile,
		Prereqs:   nil,
		Metric:    "role_profile",
		Template:  roleProfileTemplate,
		Required:  []string{"title", "skills"},
		MaxTokens: 1024,
	},
	model.StageRoleFit: {
		Kind:      model.StageRoleFit,
		Prereqs:   []model.StageKind{model.StageRoleProfile},
		Metric:    "role_fit",
		Template:  roleFitTemplate,
		Required:  []string{"score"},
		MaxTokens: 1024,
		scoreKey:  "score",
	},
	model.StageShortlistScore: {
		Kind:      model.StageShortlistScore,
		Prereqs:   []model.StageKind{model.StageRoleProfile, model.StageRoleFit},
		Metric:    "shortlist_score",
		Template:  shortlistScoreTemplate,
		Required:  []string{"score"},
		MaxTokens: 768,
		scoreKey:  "score",
	},
	model.StageOfferLikelihood: {
		Kind:      model.StageOfferLikelihood,
		Prereqs:   []model.StageKind{model.StageRoleProfile, model.StageRoleFit, model.StageShortlistScore},
		Metric:    "offer_likelihood",
		Template:  offerLikelihoodTemplate,
		Required:  []string{"score"},
		MaxTokens: 768,
		scoreKey:  "score",
	},
	model.StagePipelineHealth: {
		Kind:      model.StagePipelineHealth,
		Prereqs:   []model.StageKind{model.StageRoleProfile},
		Metric:    "pipeline_health",
		Template:  pipelineHealthTemplate,
		Required:  []string{"score"},
		MaxTokens: 768,
		scoreKey:  "score",
	},
	model.StagePlanGeneration: {
		Kind:      model.StagePlanGeneration,
		Prereqs:   []model.StageKind{model.StagePipelineHealth},
		Metric:    "plan_generation",
		Template:  planGenerationTemplate,
		Required:  []string{"steps"},
		MaxTokens: 2048,
	},
	model.StageInterviewPrep: {
		Kind:      model.StageInterviewPrep,
		Prereqs:   []model.StageKind{model.StageRoleProfile, model.StageRoleFit},
		Metric:    "interview_prep",
		Template:  interviewPrepTemplate,
		Required:  []string{"questions"},
		MaxTokens: 1024,
	},
	model.StageOutreachDraft: {
		Kind:      model.StageOutreachDraft,
		Prereqs:   []model.StageKind{model.StageRoleProfile, model.StageRoleFit},
		Metric:    "outreach_draft",
		Template:  outreachDraftTemplate,
		Required:  []string{"subject", "body"},
		MaxTokens: 1024,
	},
}

// fallbackPayloads are the minimal schema-valid payloads substituted when
// a generation cannot be parsed. Scores default to 0 ("low").
var fallbackPayloads = map[model.StageKind]string{
	model.StageRoleProfile:     `{"title":"","seniority":"","skills":[],"requirements":[],"summary":"","rationale":""}`,
	model.StageRoleFit:         `{"score":0,"band":"low","strengths":[],"gaps":[],"rationale":""}`,
	model.StageShortlistScore:  `{"score":0,"band":"low","rank_factors":[],"rationale":""}`,
	model.StageOfferLikelihood: `{"score":0,"band":"low","risk_factors":[],"rationale":""}`,
	model.StagePipelineHealth:  `{"score":0,"band":"low","bottlenecks":[],"rationale":""}`,
	model.StagePlanGeneration:  `{"steps":[],"rationale":""}`,
	model.StageInterviewPrep:   `{"questions":[],"focus_areas":[],"rationale":""}`,
	model.StageOutreachDraft:   `{"subject":"","body":"","rationale":""}`,
}
