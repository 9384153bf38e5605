package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/pipeline"
)

var (
	genRole        string
	genCandidate   string
	genActor       string
	genOrg         string
	genContext     []string
	genContextFile string
)

var generateCmd = &cobra.Command{
	Use:   "generate <stage>",
	Short: "Generate one stage artifact for an entity",
	Long:  "Resolves the stage's prerequisite snapshots, checks the daily quota, runs the generation, and persists the result as a new immutable snapshot. Valid stages: " + stageList() + ".",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := model.ParseStageKind(args[0])
		if err != nil {
			return err
		}

		entityCtx, err := loadEntityContext(genContext, genContextFile)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		org := genOrg
		if org == "" {
			org = cfg.Pipeline.OrgID
		}

		outcome, err := env.Executor.Execute(ctx, pipeline.Request{
			Stage:   kind,
			Entity:  model.EntityPair{RoleID: genRole, CandidateID: genCandidate},
			Actor:   genActor,
			OrgID:   org,
			Context: entityCtx,
		})
		if err != nil {
			return eris.Wrapf(err, "generate %s", kind)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newOutcomeView(outcome)); err != nil {
			return err
		}
		if !outcome.Completed() {
			// Rejections and upstream failures are reported in the JSON,
			// not as a usage error, but still exit non-zero for scripts.
			cmd.SilenceUsage = true
			return eris.Errorf("%s: %s", outcome.Code, outcome.Message)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&genRole, "role", "", "role identifier (required)")
	generateCmd.Flags().StringVar(&genCandidate, "candidate", "", "candidate identifier (required for candidate-level stages)")
	generateCmd.Flags().StringVar(&genActor, "actor", "", "authenticated actor id (required)")
	generateCmd.Flags().StringVar(&genOrg, "org", "", "organization id for quota accounting (default from config)")
	generateCmd.Flags().StringArrayVar(&genContext, "context", nil, "entity context as key=value (repeatable)")
	generateCmd.Flags().StringVar(&genContextFile, "context-file", "", "YAML file of entity context key/value pairs")
	_ = generateCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(generateCmd)
}

// stageList renders the valid stage names for help text.
func stageList() string {
	names := make([]string, 0, len(model.AllStageKinds))
	for _, k := range model.AllStageKinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// loadEntityContext merges --context-file pairs with --context key=value
// flags; flags win on conflict.
func loadEntityContext(pairs []string, file string) (map[string]string, error) {
	out := map[string]string{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, eris.Wrap(err, "read context file")
		}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, eris.Wrap(err, "parse context file")
		}
	}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, eris.Errorf("invalid --context %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// outcomeView is the stable JSON shape printed for an invocation.
type outcomeView struct {
	Success   bool            `json:"success"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot_payload,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	Fallback  bool            `json:"fallback,omitempty"`
	Model     string          `json:"model,omitempty"`
	CostUSD   float64         `json:"estimated_cost_usd,omitempty"`
}

func newOutcomeView(o *pipeline.Outcome) outcomeView {
	v := outcomeView{
		Success: o.Completed(),
		Code:    o.Code,
		Message: o.Message,
	}
	if o.Snapshot != nil {
		v.Snapshot = o.Snapshot.Payload
		v.CreatedAt = o.Snapshot.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		v.Fallback = o.Metadata.Fallback
		v.Model = o.Metadata.Model
		v.CostUSD = o.Metadata.EstimatedCostUSD
	}
	return v
}
