package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/pipeline"
)

var (
	batchRoster string
	batchActor  string
	batchOrg    string
	batchLimit  int
)

// rosterEntry is one entity in a batch roster file.
type rosterEntry struct {
	Role      string            `yaml:"role"`
	Candidate string            `yaml:"candidate"`
	Context   map[string]string `yaml:"context"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <stage>",
	Short: "Generate a stage artifact for every entity in a roster file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		kind, err := model.ParseStageKind(args[0])
		if err != nil {
			return err
		}

		entries, err := loadRoster(batchRoster)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		org := batchOrg
		if org == "" {
			org = cfg.Pipeline.OrgID
		}

		return processBatch(ctx, env.Executor, kind, entries, batchActor, org, batchLimit, cfg.Pipeline.MaxConcurrency)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchRoster, "roster", "", "YAML roster of entities (required)")
	batchCmd.Flags().StringVar(&batchActor, "actor", "", "authenticated actor id (required)")
	batchCmd.Flags().StringVar(&batchOrg, "org", "", "organization id for quota accounting (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max entities to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("roster")
	rootCmd.AddCommand(batchCmd)
}

// loadRoster parses the YAML roster file.
func loadRoster(path string) ([]rosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read roster")
	}
	var entries []rosterEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "parse roster")
	}
	for i, e := range entries {
		if e.Role == "" {
			return nil, eris.Errorf("roster entry %d: role is required", i)
		}
	}
	return entries, nil
}

// processBatch runs the stage for each roster entry concurrently. An
// individual rejection or failure does not abort the batch.
func processBatch(ctx context.Context, exec *pipeline.Executor, kind model.StageKind, entries []rosterEntry, actor, org string, limit, concurrency int) error {
	if len(entries) == 0 {
		zap.L().Info("roster is empty")
		return nil
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	zap.L().Info("processing batch",
		zap.String("stage", string(kind)),
		zap.Int("entities", len(entries)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var completed, rejected, failed atomic.Int64

	for _, entry := range entries {
		pair := model.EntityPair{RoleID: entry.Role, CandidateID: entry.Candidate}
		entityCtx := entry.Context
		g.Go(func() error {
			log := zap.L().With(zap.String("entity", pair.Key()))

			outcome, err := exec.Execute(gctx, pipeline.Request{
				Stage:   kind,
				Entity:  pair,
				Actor:   actor,
				OrgID:   org,
				Context: entityCtx,
			})
			if err != nil {
				failed.Add(1)
				log.Error("stage errored", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			switch outcome.State {
			case pipeline.StateCompleted:
				completed.Add(1)
				log.Info("stage completed", zap.Bool("fallback", outcome.Metadata.Fallback))
			case pipeline.StateRejected:
				rejected.Add(1)
				log.Warn("stage rejected", zap.String("code", outcome.Code))
			default:
				failed.Add(1)
				log.Error("stage failed", zap.String("code", outcome.Code))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("completed", completed.Load()),
		zap.Int64("rejected", rejected.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
