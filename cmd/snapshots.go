package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hireloop/talent-cli/internal/model"
	"github.com/hireloop/talent-cli/internal/pipeline"
)

var (
	snapRole      string
	snapCandidate string
	snapLimit     int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect stage snapshots",
	Long:  "Commands for reading the latest snapshot and the append-only history of a stage.",
}

// -- snapshots latest --

var snapshotsLatestCmd = &cobra.Command{
	Use:   "latest <stage>",
	Short: "Show the latest snapshot for an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := model.ParseStageKind(args[0])
		if err != nil {
			return err
		}
		if err := cfg.Validate("read"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entity := pipeline.SnapshotEntity(kind, model.EntityPair{RoleID: snapRole, CandidateID: snapCandidate})
		snap, err := st.LatestSnapshot(ctx, kind, entity)
		if err != nil {
			return eris.Wrapf(err, "latest %s", kind)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

// -- snapshots history --

var snapshotsHistoryCmd = &cobra.Command{
	Use:   "history <stage>",
	Short: "List the snapshot history for an entity, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := model.ParseStageKind(args[0])
		if err != nil {
			return err
		}
		if err := cfg.Validate("read"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entity := pipeline.SnapshotEntity(kind, model.EntityPair{RoleID: snapRole, CandidateID: snapCandidate})
		history, err := st.SnapshotHistory(ctx, kind, entity, snapLimit)
		if err != nil {
			return eris.Wrapf(err, "history %s", kind)
		}
		if len(history) == 0 {
			fmt.Fprintln(os.Stderr, "No snapshots found.")
			return nil
		}

		formatSnapshotHistory(os.Stdout, history)
		return nil
	},
}

func formatSnapshotHistory(w io.Writer, history []model.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tID\tBY\tBYTES")
	for _, snap := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			snap.CreatedAt.Format("2006-01-02 15:04:05"),
			snap.ID,
			snap.CreatedBy,
			len(snap.Payload),
		)
	}
	_ = tw.Flush()
}

func init() {
	snapshotsCmd.PersistentFlags().StringVar(&snapRole, "role", "", "role identifier (required)")
	snapshotsCmd.PersistentFlags().StringVar(&snapCandidate, "candidate", "", "candidate identifier (for candidate-level stages)")
	snapshotsHistoryCmd.Flags().IntVar(&snapLimit, "limit", 20, "max snapshots to list")
	_ = snapshotsCmd.MarkPersistentFlagRequired("role")

	snapshotsCmd.AddCommand(snapshotsLatestCmd)
	snapshotsCmd.AddCommand(snapshotsHistoryCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
