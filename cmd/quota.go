package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hireloop/talent-cli/internal/stage"
	"github.com/hireloop/talent-cli/internal/store"
)

var (
	quotaOrg string
	quotaDay string
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show daily quota usage per metric",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		org := quotaOrg
		if org == "" {
			org = cfg.Pipeline.OrgID
		}
		day := quotaDay
		if day == "" {
			day = time.Now().UTC().Format("2006-01-02")
		}

		return formatQuotaUsage(cmd.Context(), os.Stdout, st, org, day)
	},
}

func formatQuotaUsage(ctx context.Context, w io.Writer, st store.Store, org, day string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "METRIC\tUSED\tLIMIT\n")
	for _, def := range stage.All() {
		count, err := st.GetQuotaUsage(ctx, org, def.Metric, day)
		if err != nil {
			return err
		}
		limit, ok := cfg.Quota.Limits[def.Metric]
		if !ok {
			limit = cfg.Quota.DefaultDailyLimit
		}
		limitStr := fmt.Sprintf("%d", limit)
		if limit < 0 {
			limitStr = "unlimited"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", def.Metric, count, limitStr)
	}
	return tw.Flush()
}

func init() {
	quotaCmd.Flags().StringVar(&quotaOrg, "org", "", "organization id (default from config)")
	quotaCmd.Flags().StringVar(&quotaDay, "day", "", "UTC day key, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(quotaCmd)
}
