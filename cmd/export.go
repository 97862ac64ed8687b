package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-scorecard/internal/report"
	"github.com/naka-gawa/github-scorecard/internal/store"
)

func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Exports every saved scoreboard to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Database.URL == "" {
				return errNoDatabase
			}
			st, err := store.Open(ctx, cfg.Database.URL, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			records, err := st.List(ctx)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = report.ExportFilename(time.Now())
			}
			if err := writeFile(output, func(w io.Writer) error {
				return report.WriteRecordsCSV(w, records)
			}); err != nil {
				return fmt.Errorf("failed to export scoreboards: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d scoreboards to %s\n", len(records), output)
			return nil
		},
	}
	exportCmd.Flags().StringP("output", "o", "", "Destination CSV file (default scoreboard_data_<timestamp>.csv)")
	return exportCmd
}
