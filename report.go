package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tejzpr/checkup-bot/internal/db"
	"github.com/tejzpr/checkup-bot/internal/report"
	"github.com/tejzpr/checkup-bot/internal/webserver"
)

func reportCmd() *cobra.Command {
	var (
		days   int
		out    string
		remote string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the submissions workbook for the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return report.ErrInvalidLookback
			}
			ctx := cmd.Context()

			var (
				rep *report.Report
				err error
			)
			if remote != "" {
				if !webserver.IsRunning(ctx, remote) {
					return fmt.Errorf("no checkup-bot operator API at %s", remote)
				}
				rep, err = webserver.RemoteReport(ctx, remote, days)
			} else {
				cfg, cerr := loadConfig()
				if cerr != nil {
					return cerr
				}
				store, oerr := db.Open(cfg.DBPath)
				if oerr != nil {
					return oerr
				}
				defer store.Close()
				rep, err = (&report.Generator{Source: store}).Generate(ctx, days)
			}
			if errors.Is(err, report.ErrNoSubmissions) {
				fmt.Fprintln(cmd.OutOrStdout(), "No submissions found for this period.")
				return nil
			}
			if err != nil {
				return err
			}

			if out == "" {
				out = rep.Filename
			}
			if err := os.WriteFile(out, rep.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", report.DefaultLookbackDays, "lookback window in days")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default requests_report_<days>d.xlsx)")
	cmd.Flags().StringVar(&remote, "remote", "", "fetch from a running operator API instead of the local database")
	return cmd
}
