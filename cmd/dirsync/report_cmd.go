package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/openmined/dirsync/internal/config"
	"github.com/openmined/dirsync/internal/report"
	"github.com/openmined/dirsync/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newReportCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the report of the last run of a job",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadJobConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			stateDir, _ := cmd.Flags().GetString("state-dir")
			ws, err := workspace.NewWorkspace(stateDir)
			if err != nil {
				return err
			}

			jobID := workspace.JobID(backendTarget(cfg), cfg.LocalRoot, cfg.RemoteRoot)
			rep, err := report.Load(ws.ReportPath(jobID))
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no report for job %s yet", jobID)
			} else if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return rep.WriteJSON(cmd.OutOrStdout())
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			rep.Print(cmd.OutOrStdout(), verbose)
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	addJobFlags(cmd)
	cmd.Flags().Bool("json", false, "print the report as JSON")
	cmd.Flags().BoolP("verbose", "v", false, "list every item")

	return cmd
}
