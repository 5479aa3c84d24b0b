package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lodgescout/resolver-cli/internal/pipeline"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <locality>",
	Short: "Resolve contacts for all accommodation businesses in a locality",
	Long:  "Runs the full pipeline for a locality: discovers organization names, selects official websites, crawls them, and extracts email/address data. Resumes from the last completed stage if interrupted.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locality := strings.Join(args, " ")
		if err := pipeline.ValidateLocality(locality); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := env.Pipeline.Run(ctx, locality)
		if data != nil {
			resolved := 0
			for _, org := range data.Organizations {
				if org.Email != "" || org.Address != "" {
					resolved++
				}
			}
			fmt.Printf("%s: %d organizations, %d with contacts, stage status %s\n",
				data.CurrentLocation, len(data.Organizations), resolved,
				data.ProcessStatus.LastStageStatus)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
