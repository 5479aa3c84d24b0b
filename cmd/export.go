package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lodgescout/resolver-cli/internal/export"
	"github.com/lodgescout/resolver-cli/internal/pipeline"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <locality>",
	Short: "Export resolved organizations to an XLSX file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locality := strings.Join(args, " ")
		if err := pipeline.ValidateLocality(locality); err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := env.Pipeline.Status(locality)
		if err != nil {
			return err
		}
		if data == nil || len(data.Organizations) == 0 {
			return eris.Errorf("no resolved organizations for %q", locality)
		}

		out := exportOut
		if out == "" {
			out = strings.ReplaceAll(data.CurrentLocation, " ", "_") + ".xlsx"
		}
		if err := export.WriteXLSX(out, data.CurrentLocation, data.Organizations); err != nil {
			return err
		}
		fmt.Printf("wrote %d organizations to %s\n", len(data.Organizations), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file path (default <locality>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
