package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodgescout/resolver-cli/internal/cache"
)

var statusCmd = &cobra.Command{
	Use:   "status [locality]",
	Short: "Show cached resolution progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := cache.NewManager(cfg.Cache.Dir)
		if err != nil {
			return err
		}

		data, err := cm.Load()
		if err != nil {
			return err
		}
		if data == nil {
			fmt.Println("no cached locality")
			return nil
		}

		if len(args) > 0 {
			want := cache.NormalizeLocality(strings.Join(args, " "))
			if cache.NormalizeLocality(data.CurrentLocation) != want {
				fmt.Printf("no cache for %q (current locality: %s)\n", want, data.CurrentLocation)
				return nil
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the cached resolution state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := cache.NewManager(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		if err := cm.Clear(); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
}
