package main

import (
	"os"

	"github.com/spf13/cobra"
)

var competitorsCmd = &cobra.Command{
	Use:   "competitors <keyword>",
	Short: "List the listings returned for a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "check", sinkOptional)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		snap, err := env.Ranks.Competitors(ctx, args[0], limit)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, snap)
		}
		formatCompetitors(os.Stdout, snap)
		return nil
	},
}

func init() {
	competitorsCmd.Flags().Int("limit", 50, "max number of listings")
	competitorsCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(competitorsCmd)
}
