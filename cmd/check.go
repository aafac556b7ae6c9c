package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/rank"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check where a listing ranks for a keyword",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keyword, _ := cmd.Flags().GetString("keyword")
		placeID, _ := cmd.Flags().GetString("place-id")
		placeName, _ := cmd.Flags().GetString("place-name")
		phone, _ := cmd.Flags().GetString("phone")
		depth, _ := cmd.Flags().GetInt("depth")

		return runCheck(cmd.Context(), cmd.OutOrStdout(), rank.CheckRequest{
			Keyword:   keyword,
			Target:    model.Target{ID: placeID, Name: placeName, Phone: phone},
			ScanDepth: depth,
		})
	},
}

// runCheck performs one rank check and writes the result as JSON. The
// result is written even when the store is unavailable.
func runCheck(ctx context.Context, out io.Writer, req rank.CheckRequest) error {
	env, err := initEnv(ctx, "check", sinkOptional)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.Ranks.Check(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func init() {
	checkCmd.Flags().StringP("keyword", "k", "", "search keyword (required)")
	checkCmd.Flags().String("place-id", "", "listing ID to match")
	checkCmd.Flags().String("place-name", "", "listing name to match")
	checkCmd.Flags().String("phone", "", "listing phone number to match")
	checkCmd.Flags().Int("depth", 0, "how many results to scan (default from config)")
	_ = checkCmd.MarkFlagRequired("keyword")
	rootCmd.AddCommand(checkCmd)
}
