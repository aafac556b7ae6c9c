package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/placerank/internal/export"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/rank"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <place-url>",
	Short: "Discover keywords a listing already ranks for",
	Long:  "Resolves the listing, generates candidate keywords from its name, category and address, and keeps the ones where it ranks organically within the limit.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "discover", sinkOptional)
		if err != nil {
			return err
		}
		defer env.Close()

		count, _ := cmd.Flags().GetInt("count")
		limit, _ := cmd.Flags().GetInt("limit")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		asJSON, _ := cmd.Flags().GetBool("json")

		rep, err := env.Discoverer.Discover(ctx, rank.DiscoverRequest{
			PlaceURL:     args[0],
			KeywordCount: count,
			RankLimit:    limit,
		})
		if err != nil {
			return err
		}

		if xlsxPath != "" {
			if err := export.SaveDiscoveries(xlsxPath, []model.DiscoveryReport{*rep}); err != nil {
				return eris.Wrap(err, "discover")
			}
			fmt.Fprintf(os.Stderr, "Wrote %d keywords to %s\n", len(rep.Keywords), xlsxPath)
		}

		if asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatDiscovery(os.Stdout, rep)
		return nil
	},
}

var discoverHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent discovery reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "check", sinkRequired)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		reports, err := env.Store.ListDiscoveries(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "discover history")
		}
		if xlsxPath != "" {
			if err := export.SaveDiscoveries(xlsxPath, reports); err != nil {
				return eris.Wrap(err, "discover history")
			}
			fmt.Fprintf(os.Stderr, "Wrote %d reports to %s\n", len(reports), xlsxPath)
			return nil
		}
		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No discovery reports found.")
			return nil
		}
		formatDiscoveryList(os.Stdout, reports)
		return nil
	},
}

func init() {
	discoverCmd.Flags().Int("count", 0, "number of keywords to generate (default from config)")
	discoverCmd.Flags().Int("limit", 0, "maximum rank to qualify (default from config)")
	discoverCmd.Flags().String("xlsx", "", "also write the qualified keywords to an XLSX file")
	discoverCmd.Flags().Bool("json", false, "print the full report as JSON")

	discoverHistoryCmd.Flags().Int("limit", 20, "max number of reports")
	discoverHistoryCmd.Flags().String("xlsx", "", "export the reports to an XLSX file instead of printing")

	discoverCmd.AddCommand(discoverHistoryCmd)
	rootCmd.AddCommand(discoverCmd)
}
