package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/placerank/internal/export"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, export or delete recorded rank checks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "check", sinkRequired)
		if err != nil {
			return err
		}
		defer env.Close()

		deleteID, _ := cmd.Flags().GetString("delete")
		if deleteID != "" {
			if err := env.Store.DeleteCheck(ctx, deleteID); err != nil {
				return eris.Wrap(err, "history delete")
			}
			fmt.Fprintf(os.Stderr, "Deleted %s\n", deleteID)
			return nil
		}

		keyword, _ := cmd.Flags().GetString("keyword")
		days, _ := cmd.Flags().GetInt("days")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		asJSON, _ := cmd.Flags().GetBool("json")

		since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		checks, err := env.Store.QueryChecks(ctx, keyword, since)
		if err != nil {
			return eris.Wrap(err, "history")
		}

		switch {
		case xlsxPath != "":
			if err := export.SaveHistory(xlsxPath, checks); err != nil {
				return eris.Wrap(err, "history")
			}
			fmt.Fprintf(os.Stderr, "Wrote %d checks to %s\n", len(checks), xlsxPath)
		case asJSON:
			return writeJSON(os.Stdout, checks)
		case len(checks) == 0:
			fmt.Fprintln(os.Stderr, "No rank checks found.")
		default:
			formatHistory(os.Stdout, checks)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("keyword", "k", "", "filter by keyword (default all)")
	historyCmd.Flags().Int("days", 14, "how many days back to include")
	historyCmd.Flags().String("delete", "", "delete the rank check with this ID")
	historyCmd.Flags().String("xlsx", "", "export the history sheet to an XLSX file")
	historyCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(historyCmd)
}
