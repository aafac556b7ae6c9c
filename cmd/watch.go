package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/placerank/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run rank checks from a watch list on cron schedules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if file, _ := cmd.Flags().GetString("file"); file != "" {
			cfg.Watch.File = file
		}

		env, err := initEnv(ctx, "watch", sinkOptional)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := watch.Load(cfg.Watch.File)
		if err != nil {
			return err
		}
		sched, err := watch.New(env.Ranks, entries, cfg.Watch.DefaultSchedule)
		if err != nil {
			return err
		}

		if once, _ := cmd.Flags().GetBool("once"); once {
			results := sched.RunAll(ctx)
			fmt.Fprintf(os.Stderr, "Checked %d of %d entries\n", len(results), len(entries))
			return writeJSON(os.Stdout, results)
		}

		env.startMonitoring(ctx)
		sched.Run(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().String("file", "", "watch list YAML file (default from config)")
	watchCmd.Flags().Bool("once", false, "check every entry once and exit")
	rootCmd.AddCommand(watchCmd)
}
