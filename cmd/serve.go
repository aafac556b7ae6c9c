package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/placerank/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve", sinkRequired)
		if err != nil {
			return err
		}
		defer env.Close()

		env.startMonitoring(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		router := api.NewRouter(api.NewHandler(env.apiDeps()), cfg.Server.AllowedOrigins)
		return api.Serve(ctx, api.Addr(port), router)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
