package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/placerank/internal/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Inspect the egress proxy pool",
}

var proxyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the proxy pool through one endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pool := proxy.NewPool(cfg.Proxy)
		return writeJSON(os.Stdout, proxy.Probe(cmd.Context(), pool, cfg.Proxy.ProbeURL, probeTimeout))
	},
}

func init() {
	proxyCmd.AddCommand(proxyStatusCmd)
	rootCmd.AddCommand(proxyCmd)
}
