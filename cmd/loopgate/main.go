package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopgate/loopgate/internal/buildinfo"
)

var (
	flagConfig        string
	flagNoHostsEdit   bool
	flagHostsPath     string
	flagMetricsListen string
	flagVerbose       bool
)

func main() {
	root := &cobra.Command{
		Use:     "loopgate",
		Short:   "Redirect named game-service endpoints to local proxy listeners",
		Version: fmt.Sprintf("%s (%s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return run()
		},
	}

	root.Flags().StringVarP(&flagConfig, "config", "c", "loopgate.yaml", "configuration file (yaml/json/toml)")
	root.Flags().BoolVar(&flagNoHostsEdit, "no-hosts-edit", false, "do not touch the system hosts file")
	root.Flags().StringVar(&flagHostsPath, "hosts-path", "", "hosts file location (defaults to the platform path)")
	root.Flags().StringVar(&flagMetricsListen, "metrics-listen", "", "address for the prometheus /metrics endpoint")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
