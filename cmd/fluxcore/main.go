// Command fluxcore is the operator-facing entrypoint for the
// orchestration core: it runs one-shot inferences and inspects a
// Confidence Lake file directly, with no daemon or transport layer of
// its own (those are explicitly out of scope here).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxcore/engine/internal/config"
	"github.com/fluxcore/engine/internal/logger"
)

var (
	configFlag string
	lakeFlag   string
	secretFlag string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "fluxcore",
		Short: "fluxcore — inference orchestration core",
		Long:  "Routes text through SacredGeometry and the Context Preserver, and with --persist writes each admitted result to a Confidence Lake. Consensus verification is not wired into this CLI.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logLevel, "")
		},
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to a YAML config overriding the built-in defaults")
	root.PersistentFlags().StringVar(&lakeFlag, "lake", "fluxcore.lake", "path to the Confidence Lake file")
	root.PersistentFlags().StringVar(&secretFlag, "secret", os.Getenv("FLUXCORE_LAKE_SECRET"), "Lake encryption secret (default: $FLUXCORE_LAKE_SECRET)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(inferCmd(), metricsCmd(), weightsCmd(), lakeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the active configuration from --config, falling
// back to the built-in defaults when no path was given.
func loadConfig() (*config.Config, error) {
	if configFlag == "" {
		return config.Default(), nil
	}
	mgr, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return mgr.Current(), nil
}
