package main

import (
	"fmt"
	"os"

	"github.com/BearBump/PayTrack/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paytrack-ctl",
		Short:         "Operator tools for PayTrack payment verification",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", os.Getenv("configPath"), "Path to the YAML config")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")

	root.AddCommand(sweepCmd())
	root.AddCommand(parseSMSCmd())
	root.AddCommand(resolveCmd())
	return root
}

// loadConfig reads --config; an empty path yields the zero config, which runs
// against the in-memory store.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.LoadConfig(path)
}
