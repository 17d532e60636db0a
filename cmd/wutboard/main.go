package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version info set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	backendURL string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wutboard",
	Short: "Insights into AI issue estimations",
	Long: `wutboard reads the estimation history of the WUT backend and summarises
how accurate, stable and explainable the AI estimates are.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wutboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $HOME/.wutboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "", "WUT backend URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(estimationsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Ctrl-C cancels in-flight backend calls.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
