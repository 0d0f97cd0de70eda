package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"animat/internal/logging"
	"animat/pkg/animat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "animatctl",
		Short: "Run and inspect animat simulations",
		Long: `animatctl runs mother-and-calf style animat simulations in the sea scape
and reads back the stored runs, learned policies and status histories.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory or sqlite (default depends on build)")
	rootCmd.PersistentFlags().String("db-path", "animat.db", "SQLite database path")
	rootCmd.PersistentFlags().String("artifacts-dir", "runs", "Directory for run artifacts")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: error, warn, info, debug, trace")

	rootCmd.AddCommand(
		newRunCmd(),
		newRunsCmd(),
		newPolicyCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newPresetsCmd(),
	)
	return rootCmd
}

func newClient(cmd *cobra.Command) (*animat.Client, error) {
	storeKind, _ := cmd.Flags().GetString("store")
	dbPath, _ := cmd.Flags().GetString("db-path")
	artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
	level, _ := cmd.Flags().GetString("log-level")

	return animat.New(animat.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: artifactsDir,
		Logger:       logging.NewLogger(level, cmd.ErrOrStderr()),
	})
}

func jsonOutput(cmd *cobra.Command) bool {
	out, _ := cmd.Flags().GetBool("json")
	return out
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
