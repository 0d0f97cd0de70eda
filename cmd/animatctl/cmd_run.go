package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"animat/pkg/animat"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a preset or a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, _ := cmd.Flags().GetString("preset")
			configPath, _ := cmd.Flags().GetString("config")
			steps, _ := cmd.Flags().GetInt("steps")
			runID, _ := cmd.Flags().GetString("run-id")

			req := animat.RunRequest{Preset: preset, ConfigPath: configPath, Steps: steps, RunID: runID}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetUint64("seed")
				req.Seed = &seed
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s ticks=%s stopped=%t\n", summary.RunID, humanize.Comma(int64(summary.Ticks)), summary.Stopped)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tVIABLE\tTICKS\tSTATUS")
			for _, a := range summary.Agents {
				fmt.Fprintf(tw, "%s\t%t\t%d\t%s\n", a.AgentID, a.Viable, a.Ticks, formatValues(a.Status))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if summary.ArtifactsDir != "" {
				fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
			}
			return nil
		},
	}
	cmd.Flags().String("preset", "", "Built-in simulation (see 'animatctl presets')")
	cmd.Flags().String("config", "", "Simulation YAML file")
	cmd.Flags().Int("steps", 0, "Override the number of ticks")
	cmd.Flags().Uint64("seed", 0, "Override the random seed")
	cmd.Flags().String("run-id", "", "Run id (default: random UUID)")
	return cmd
}
