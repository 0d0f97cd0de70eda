package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"animat/pkg/animat"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarize an agent's status history",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			agentID, _ := cmd.Flags().GetString("agent")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.History(cmd.Context(), animat.HistoryRequest{RunID: runID, Latest: latest, AgentID: agentID})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s agent=%s samples=%d\n", summary.RunID, summary.AgentID, len(summary.Samples))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OBJECTIVE\tINITIAL\tFINAL\tMIN\tMAX\tREWARD")
			for _, o := range summary.Objectives {
				fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%+.4f\n", o.Objective, o.Initial, o.Final, o.Min, o.Max, o.Reward)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("run-id", "", "Run to inspect")
	cmd.Flags().Bool("latest", false, "Inspect the most recent run")
	cmd.Flags().String("agent", "", "Agent id (required)")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
