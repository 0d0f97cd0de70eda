package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"animat/internal/stats"
	"animat/pkg/animat"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the learned utility and best action per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			agentID, _ := cmd.Flags().GetString("agent")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			items, err := client.Policy(cmd.Context(), animat.PolicyRequest{RunID: runID, Latest: latest, AgentID: agentID})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No learned policies in this run.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tOBJECTIVE\tSTATE\tU\tPI")
			for _, item := range items {
				states := make([]string, 0, len(item.U))
				for state := range item.U {
					states = append(states, state)
				}
				stats.SortStates(states)
				for _, state := range states {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%s\n", item.AgentID, item.Objective, state, item.U[state], item.Pi[state])
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("run-id", "", "Run to inspect")
	cmd.Flags().Bool("latest", false, "Inspect the most recent run")
	cmd.Flags().String("agent", "", "Only show this agent")
	return cmd
}
