package main

import (
	"github.com/spf13/cobra"

	"jarvis/confirm"
	"jarvis/mcpbridge"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	var withAgent bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tool registry over MCP stdio",
		Long: `Expose every session tool as an MCP tool on stdin/stdout. Logs go only
to --log-file since stdout carries the protocol. With --agent a
jarvis_think tool runs full episodes; plans that would need
confirmation are declined because nobody can answer on stdio.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{withModel: withAgent, quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []mcpbridge.Option{mcpbridge.WithLogger(a.logger)}
			if withAgent {
				opts = append(opts, mcpbridge.WithAgent(a.newAgent(confirm.AutoDecline{})))
			}
			return mcpbridge.New(a.registry, a.executor, opts...).ServeStdio(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&withAgent, "agent", false, "also expose jarvis_think (needs an LLM key)")
	return cmd
}
