package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
	logFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "jarvis",
		Short: "Confidence-gated personal assistant agent",
		Long: `Jarvis plans tool calls with an LLM, gates each plan on a confidence
score, asks before risky actions and remembers what worked.

Examples:
  jarvis ask "rename report.txt on my desktop to final.txt"
  jarvis chat
  jarvis serve --addr 127.0.0.1:8765
  jarvis mcp
  jarvis history execute_shell_command`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default ./jarvis.yaml or ~/.jarvis/jarvis.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&flags.logFile, "log-file", "", "also write logs to this file")

	root.AddCommand(
		newAskCmd(flags),
		newChatCmd(flags),
		newServeCmd(flags),
		newMCPCmd(flags),
		newToolsCmd(flags),
		newHistoryCmd(flags),
		newMemoryCmd(flags),
	)
	return root
}
