package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jarvis/confidence"
	"jarvis/tools"
	"jarvis/translog"
)

func newToolsCmd(flags *globalFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			defs := a.registry.Definitions()
			if category != "" {
				defs = a.registry.ForCategories([]string{category})
			}
			printTools(cmd.OutOrStdout(), defs)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only tools of this intent category")
	return cmd
}

func printTools(out io.Writer, defs []*tools.Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Category != defs[j].Category {
			return defs[i].Category < defs[j].Category
		}
		return defs[i].Name < defs[j].Name
	})
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTOOL\tSIGNATURE\tDESTRUCTIVE")
	for _, d := range defs {
		destructive := ""
		if confidence.IsDestructive(d.Name) {
			destructive = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Category, d.Name, d.Schema.Signature(), destructive)
	}
	_ = tw.Flush()
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [tool]",
		Short: "Show recent tool executions, newest first, and historical confidence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			var tool string
			if len(args) == 1 {
				tool = args[0]
			}
			records, err := a.txlog.Recent(tool, limit)
			if err != nil && !errors.Is(err, translog.ErrNoLog) {
				return fmt.Errorf("failed to read transaction log: %w", err)
			}
			printRecords(out, records)

			if tool != "" {
				h := confidence.NewHistorian(a.txlog, a.cfg.Agent.HistoryRecords, a.logger)
				fmt.Fprintf(out, "\nHistorical confidence for %s: %.2f\n", tool, h.Confidence(tool))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

func printRecords(out io.Writer, records []translog.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No tool executions recorded.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tOK\tCONFIDENCE\tRESULT")
	for _, r := range records {
		conf := "-"
		if r.Confidence != nil {
			conf = fmt.Sprintf("%.2f %s", r.Confidence.AdjustedScore, r.Confidence.Decision)
		}
		result := r.Result
		if !r.Success && r.ErrorFeedback != "" {
			result = r.ErrorFeedback
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.ToolName, r.Success, conf, oneLine(result, 80))
	}
	_ = tw.Flush()
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func newMemoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect long-term memory and preferences",
	}

	var results int
	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Find remembered tasks similar to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.memory.Query(cmd.Context(), strings.Join(args, " "), results)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No matching memories.")
			}
			for i, d := range docs {
				fmt.Fprintf(out, "[%d]\n%s\n\n", i+1, d)
			}
			return nil
		},
	}
	search.Flags().IntVarP(&results, "results", "n", 3, "maximum memories to show")

	prefs := &cobra.Command{
		Use:   "prefs",
		Short: "List saved preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.memory.Preferences(cmd.Context())
			if err != nil {
				return err
			}
			printPreferences(cmd.OutOrStdout(), p)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Save a preference",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			value := strings.Join(args[1:], " ")
			if err := a.memory.SavePreference(cmd.Context(), args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s = %s\n", args[0], value)
			return nil
		},
	}

	cmd.AddCommand(search, prefs, set)
	return cmd
}

func printPreferences(out io.Writer, prefs map[string]string) {
	if len(prefs) == 0 {
		fmt.Fprintln(out, "No preferences saved.")
		return
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %s\n", k, prefs[k])
	}
}
