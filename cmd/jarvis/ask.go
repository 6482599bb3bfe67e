package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jarvis/confirm"
	"jarvis/executor"
)

func newAskCmd(flags *globalFlags) *cobra.Command {
	var (
		serverURL string
		token     string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "ask <goal>",
		Short: "Run one agent episode for a goal",
		Long: `Run one planning episode. Plans that need consent are shown and
confirmed on stdin. With --server the episode runs on a jarvis serve
instance and its confirmations are answered here.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			in := newLineReader(os.Stdin)
			out := cmd.OutOrStdout()

			if serverURL != "" {
				return askRemote(cmd.Context(), executor.NewClient(serverURL, token), goal, in, out)
			}

			a, err := openApp(cmd.Context(), flags, appOptions{withModel: true})
			if err != nil {
				return err
			}
			defer a.Close()

			var confirmer confirm.Confirmer = promptConfirm(in, out, a.cfg.Agent.ConfirmationTimeout)
			if yes {
				confirmer = confirm.Func(func(context.Context, confirm.Request) bool { return true })
			}
			answer, err := a.newAgent(confirmer).Think(cmd.Context(), goal)
			fmt.Fprintln(out, answer)
			return err
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "run on a jarvis serve instance at this URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("JARVIS_API_TOKEN"), "API token for --server")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve every plan that asks for confirmation")
	return cmd
}

const remotePollInterval = time.Second

// askRemote runs the episode on a server and answers its confirmations
// from the local terminal while waiting.
func askRemote(ctx context.Context, client *executor.Client, goal string, in *lineReader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type reply struct {
		answer string
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		answer, err := client.Think(ctx, goal)
		done <- reply{answer, err}
	}()

	ask := promptConfirm(in, out, confirm.DefaultTimeout)
	seen := map[string]struct{}{}
	ticker := time.NewTicker(remotePollInterval)
	defer ticker.Stop()
	for {
		select {
		case r := <-done:
			fmt.Fprintln(out, r.answer)
			return r.err
		case <-ticker.C:
			pending, err := client.Pending(ctx)
			if err != nil {
				continue
			}
			for _, req := range pending {
				if _, ok := seen[req.ID]; ok {
					continue
				}
				seen[req.ID] = struct{}{}
				if err := client.Resolve(ctx, req.ID, ask.Confirm(ctx, req).Approved()); err != nil {
					fmt.Fprintf(out, "could not resolve confirmation: %v\n", err)
				}
			}
		}
	}
}
