package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jarvis/agent"
	"jarvis/llm"
)

const chatSystemPrompt = "You are JARVIS, a concise and helpful personal assistant. " +
	"Answer conversationally. The user can type /agent <goal> to have you act on their computer."

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; /agent <goal> runs an episode",
		Long: `Start a conversation. Plain messages go to a stateful chat session.
Commands:
  /agent <goal>  run a planning episode
  /reset         forget the conversation
  /exit          quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, appOptions{withModel: true, quiet: true})
			if err != nil {
				return err
			}
			defer a.Close()

			in := newLineReader(os.Stdin)
			out := cmd.OutOrStdout()
			r := &repl{
				session: llm.NewSession(a.model, chatSystemPrompt),
				agent:   a.newAgent(promptConfirm(in, out, a.cfg.Agent.ConfirmationTimeout)),
				in:      in,
				out:     out,
			}
			return r.run(cmd)
		},
	}
}

type repl struct {
	session *llm.Session
	agent   *agent.Agent
	in      *lineReader
	out     io.Writer
}

func (r *repl) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	fmt.Fprintf(r.out, "Jarvis is listening. Type /exit to quit.\n")
	for {
		fmt.Fprint(r.out, "> ")
		line, err := r.in.ReadLine(ctx)
		if err == io.EOF && line == "" {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/reset":
			r.session.Reset()
			fmt.Fprintln(r.out, "Conversation cleared.")
		case strings.HasPrefix(line, "/agent"):
			goal := strings.TrimSpace(strings.TrimPrefix(line, "/agent"))
			if goal == "" {
				fmt.Fprintln(r.out, "Usage: /agent <goal>")
				continue
			}
			answer, err := r.agent.Think(ctx, goal)
			fmt.Fprintln(r.out, answer)
			if err != nil {
				fmt.Fprintf(r.out, "(%v)\n", err)
			}
		default:
			reply, err := r.session.Send(ctx, line)
			if err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(r.out, reply)
		}
	}
}
