package builtin

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
)

func shellTool(d Deps) tools.Definition {
	logger := d.Logger
	return tools.Definition{
		Name:        "execute_shell_command",
		Description: "Executes a shell command with sh -c and returns its output. Secrets are not inherited by the child process.",
		Category:    categoryExecution,
		Schema: tools.NewSchema(
			tools.Required("command", tools.TypeString, "The shell command to execute."),
		),
		Func: func(ctx context.Context, args tools.Args) (any, error) {
			return runShell(ctx, args.String("command"), logger)
		},
	}
}

// runShell treats a non-zero exit as a tool failure so the plan stops.
func runShell(ctx context.Context, command string, logger loggerv2.Logger) (string, error) {
	logger.Info("Executing shell command", loggerv2.String("command", command))

	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // G204: executing commands is this tool's purpose
	stdout, stderr := tools.NewCappedBuffer(0), tools.NewCappedBuffer(0)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	cmd.Env = tools.SafeEnvironment()

	err := cmd.Run()
	out, errOut := strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			logger.Warn("Shell command failed",
				loggerv2.String("command", command),
				loggerv2.Int("exit_code", exitErr.ExitCode()))
			return "", tools.Errorf("command_failed", "Command failed with exit code %d.\nError:\n%s\nOutput:\n%s",
				exitErr.ExitCode(), errOut, out)
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("command interrupted: %w", ctx.Err())
		}
		return "", fmt.Errorf("failed to execute command: %w", err)
	}
	if out == "" {
		return "Command executed successfully (no output).", nil
	}
	return "Command executed successfully.\nOutput:\n" + out, nil
}

func createToolTool(d Deps) tools.Definition {
	mgr := d.Dynamic
	return tools.Definition{
		Name: "create_new_tool",
		Description: "Creates a new tool for the rest of this session from Go source. The source must contain exactly one " +
			"top-level func whose name equals tool_name, with typed parameters and a (T) or (T, error) result.",
		Category: categoryExecution,
		Timeout:  d.ScriptTimeout,
		Schema: tools.NewSchema(
			tools.Required("tool_name", tools.TypeString, "Name of the new tool; must match the function name."),
			tools.Required("source_code", tools.TypeString, "Go source containing the single function."),
			tools.Required("description", tools.TypeString, "What the tool does."),
		),
		Func: func(ctx context.Context, args tools.Args) (any, error) {
			name := args.String("tool_name")
			if _, err := mgr.Register(ctx, name, args.String("source_code"), args.String("description")); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Tool '%s' was created successfully and is now available for use in this session.", name), nil
		},
	}
}

func scriptTool(d Deps) tools.Definition {
	runner, logger := d.Scripts, d.Logger
	return tools.Definition{
		Name:        "execute_generated_script",
		Description: "Runs a complete Go program (package main) in an isolated process and returns its output.",
		Category:    categoryExecution,
		Timeout:     d.ScriptTimeout,
		Schema: tools.NewSchema(
			tools.Required("code", tools.TypeString, "Complete Go source of package main."),
			tools.Required("reason", tools.TypeString, "Short explanation of what the script does."),
		),
		Func: func(ctx context.Context, args tools.Args) (any, error) {
			code := args.String("code")
			if strings.TrimSpace(code) == "" {
				return nil, tools.Errorf("empty_script", "no Go code was provided to execute")
			}
			logger.Info("Executing generated script", loggerv2.String("reason", args.String("reason")))
			res, err := runner.RunScript(ctx, code)
			if err != nil {
				return nil, err
			}
			out, errOut := strings.TrimSpace(res.Stdout), strings.TrimSpace(res.Stderr)
			if res.ExitCode != 0 {
				return nil, tools.Errorf("script_failed", "Script failed with exit code %d.\nError:\n%s\nOutput:\n%s", res.ExitCode, errOut, out)
			}
			if out == "" {
				return "Script executed successfully with no output.", nil
			}
			return "Script executed successfully.\nOutput:\n" + out, nil
		},
	}
}
