package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	loggerv2 "jarvis/logger/v2"
)

const (
	resultMarker          = "__JARVIS_RESULT__"
	defaultSandboxTimeout = 2 * time.Minute
	sandboxGoMod          = "module jarvissandbox\n\ngo 1.21\n"
)

// BuildError means the generated program did not compile.
type BuildError struct {
	Output string
}

func (e *BuildError) Error() string { return "build failed:\n" + e.Output }
func (e *BuildError) Code() string  { return "build_error" }

// RuntimeError means the program started but did not produce a result.
type RuntimeError struct {
	ExitCode int
	Stderr   string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("process exited with code %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}
func (e *RuntimeError) Code() string { return "runtime_error" }

// ToolError is an error returned by the dynamic tool function itself.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }
func (e *ToolError) Code() string  { return "tool_error" }

// ScriptResult is the outcome of running a standalone program.
type ScriptResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Sandbox runs generated Go code in a separate `go run` process with a
// scrubbed environment, a timeout and capped output.
type Sandbox struct {
	goBinary string
	workDir  string
	timeout  time.Duration
	logger   loggerv2.Logger
}

type SandboxOption func(*Sandbox)

func WithGoBinary(path string) SandboxOption {
	return func(s *Sandbox) { s.goBinary = path }
}

// WithWorkDir sets where temporary build directories are created.
func WithWorkDir(dir string) SandboxOption {
	return func(s *Sandbox) { s.workDir = dir }
}

func WithSandboxTimeout(d time.Duration) SandboxOption {
	return func(s *Sandbox) { s.timeout = d }
}

func WithSandboxLogger(l loggerv2.Logger) SandboxOption {
	return func(s *Sandbox) { s.logger = l }
}

func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		goBinary: "go",
		timeout:  defaultSandboxTimeout,
		logger:   loggerv2.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var wrapperTemplate = template.Must(template.New("wrapper").Parse(`package main

import (
	"encoding/json"
	"fmt"
	"os"
)

type jarvisInput struct {
{{- range $i, $p := .Params}}
	P{{$i}} {{$p.GoType}} ` + "`json:\"{{$p.Name}}\"`" + `
{{- end}}
}

func main() {
	var in jarvisInput
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		jarvisExit(nil, fmt.Errorf("decode arguments: %w", err))
	}
{{- if .ReturnsError}}
	out, err := {{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}in.P{{$i}}{{end}})
	jarvisExit(out, err)
{{- else}}
	out := {{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}in.P{{$i}}{{end}})
	jarvisExit(out, nil)
{{- end}}
}

func jarvisExit(out any, err error) {
	env := map[string]any{"ok": err == nil, "result": out}
	if err != nil {
		env["error"] = err.Error()
	}
	os.Stdout.WriteString("\n{{.Marker}}\n")
	if encErr := json.NewEncoder(os.Stdout).Encode(env); encErr != nil {
		os.Stdout.WriteString(` + "`{\"ok\":false,\"error\":\"result is not JSON serializable\"}`" + `)
	}
	os.Exit(0)
}
`))

// wrapperSource generates the main.go that feeds JSON arguments to the tool.
func wrapperSource(ts *ToolSource) (string, error) {
	var buf bytes.Buffer
	err := wrapperTemplate.Execute(&buf, map[string]any{
		"Name":         ts.Name,
		"Params":       ts.Params,
		"ReturnsError": ts.ReturnsError,
		"Marker":       resultMarker,
	})
	return buf.String(), err
}

// Check compiles the tool without running it.
func (s *Sandbox) Check(ctx context.Context, ts *ToolSource) error {
	wrapper, err := wrapperSource(ts)
	if err != nil {
		return err
	}
	dir, cleanup, err := s.prepare(map[string]string{"tool.go": ts.File, "main.go": wrapper})
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := s.command(ctx, dir, nil, "build", "-o", os.DevNull, ".")
	if err != nil {
		if out.stderr == "" {
			return fmt.Errorf("go build: %w", err)
		}
		return &BuildError{Output: out.stderr}
	}
	return nil
}

// RunTool runs a dynamic tool with the given arguments.
func (s *Sandbox) RunTool(ctx context.Context, ts *ToolSource, args Args) (any, error) {
	wrapper, err := wrapperSource(ts)
	if err != nil {
		return nil, err
	}
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	dir, cleanup, err := s.prepare(map[string]string{"tool.go": ts.File, "main.go": wrapper})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, runErr := s.command(ctx, dir, input, "run", ".")
	head, envelope, found := strings.Cut(out.stdout, "\n"+resultMarker+"\n")
	if !found {
		return nil, s.classify(ctx, out, runErr)
	}

	var env struct {
		OK     bool   `json:"ok"`
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(envelope)), &env); err != nil {
		return nil, fmt.Errorf("malformed tool output: %w", err)
	}
	if !env.OK {
		return nil, &ToolError{Message: env.Error}
	}
	if printed := strings.TrimSpace(head); printed != "" {
		return map[string]any{"result": env.Result, "output": printed}, nil
	}
	return env.Result, nil
}

// RunScript runs a complete main package. A non-zero exit code is reported
// in the result, not as an error; build failures are errors.
func (s *Sandbox) RunScript(ctx context.Context, source string) (ScriptResult, error) {
	dir, cleanup, err := s.prepare(map[string]string{"main.go": source})
	if err != nil {
		return ScriptResult{}, err
	}
	defer cleanup()

	out, runErr := s.command(ctx, dir, nil, "run", ".")
	res := ScriptResult{ExitCode: out.exitCode, Stdout: out.stdout, Stderr: out.stderr}
	if runErr == nil {
		return res, nil
	}
	if isBuildFailure(out.stderr) {
		return res, &BuildError{Output: out.stderr}
	}
	if ctx.Err() != nil || errors.Is(runErr, context.DeadlineExceeded) {
		return res, fmt.Errorf("script timed out: %w", context.DeadlineExceeded)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return res, nil
	}
	return res, runErr
}

func (s *Sandbox) classify(ctx context.Context, out procOutput, runErr error) error {
	if isBuildFailure(out.stderr) {
		return &BuildError{Output: out.stderr}
	}
	if ctx.Err() != nil || errors.Is(runErr, context.DeadlineExceeded) {
		return fmt.Errorf("tool timed out: %w", context.DeadlineExceeded)
	}
	return &RuntimeError{ExitCode: out.exitCode, Stderr: out.stderr}
}

func (s *Sandbox) prepare(files map[string]string) (string, func(), error) {
	dir, err := os.MkdirTemp(s.workDir, "jarvis-sandbox-")
	if err != nil {
		return "", nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	files["go.mod"] = sandboxGoMod
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	return dir, cleanup, nil
}

type procOutput struct {
	stdout   string
	stderr   string
	exitCode int
}

func (s *Sandbox) command(ctx context.Context, dir string, stdin []byte, args ...string) (procOutput, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, s.goBinary, args...) //nolint:gosec // G204: runs generated code by design of the dynamic tool feature
	cmd.Dir = dir
	cmd.Env = SafeEnvironment(goEnvironment()...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	stdout := NewCappedBuffer(MaxOutputBytes)
	stderr := NewCappedBuffer(MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	out := procOutput{stdout: stdout.String(), stderr: stderr.String()}
	if cmd.ProcessState != nil {
		out.exitCode = cmd.ProcessState.ExitCode()
	}
	s.logger.Debug("Sandbox command finished",
		loggerv2.String("cmd", strings.Join(args, " ")),
		loggerv2.Int("exit_code", out.exitCode),
		loggerv2.Duration("took", time.Since(start)))
	return out, err
}

// goEnvironment forwards the toolchain settings the child needs to build
// offline with the caller's caches.
func goEnvironment() []string {
	env := []string{"CGO_ENABLED=0", "GOTOOLCHAIN=local", "GOFLAGS=-mod=mod"}
	for _, key := range []string{"GOROOT", "GOPATH", "GOCACHE", "GOMODCACHE", "GOPROXY", "TMPDIR"} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}

var compilerErrorPattern = regexp.MustCompile(`\.go:\d+:\d+:`)

// isBuildFailure tells compile errors apart from failures of the running
// program, which also make `go run` exit non-zero.
func isBuildFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{
		"# command-line-arguments",
		"# jarvissandbox",
		"cannot find package",
		"no required module",
		"missing go.sum",
		"go: cannot find main module",
		"package main is not in std",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// A panicking program prints goroutine traces with file:line but never
	// the column form the compiler uses.
	return compilerErrorPattern.MatchString(stderr) && !strings.Contains(stderr, "goroutine ")
}
