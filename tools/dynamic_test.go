package tools

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordCountSource = `import "strings"

// Counts words in text.
//jarvis:default min_len=1
func word_count(text string, min_len int, lower *bool) (int, error) {
	n := 0
	for _, w := range strings.Fields(text) {
		if len(w) >= min_len {
			n++
		}
	}
	return n, nil
}
`

func TestParseToolSource(t *testing.T) {
	ts, err := ParseToolSource("word_count", wordCountSource)
	require.NoError(t, err)

	assert.True(t, ts.ReturnsError)
	assert.Equal(t, "Counts words in text.", ts.Doc)
	require.Len(t, ts.Schema.Fields, 3)

	text := ts.Schema.Fields[0]
	assert.Equal(t, TypeString, text.Type)
	assert.True(t, text.Required)

	minLen := ts.Schema.Fields[1]
	assert.Equal(t, TypeInteger, minLen.Type)
	assert.False(t, minLen.Required)
	assert.Equal(t, 1, minLen.Default)

	lower := ts.Schema.Fields[2]
	assert.Equal(t, TypeBoolean, lower.Type)
	assert.False(t, lower.Required)
	assert.Equal(t, Param{Name: "lower", GoType: "*bool", Pointer: true}, ts.Params[2])

	assert.Contains(t, ts.File, "package main")
}

func TestParseToolSourceRejections(t *testing.T) {
	cases := map[string]struct {
		name   string
		source string
	}{
		"name mismatch":      {"foo", "func bar(x int) int { return x }"},
		"two functions":      {"foo", "func foo(x int) int { return x }\nfunc helper() {}"},
		"no function":        {"foo", "var foo = 1"},
		"extra declaration":  {"foo", "var limit = 3\nfunc foo(x int) int { return x }"},
		"syntax error":       {"foo", "func foo(x int) int { return x"},
		"method":             {"foo", "type T struct{}\nfunc (T) foo() int { return 1 }"},
		"no result":          {"foo", "func foo(x int) {}"},
		"bad second result":  {"foo", "func foo(x int) (int, string) { return x, \"\" }"},
		"unsupported type":   {"foo", "func foo(ch chan int) int { return 0 }"},
		"reserved name":      {"main", "func main() int { return 0 }"},
		"unknown default":    {"foo", "//jarvis:default y=2\nfunc foo(x int) int { return x }"},
		"bad default":        {"foo", "//jarvis:default x=abc\nfunc foo(x int) int { return x }"},
		"variadic":           {"foo", "func foo(xs ...int) int { return 0 }"},
		"generic":            {"foo", "func foo[T any](x T) T { return x }"},
		"invalid identifier": {"foo-bar", "func foo() int { return 0 }"},
	}
	for label, tc := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := ParseToolSource(tc.name, tc.source)
			require.Error(t, err)
		})
	}
}

func TestParseToolSourceRewritesPackage(t *testing.T) {
	ts, err := ParseToolSource("double", "package tools\n\nfunc double(x float64) float64 { return x * 2 }")
	require.NoError(t, err)
	assert.Contains(t, ts.File, "package main")
	assert.NotContains(t, ts.File, "package tools")
}

type fakeRunner struct {
	checkErr error
	got      Args
}

func (f *fakeRunner) Check(context.Context, *ToolSource) error { return f.checkErr }

func (f *fakeRunner) RunTool(_ context.Context, ts *ToolSource, args Args) (any, error) {
	f.got = args
	return ts.Name + " ran", nil
}

func TestDynamicManagerRoundTrip(t *testing.T) {
	reg := NewRegistry()
	runner := &fakeRunner{}
	mgr := NewDynamicManager(reg, runner)

	def, err := mgr.Register(context.Background(), "word_count", wordCountSource, "")
	require.NoError(t, err)
	assert.Equal(t, "Counts words in text.", def.Description)
	assert.True(t, def.Dynamic)

	res := NewExecutor().Call(context.Background(), reg, "word_count", map[string]any{"text": "a bb ccc"})
	require.True(t, res.IsOK(), res.ErrorText())
	assert.Equal(t, "word_count ran", res.Data)
	assert.Equal(t, 1, runner.got.Int("min_len"))

	res = NewExecutor().Call(context.Background(), reg, "word_count", map[string]any{"min_len": 2})
	assert.Equal(t, CodeValidation, res.ErrorCode)
}

func TestDynamicManagerFailuresLeaveRegistryUnchanged(t *testing.T) {
	reg := NewRegistry()
	runner := &fakeRunner{checkErr: &BuildError{Output: "tool.go:3:2: undefined: strngs"}}
	mgr := NewDynamicManager(reg, runner)

	_, err := mgr.Register(context.Background(), "foo", "func bar() int { return 1 }", "")
	require.Error(t, err)
	_, err = mgr.Register(context.Background(), "foo", "func foo() int { return 1 }\nfunc baz() int { return 2 }", "")
	require.Error(t, err)
	_, err = mgr.Register(context.Background(), "foo", "func foo() int { return strngs.Count() }", "")
	var be *BuildError
	require.True(t, errors.As(err, &be))

	assert.Zero(t, reg.Len())
}

func TestIsBuildFailure(t *testing.T) {
	assert.True(t, isBuildFailure("# command-line-arguments\n./tool.go:4:9: undefined: strngs"))
	assert.True(t, isBuildFailure("./main.go:10:2: syntax error: unexpected }"))
	assert.False(t, isBuildFailure("panic: boom\n\ngoroutine 1 [running]:\nmain.foo()\n\t/tmp/x/tool.go:5 +0x1d"))
	assert.False(t, isBuildFailure("exit status 3"))
}

func TestSandboxRunsTool(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a Go program")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}
	ts, err := ParseToolSource("word_count", wordCountSource)
	require.NoError(t, err)

	sb := NewSandbox(WithWorkDir(t.TempDir()))
	out, err := sb.RunTool(context.Background(), ts, Args{"text": "one two three", "min_len": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out)

	res, err := sb.RunScript(context.Background(), "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hi\") }\n")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hi\n", res.Stdout)

	_, err = sb.RunScript(context.Background(), "package main\n\nfunc main() { undefinedCall() }\n")
	var be *BuildError
	require.ErrorAs(t, err, &be)
}
