package tools

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spyTool(calls *int, fn Func) Definition {
	return Definition{
		Name:     "spy",
		Category: "File Ops",
		Schema:   NewSchema(Required("path", TypeString, ""), Optional("count", TypeInteger, "", 1)),
		Func: func(ctx context.Context, args Args) (any, error) {
			*calls++
			return fn(ctx, args)
		},
	}
}

func TestExecuteValidationFailureNeverInvokesTool(t *testing.T) {
	calls := 0
	def := spyTool(&calls, func(context.Context, Args) (any, error) { return "ok", nil })
	res := NewExecutor().Execute(context.Background(), &def, map[string]any{"count": "many"})

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, CodeValidation, res.ErrorCode)
	assert.Equal(t, MsgInvalidArguments, res.Message)
	assert.NotNil(t, res.Details)
	assert.Zero(t, calls)
}

func TestExecuteSuccess(t *testing.T) {
	calls := 0
	def := spyTool(&calls, func(_ context.Context, a Args) (any, error) {
		return map[string]any{"path": a.String("path"), "count": a.Int("count")}, nil
	})
	res := NewExecutor().Execute(context.Background(), &def, map[string]any{"path": "/x", "count": "3"})

	require.True(t, res.IsOK())
	assert.Equal(t, map[string]any{"path": "/x", "count": 3}, res.Data)
	assert.Equal(t, 1, calls)
}

type quotaError struct{}

func (quotaError) Error() string { return "quota exceeded" }

func TestExecuteErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{errors.New("plain"), "execution_error"},
		{quotaError{}, "quotaError"},
		{&fs.PathError{Op: "open", Path: "/nope", Err: fs.ErrNotExist}, "not_found"},
		{Errorf("destination_exists", "already there"), "destination_exists"},
	}
	for _, tc := range cases {
		calls := 0
		def := spyTool(&calls, func(context.Context, Args) (any, error) { return nil, tc.err })
		res := NewExecutor().Execute(context.Background(), &def, map[string]any{"path": "/x"})
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, tc.code, res.ErrorCode)
		assert.Contains(t, res.Message, "An unexpected error occurred during tool execution: ")
		assert.Nil(t, res.Details)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	calls := 0
	def := spyTool(&calls, func(context.Context, Args) (any, error) { panic("kaboom") })
	var res Result
	require.NotPanics(t, func() {
		res = NewExecutor().Execute(context.Background(), &def, map[string]any{"path": "/x"})
	})
	assert.Equal(t, CodePanic, res.ErrorCode)
	assert.Contains(t, res.Message, "kaboom")
}

func TestExecuteTimeout(t *testing.T) {
	calls := 0
	def := spyTool(&calls, func(ctx context.Context, _ Args) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	res := NewExecutor(WithTimeout(20*time.Millisecond)).Execute(context.Background(), &def, map[string]any{"path": "/x"})
	assert.Equal(t, CodeTimeout, res.ErrorCode)
}

func TestCallUnknownToolAndObserver(t *testing.T) {
	var observed []string
	exec := NewExecutor(WithObserver(func(tool string, res Result, _ time.Duration) {
		observed = append(observed, tool+":"+string(res.Status))
	}))
	res := exec.Call(context.Background(), NewRegistry(), "does_not_exist", nil)

	assert.Equal(t, CodeToolNotFound, res.ErrorCode)
	assert.Equal(t, []string{"does_not_exist:error"}, observed)
}

type hookKey struct{}

func TestCallHookSeesArgsAndContext(t *testing.T) {
	type seen struct {
		tool, tag string
		args      map[string]any
		ok        bool
	}
	var calls []seen
	exec := NewExecutor(WithTimeout(time.Second), WithCallHook(func(ctx context.Context, tool string, args map[string]any, res Result) {
		tag, _ := ctx.Value(hookKey{}).(string)
		calls = append(calls, seen{tool, tag, args, res.IsOK()})
	}))
	reg := NewRegistry()
	reg.MustRegister(Definition{
		Name:   "echo",
		Schema: NewSchema(Required("text", TypeString, "")),
		Func:   func(_ context.Context, a Args) (any, error) { return a.String("text"), nil },
	})

	ctx := context.WithValue(context.Background(), hookKey{}, "caller")
	exec.Call(ctx, reg, "echo", map[string]any{"text": "hi"})
	exec.Call(ctx, reg, "echo", map[string]any{})
	exec.Call(ctx, reg, "nope", nil)

	require.Len(t, calls, 3)
	assert.Equal(t, seen{"echo", "caller", map[string]any{"text": "hi"}, true}, calls[0])
	assert.False(t, calls[1].ok)
	assert.Equal(t, "nope", calls[2].tool)
	assert.Equal(t, "caller", calls[2].tag)
}
