package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime/debug"
	"strings"
	"time"

	loggerv2 "jarvis/logger/v2"
)

// Coder lets a tool error choose its own error_code.
type Coder interface {
	Code() string
}

// CodedError is a ready-made Coder.
type CodedError struct {
	ErrCode string
	Err     error
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }
func (e *CodedError) Code() string  { return e.ErrCode }

// Errorf builds a CodedError.
func Errorf(code, format string, args ...any) error {
	return &CodedError{ErrCode: code, Err: fmt.Errorf(format, args...)}
}

// Observer is notified after every execution, e.g. for metrics.
type Observer func(tool string, res Result, took time.Duration)

// CallHook sees every finished call with its raw arguments and the
// caller's context. It runs on the caller's goroutine.
type CallHook func(ctx context.Context, tool string, args map[string]any, res Result)

// Executor validates arguments and invokes tool bodies. Execute never
// panics and always returns a Result.
type Executor struct {
	logger    loggerv2.Logger
	timeout   time.Duration
	observers []Observer
	hooks     []CallHook
}

type ExecutorOption func(*Executor)

func WithExecutorLogger(l loggerv2.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observers = append(e.observers, o) }
}

func WithCallHook(h CallHook) ExecutorOption {
	return func(e *Executor) { e.hooks = append(e.hooks, h) }
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{logger: loggerv2.NewNoop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Call resolves name in reg and executes it.
func (e *Executor) Call(ctx context.Context, reg *Registry, name string, raw map[string]any) Result {
	def, ok := reg.Lookup(name)
	if !ok {
		res := Failure(CodeToolNotFound, fmt.Sprintf("Tool '%s' not found.", name), map[string]any{"available": reg.Names()})
		e.notify(ctx, name, raw, res, 0)
		return res
	}
	return e.Execute(ctx, def, raw)
}

// Execute validates raw against def's schema and runs the tool.
func (e *Executor) Execute(ctx context.Context, def *Definition, raw map[string]any) (res Result) {
	start := time.Now()
	callCtx := ctx
	defer func() { e.notify(callCtx, def.Name, raw, res, time.Since(start)) }()

	args, err := def.Schema.Validate(raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			e.logger.Warn("Tool arguments rejected",
				loggerv2.String("tool", def.Name),
				loggerv2.Any("errors", ve.Errors))
			return Failure(CodeValidation, MsgInvalidArguments, ve.Errors)
		}
		return Failure(CodeValidation, MsgInvalidArguments, err.Error())
	}

	timeout := e.timeout
	if def.Timeout > 0 {
		timeout = def.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := e.invoke(ctx, def, args)
	if err != nil {
		code := errorCode(err)
		e.logger.Warn("Tool execution failed",
			loggerv2.String("tool", def.Name),
			loggerv2.String("code", code),
			loggerv2.Error(err))
		return Failure(code, msgUnexpectedPrefix+err.Error(), nil)
	}

	e.logger.Debug("Tool executed",
		loggerv2.String("tool", def.Name),
		loggerv2.Duration("took", time.Since(start)))
	return OK(data)
}

// invoke runs the body, converting a panic into an error.
func (e *Executor) invoke(ctx context.Context, def *Definition, args Args) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Tool panicked", fmt.Errorf("%v", p),
				loggerv2.String("tool", def.Name),
				loggerv2.String("stack", string(debug.Stack())))
			data = nil
			err = &CodedError{ErrCode: CodePanic, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return def.Func(ctx, args)
}

func (e *Executor) notify(ctx context.Context, name string, args map[string]any, res Result, took time.Duration) {
	for _, o := range e.observers {
		o(name, res, took)
	}
	for _, h := range e.hooks {
		h(ctx, name, args, res)
	}
}

// errorCode names a failure: an explicit Code, a well-known condition, or
// the dynamic type name of the error.
func errorCode(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, fs.ErrExist):
		return "already_exists"
	}
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "errorString", "wrapError", "wrapErrors", "joinError", "":
		return "execution_error"
	}
	return name
}
