// agent.go
//
// The confidence-gated planning loop. Each turn rebuilds the full prompt,
// asks the model for either a final answer or a plan of tool calls, gates
// the plan on confidence, and executes it in order.
//
// Exported:
//   - Agent, New
//   - AgentOption and the With* options
//   - Agent.Think

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jarvis/agent/prompt"
	"jarvis/confidence"
	"jarvis/confirm"
	"jarvis/events"
	"jarvis/llm"
	loggerv2 "jarvis/logger/v2"
	"jarvis/memory"
	"jarvis/tools"
	"jarvis/translog"
)

// Defaults for the loop budgets.
const (
	DefaultMaxTurns             = 15
	DefaultMaxConsecutiveErrors = 2
	DefaultMaxRateLimitRetries  = 5
	DefaultRateLimitBackoff     = 30 * time.Second
)

// Agent runs episodes against one model and one tool registry. It holds no
// per-episode state, so Think may be called concurrently.
type Agent struct {
	model    llm.Client
	registry *tools.Registry
	executor *tools.Executor
	logger   loggerv2.Logger

	maxTurns             int
	maxConsecutiveErrors int
	maxRateLimitRetries  int
	rateLimitBackoff     time.Duration
	loopThreshold        int

	thresholds confidence.Thresholds
	weights    confidence.Weights
	verifier   *confidence.Verifier
	historian  *confidence.Historian

	confirmer     confirm.Confirmer
	memory        memory.Store
	memoryResults int
	txlog         *translog.Log
	emitter       *events.EventEmitter
	systemPrompt  string

	sleep func(ctx context.Context, d time.Duration) error
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

func WithLogger(logger loggerv2.Logger) AgentOption {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMaxTurns bounds the number of model calls in an episode.
func WithMaxTurns(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithMaxConsecutiveErrors bounds back-to-back unusable turns.
func WithMaxConsecutiveErrors(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxConsecutiveErrors = n
		}
	}
}

// WithMaxRateLimitRetries bounds how often a rate-limited call is retried.
func WithMaxRateLimitRetries(n int) AgentOption {
	return func(a *Agent) {
		if n >= 0 {
			a.maxRateLimitRetries = n
		}
	}
}

// WithRateLimitBackoff is the wait used when the provider gives no hint.
func WithRateLimitBackoff(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.rateLimitBackoff = d
		}
	}
}

// WithLoopThreshold sets how many identical consecutive calls count as a loop.
func WithLoopThreshold(n int) AgentOption {
	return func(a *Agent) { a.loopThreshold = n }
}

func WithThresholds(th confidence.Thresholds) AgentOption {
	return func(a *Agent) { a.thresholds = th }
}

func WithWeights(w confidence.Weights) AgentOption {
	return func(a *Agent) { a.weights = w }
}

func WithVerifier(v *confidence.Verifier) AgentOption {
	return func(a *Agent) { a.verifier = v }
}

func WithHistorian(h *confidence.Historian) AgentOption {
	return func(a *Agent) { a.historian = h }
}

// WithConfirmer sets who answers ASK decisions. The default declines.
func WithConfirmer(c confirm.Confirmer) AgentOption {
	return func(a *Agent) { a.confirmer = c }
}

func WithMemory(store memory.Store) AgentOption {
	return func(a *Agent) { a.memory = store }
}

// WithMemoryResults sets how many past tasks are recalled into the prompt.
func WithMemoryResults(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.memoryResults = n
		}
	}
}

func WithTransactionLog(log *translog.Log) AgentOption {
	return func(a *Agent) { a.txlog = log }
}

func WithEmitter(e *events.EventEmitter) AgentOption {
	return func(a *Agent) { a.emitter = e }
}

// WithExecutor replaces the default executor. Executions are only recorded
// when e carries the transaction log's hook.
func WithExecutor(e *tools.Executor) AgentOption {
	return func(a *Agent) { a.executor = e }
}

// WithSystemPrompt replaces the built-in system prompt.
func WithSystemPrompt(p string) AgentOption {
	return func(a *Agent) { a.systemPrompt = p }
}

// WithSleep replaces the rate-limit wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) AgentOption {
	return func(a *Agent) { a.sleep = fn }
}

// New builds an agent. When a transaction log is given without a
// historian, one is created over the log and kept fresh on every append.
func New(model llm.Client, registry *tools.Registry, opts ...AgentOption) *Agent {
	a := &Agent{
		model:                model,
		registry:             registry,
		logger:               loggerv2.NewNoop(),
		maxTurns:             DefaultMaxTurns,
		maxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		maxRateLimitRetries:  DefaultMaxRateLimitRetries,
		rateLimitBackoff:     DefaultRateLimitBackoff,
		loopThreshold:        DefaultLoopDetectionThreshold,
		thresholds:           confidence.DefaultThresholds(),
		weights:              confidence.ModelOnly(),
		confirmer:            confirm.AutoDecline{},
		memoryResults:        memory.DefaultQueryResults,
		sleep:                sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.executor == nil {
		execOpts := []tools.ExecutorOption{tools.WithExecutorLogger(a.logger)}
		if a.txlog != nil {
			execOpts = append(execOpts, tools.WithCallHook(a.txlog.Hook()))
		}
		a.executor = tools.NewExecutor(execOpts...)
	}
	if a.verifier == nil {
		a.verifier = confidence.NewVerifier()
	}
	if a.historian == nil && a.txlog != nil {
		h := confidence.NewHistorian(a.txlog, confidence.DefaultHistoryRecords, a.logger)
		a.txlog.OnAppend(func(r translog.Record) { h.Invalidate(r.ToolName) })
		a.historian = h
	}
	return a
}

// Registry is the tool registry the agent plans against.
func (a *Agent) Registry() *tools.Registry { return a.registry }

// Executor is the executor the agent runs tools with.
func (a *Agent) Executor() *tools.Executor { return a.executor }

// episode is the per-call state of Think.
type episode struct {
	id       string
	goal     string
	started  time.Time
	events   *events.Episode
	pad      Scratchpad
	used     []string
	loops    *ToolLoopDetector
	logger   loggerv2.Logger
	memories []string
	prefs    map[string]string
}

// Think runs one episode for goal. The returned string is always meant for
// the user. The error is non-nil only when the model provider failed in a
// way the loop cannot recover from.
func (a *Agent) Think(ctx context.Context, goal string) (string, error) {
	ep := &episode{
		id:      uuid.NewString(),
		goal:    goal,
		started: time.Now(),
		loops:   NewToolLoopDetector(a.loopThreshold),
	}
	ep.logger = a.logger.With(loggerv2.String("episode", ep.id))

	categories := confidence.ClassifyIntent(goal)
	if a.emitter != nil {
		ep.events = a.emitter.StartEpisode(ep.id, goal, &events.EpisodeStartEvent{
			Goal:       goal,
			Categories: categories,
			ToolCount:  a.registry.Len(),
		})
	}
	ep.memories, ep.prefs = a.recall(ctx, ep)
	ep.logger.Info("Episode started",
		loggerv2.String("goal", goal),
		loggerv2.Strings("categories", categories),
		loggerv2.Int("memories", len(ep.memories)))

	consecutive := 0
	rateRetries := 0
	for turn := 1; turn <= a.maxTurns; turn++ {
		ep.events.Emit(&events.TurnStartEvent{Turn: turn, MaxTurns: a.maxTurns})

		text, err := a.generate(ctx, ep, turn, prompt.BuildTurn(prompt.Turn{
			System:      a.systemPrompt,
			Tools:       a.registry.ForCategories(categories),
			Memories:    ep.memories,
			Preferences: ep.prefs,
			Goal:        goal,
			Scratchpad:  ep.pad.String(),
		}))

		if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
			switch kind := llm.KindOf(err); kind {
			case llm.KindRateLimited:
				rateRetries++
				if rateRetries > a.maxRateLimitRetries {
					a.abort(ep, "rate_limited", MsgRateLimited, turn, err)
					return MsgRateLimited, fmt.Errorf("rate limited after %d retries: %w", a.maxRateLimitRetries, err)
				}
				wait := llm.RetryAfterOf(err)
				if wait <= 0 {
					wait = a.rateLimitBackoff
				}
				ep.events.Emit(&events.ThrottlingEvent{Turn: turn, Attempt: rateRetries, Wait: wait})
				ep.logger.Warn("Rate limited, pausing before retry",
					loggerv2.Duration("wait", wait),
					loggerv2.Int("attempt", rateRetries))
				if serr := a.sleep(ctx, wait); serr != nil {
					msg := msgCriticalPrefix + serr.Error()
					a.abort(ep, "canceled", msg, turn, serr)
					return msg, serr
				}
				// A throttled call does not use up a turn.
				turn--
				continue

			case llm.KindServerError, llm.KindTimeout:
				ep.logger.Warn("Model call failed, feeding the failure back",
					loggerv2.String("kind", kind.String()),
					loggerv2.Error(err))
				ep.pad.Add(Turn{Index: turn, Feedback: feedbackServerError, SystemError: true})
				consecutive++
				if consecutive >= a.maxConsecutiveErrors {
					a.abort(ep, "repeated_api_errors", MsgRepeatedAPIErrors, turn, err)
					return MsgRepeatedAPIErrors, nil
				}
				continue

			default:
				msg := msgCriticalPrefix + err.Error()
				a.abort(ep, "fatal_llm_error", msg, turn, err)
				return msg, err
			}
		}

		if strings.TrimSpace(text) == "" {
			ep.pad.Add(Turn{Index: turn, Feedback: feedbackEmpty})
			consecutive++
			a.rejected(ep, turn, "empty response", consecutive)
			if consecutive >= a.maxConsecutiveErrors {
				a.abort(ep, "empty_response", MsgStuck, turn, nil)
				return MsgStuck, nil
			}
			continue
		}

		if answer, ok := ParseFinal(text); ok {
			a.remember(ctx, ep, answer)
			ep.events.Emit(&events.FinalAnswerEvent{Turn: turn, Answer: answer})
			ep.events.Emit(&events.EpisodeEndEvent{
				Answer:    answer,
				Turns:     turn,
				ToolsUsed: memory.DedupTools(ep.used),
				Duration:  time.Since(ep.started),
			})
			ep.logger.Info("Episode completed", loggerv2.Int("turns", turn))
			return answer, nil
		}

		plan, err := ParsePlan(text)
		if err != nil {
			ep.pad.Add(Turn{Index: turn, Raw: text, Feedback: fmt.Sprintf(feedbackParseFormat, err)})
			consecutive++
			a.rejected(ep, turn, err.Error(), consecutive)
			if consecutive >= a.maxConsecutiveErrors {
				a.abort(ep, "unparsable_response", MsgFormatFailure, turn, err)
				return MsgFormatFailure, nil
			}
			continue
		}
		if len(plan.ToolCalls) == 0 {
			feedback := feedbackNoAction
			thought := strings.ToLower(plan.Thought)
			if strings.Contains(thought, "answer is") || strings.Contains(thought, "here is the") {
				feedback = feedbackMissingPrefix
			}
			ep.pad.Add(Turn{Index: turn, Raw: text, Plan: plan, Feedback: feedback})
			consecutive++
			a.rejected(ep, turn, "no tool calls", consecutive)
			if consecutive >= a.maxConsecutiveErrors {
				a.abort(ep, "no_action", MsgCouldNotDecide, turn, nil)
				return MsgCouldNotDecide, nil
			}
			continue
		}
		consecutive = 0

		ep.pad.Add(a.runPlan(ctx, ep, turn, text, plan))
	}

	a.abort(ep, "turn_budget_exhausted", MsgTurnBudgetExhausted, a.maxTurns, nil)
	return MsgTurnBudgetExhausted, nil
}

func (a *Agent) generate(ctx context.Context, ep *episode, turn int, p string) (string, error) {
	ep.events.Emit(&events.LLMGenerationStartEvent{Turn: turn, Model: modelName(a.model), PromptChars: len(p)})
	start := time.Now()
	text, err := a.model.Generate(ctx, p)
	if err != nil {
		ep.events.Emit(&events.LLMGenerationErrorEvent{Turn: turn, Kind: llm.KindOf(err).String(), Error: err.Error()})
		return "", err
	}
	ep.events.Emit(&events.LLMGenerationEndEvent{Turn: turn, ResponseChars: len(text), Duration: time.Since(start)})
	return text, nil
}

// runPlan gates a parsed plan and, when allowed, executes it.
func (a *Agent) runPlan(ctx context.Context, ep *episode, turn int, text string, plan *Plan) Turn {
	entry := Turn{Index: turn, Raw: text, Plan: plan}

	calls := make([]events.PlanCall, len(plan.ToolCalls))
	for i, c := range plan.ToolCalls {
		calls[i] = events.PlanCall{ToolName: c.ToolName, Args: c.Args}
	}
	ep.events.Emit(&events.PlanProposedEvent{
		Turn:       turn,
		Thought:    plan.Thought,
		Rationale:  plan.Rationale,
		Confidence: plan.Confidence,
		Calls:      calls,
	})

	signal := a.assess(plan)
	destructive := confidence.AnyDestructive(plan.ToolNames())
	decision := confidence.Decide(signal.Value, destructive, a.thresholds)
	ep.events.Emit(&events.DecisionEvent{
		Turn:        turn,
		Decision:    string(decision),
		Confidence:  signal.Value,
		Destructive: destructive,
		Rationales:  signal.Rationales,
	})
	ep.logger.Info("Plan gated",
		loggerv2.Int("turn", turn),
		loggerv2.String("decision", string(decision)),
		loggerv2.String("confidence", signal.String()),
		loggerv2.Bool("destructive", destructive),
		loggerv2.Strings("tools", plan.ToolNames()))

	switch decision {
	case confidence.DecisionStop:
		entry.Feedback = fmt.Sprintf(feedbackStopped, signal.Value)
		return entry
	case confidence.DecisionAsk:
		req := confirm.Request{
			Title:     confirmTitle,
			Plan:      renderPlan(plan),
			Rationale: plan.Rationale,
			Notes:     signal.Rationales,
		}
		outcome := a.confirmer.Confirm(ctx, req)
		ep.events.Emit(&events.ConfirmationEvent{Turn: turn, Title: req.Title, Plan: req.Plan, Outcome: string(outcome)})
		if !outcome.Approved() {
			ep.logger.Info("Plan not confirmed", loggerv2.String("outcome", string(outcome)))
			entry.Feedback = feedbackDeclined
			return entry
		}
	}

	snapshot := &translog.Confidence{
		ModelScore:      signal.Model,
		VerifierScore:   signal.Verifier,
		HistoricalScore: signal.Historical,
		AdjustedScore:   signal.Value,
		Decision:        string(decision),
		Rationales:      signal.Rationales,
	}
	looping := false
	for _, call := range plan.ToolCalls {
		out := a.execute(ctx, ep, turn, call, snapshot)
		entry.Results = append(entry.Results, out)
		if ep.loops.Observe(out) {
			looping = true
		}
		if !out.Result.IsOK() {
			ep.logger.Warn("Plan halted at failing step",
				loggerv2.String("tool", call.ToolName),
				loggerv2.String("error_code", out.Result.ErrorCode))
			break
		}
	}
	if looping {
		ep.logger.Warn("Loop detected: same tool call repeated", loggerv2.Int("turn", turn))
		entry.Feedback = feedbackLoop
	}
	return entry
}

// assess blends the model's self-assessment with the verifier and the
// historian. All three are computed so they are logged and recorded even
// when the weights ignore them.
func (a *Agent) assess(plan *Plan) confidence.Signal {
	model := confidence.NormalizeModelScore(plan.Confidence)

	calls := make([]confidence.Call, len(plan.ToolCalls))
	for i, c := range plan.ToolCalls {
		calls[i] = confidence.Call{ToolName: c.ToolName, Args: c.Args}
	}
	verdict := a.verifier.VerifyPlan(calls)

	historical := confidence.DefaultHistoricalConfidence
	if a.historian != nil {
		historical = a.historian.PlanConfidence(plan.ToolNames())
	}

	signal := confidence.Blend(model, verdict.Score, historical, a.weights)
	signal.Rationales = []string{
		"Verifier: " + verdict.Rationale,
		fmt.Sprintf("History: %.2f from recent executions of %s.", historical, strings.Join(plan.ToolNames(), ", ")),
	}
	return signal
}

func (a *Agent) execute(ctx context.Context, ep *episode, turn int, call ToolCall, snapshot *translog.Confidence) ToolOutcome {
	ep.events.Emit(&events.ToolCallStartEvent{Turn: turn, ToolName: call.ToolName, Args: call.Args})
	ep.used = append(ep.used, call.ToolName)

	callCtx := translog.WithAttribution(ctx, translog.Attribution{
		Source:     translog.SourceAgent,
		EpisodeID:  ep.id,
		Confidence: snapshot,
	})
	start := time.Now()
	res := a.executor.Call(callCtx, a.registry, call.ToolName, call.Args)
	took := time.Since(start)

	if res.IsOK() {
		ep.events.Emit(&events.ToolCallEndEvent{Turn: turn, ToolName: call.ToolName, Result: res.Summary(), Duration: took})
	} else {
		ep.events.Emit(&events.ToolCallErrorEvent{Turn: turn, ToolName: call.ToolName, ErrorCode: res.ErrorCode, Error: res.Message, Duration: took})
	}
	return ToolOutcome{ToolName: call.ToolName, Args: call.Args, Result: res, Duration: took}
}

// recall loads relevant memories and preferences. Failures only cost
// context, so they are logged and ignored.
func (a *Agent) recall(ctx context.Context, ep *episode) ([]string, map[string]string) {
	if a.memory == nil {
		return nil, nil
	}
	memories, err := a.memory.Query(ctx, ep.goal, a.memoryResults)
	if err != nil {
		ep.logger.Warn("Memory query failed", loggerv2.Error(err))
	}
	prefs, err := a.memory.Preferences(ctx)
	if err != nil {
		ep.logger.Warn("Loading preferences failed", loggerv2.Error(err))
	}
	return memories, prefs
}

// remember stores a one-sentence summary of an episode that used tools.
func (a *Agent) remember(ctx context.Context, ep *episode, answer string) {
	if a.memory == nil || len(ep.used) == 0 {
		return
	}
	summary, err := a.model.Generate(ctx, prompt.Summary(ep.goal, answer))
	if err != nil {
		ep.logger.Warn("Task summary failed; nothing remembered", loggerv2.Error(err))
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" || strings.HasPrefix(summary, "Error") {
		ep.logger.Warn("Task summary unusable; nothing remembered", loggerv2.String("summary", summary))
		return
	}
	toolsUsed := memory.DedupTools(ep.used)
	rec, err := a.memory.Add(ctx, summary, toolsUsed, answer)
	if err != nil {
		ep.logger.Warn("Saving task memory failed", loggerv2.Error(err))
		return
	}
	ep.events.Emit(&events.MemoryStoredEvent{MemoryID: rec.ID, Summary: summary, Tools: toolsUsed})
}

func (a *Agent) rejected(ep *episode, turn int, reason string, consecutive int) {
	ep.events.Emit(&events.PlanRejectedEvent{Turn: turn, Reason: reason, ConsecutiveErrors: consecutive})
	ep.logger.Warn("Model response rejected",
		loggerv2.Int("turn", turn),
		loggerv2.String("reason", reason),
		loggerv2.Int("consecutive_errors", consecutive))
}

func (a *Agent) abort(ep *episode, reason, message string, turns int, err error) {
	ev := &events.EpisodeAbortEvent{Reason: reason, Message: message, Turns: turns}
	fields := []loggerv2.Field{loggerv2.String("reason", reason), loggerv2.Int("turns", turns)}
	if err != nil {
		ev.Error = err.Error()
		fields = append(fields, loggerv2.Error(err))
	}
	ep.events.Emit(ev)
	ep.logger.Warn("Episode aborted", fields...)
}

// renderPlan shows the calls of a plan to the person confirming it.
func renderPlan(plan *Plan) string {
	lines := make([]string, len(plan.ToolCalls))
	for i, c := range plan.ToolCalls {
		args, err := json.Marshal(c.Args)
		if err != nil {
			args = []byte("{}")
		}
		lines[i] = fmt.Sprintf("%d. %s %s", i+1, c.ToolName, args)
	}
	return strings.Join(lines, "\n")
}

func modelName(c llm.Client) string {
	if m, ok := c.(interface{ Name() string }); ok {
		return m.Name()
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
