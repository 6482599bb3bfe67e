// Package executor is the HTTP bridge between the planning core and a
// desktop front-end: it runs episodes, relays confirmation requests, exposes
// the tool catalogue and the background watchers' notices.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jarvis/confidence"
	"jarvis/confirm"
	"jarvis/events"
	loggerv2 "jarvis/logger/v2"
	"jarvis/monitor"
	"jarvis/tools"
	"jarvis/translog"
)

// --- REQUEST/RESPONSE TYPES ---

// Response is the envelope of every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ThinkRequest starts an episode.
type ThinkRequest struct {
	Goal string `json:"goal"`
}

// ResolveRequest answers a pending confirmation.
type ResolveRequest struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

// ToolExecuteRequest runs one tool directly.
type ToolExecuteRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ApproveRequest approves a pending organize action.
type ApproveRequest struct {
	ID string `json:"id"`
}

// ToolInfo describes a tool to the front-end.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Dynamic     bool           `json:"dynamic"`
	Parameters  map[string]any `json:"parameters"`
}

// --- DEPENDENCIES ---

// Thinker runs one episode.
type Thinker interface {
	Think(ctx context.Context, goal string) (string, error)
}

type SuggestionSource interface {
	Suggestions() []monitor.Suggestion
	Dismiss(id string) error
}

type AlertSource interface {
	Alerts() []monitor.Alert
	Dismiss(id string) error
}

type ActionSource interface {
	Actions() []monitor.Action
	Approve(ctx context.Context, id string) (tools.Result, error)
	Dismiss(id string) error
}

// Deps wires the handlers. Agent, Broker, Registry and Executor are
// required; the watcher sources and the status recorder are optional and
// their endpoints answer with empty lists when absent.
type Deps struct {
	Agent       Thinker
	Broker      *confirm.Broker
	Registry    *tools.Registry
	Executor    *tools.Executor
	Suggestions SuggestionSource
	Alerts      AlertSource
	Actions     ActionSource
	Status      *events.Recorder
	Logger      loggerv2.Logger
	// ToolTimeout bounds direct tool calls. Zero means 2 minutes.
	ToolTimeout time.Duration
}

// --- EXECUTOR HANDLERS ---

// ExecutorHandlers provides the HTTP handlers of the bridge.
type ExecutorHandlers struct {
	deps   Deps
	logger loggerv2.Logger
}

func NewExecutorHandlers(deps Deps) *ExecutorHandlers {
	if deps.Logger == nil {
		deps.Logger = loggerv2.NewNoop()
	}
	if deps.Executor == nil {
		deps.Executor = tools.NewExecutor(tools.WithExecutorLogger(deps.Logger))
	}
	if deps.ToolTimeout <= 0 {
		deps.ToolTimeout = 2 * time.Minute
	}
	return &ExecutorHandlers{deps: deps, logger: deps.Logger}
}

// Register attaches every endpoint to mux.
func (h *ExecutorHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/agent/think", h.HandleThink)
	mux.HandleFunc("GET /api/confirmations", h.HandleConfirmations)
	mux.HandleFunc("POST /api/confirmations/resolve", h.HandleResolve)
	mux.HandleFunc("GET /api/tools", h.HandleTools)
	mux.HandleFunc("POST /api/tools/execute", h.HandleToolExecute)
	mux.HandleFunc("POST /api/tools/{tool}", h.HandlePerTool)
	mux.HandleFunc("GET /api/suggestions", h.HandleSuggestions)
	mux.HandleFunc("DELETE /api/suggestions", h.HandleDismissSuggestion)
	mux.HandleFunc("GET /api/alerts", h.HandleAlerts)
	mux.HandleFunc("DELETE /api/alerts", h.HandleDismissAlert)
	mux.HandleFunc("GET /api/actions", h.HandleActions)
	mux.HandleFunc("POST /api/actions/approve", h.HandleApproveAction)
	mux.HandleFunc("DELETE /api/actions", h.HandleDismissAction)
	mux.HandleFunc("GET /api/status", h.HandleStatus)
}

// Handler returns the bridge as one handler with CORS and, when token is
// not empty, bearer authentication.
func (h *ExecutorHandlers) Handler(token string) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	var handler http.Handler = mux
	if token != "" {
		handler = AuthMiddleware(token)(handler)
	}
	return CORS(handler)
}

// HandleThink runs an episode and returns the user-facing answer.
// POST /api/agent/think
// Body: {"goal": "..."}
func (h *ExecutorHandlers) HandleThink(w http.ResponseWriter, r *http.Request) {
	var req ThinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Goal == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "goal is required"})
		return
	}
	h.logger.Info("Think request", loggerv2.String("goal", req.Goal))

	answer, err := h.deps.Agent.Think(r.Context(), req.Goal)
	if err != nil {
		h.logger.Error("Episode failed", err)
		writeJSON(w, http.StatusOK, Response{Result: answer, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: answer})
}

// HandleConfirmations lists plans waiting for the user.
func (h *ExecutorHandlers) HandleConfirmations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Result: h.deps.Broker.Pending()})
}

// HandleResolve answers a pending confirmation.
// POST /api/confirmations/resolve
// Body: {"id": "...", "confirmed": true}
func (h *ExecutorHandlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.deps.Broker.Resolve(req.ID, req.Confirmed); err != nil {
		writeJSON(w, http.StatusNotFound, Response{Error: err.Error()})
		return
	}
	h.logger.Info("Confirmation answered", loggerv2.String("id", req.ID), loggerv2.Bool("confirmed", req.Confirmed))
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// HandleTools lists the current catalogue, dynamic tools included.
func (h *ExecutorHandlers) HandleTools(w http.ResponseWriter, _ *http.Request) {
	defs := h.deps.Registry.Definitions()
	out := make([]ToolInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Dynamic:     d.Dynamic,
			Parameters:  d.Schema.JSONSchema(),
		})
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: out})
}

// HandleToolExecute runs a tool outside any episode.
// POST /api/tools/execute
// Body: {"tool": "get_system_information", "args": {...}}
// Response: {"success": true, "result": {"status": "ok", "data": ...}}
func (h *ExecutorHandlers) HandleToolExecute(w http.ResponseWriter, r *http.Request) {
	var req ToolExecuteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "tool parameter is required"})
		return
	}
	h.runTool(w, r, req.Tool, req.Args)
}

// runTool executes one tool. Destructive tools wait for the same
// confirmation an episode would ask for.
func (h *ExecutorHandlers) runTool(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	if confidence.IsDestructive(name) {
		if outcome := h.confirmTool(r.Context(), name, args); !outcome.Approved() {
			h.logger.Warn("Direct tool call refused",
				loggerv2.String("tool", name),
				loggerv2.String("outcome", string(outcome)))
			writeJSON(w, http.StatusForbidden, Response{Error: fmt.Sprintf("tool %s was not confirmed: %s", name, outcome)})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.ToolTimeout)
	defer cancel()
	ctx = translog.WithAttribution(ctx, translog.Attribution{Source: translog.SourceHTTP})

	h.logger.Info("Executing tool", loggerv2.String("tool", name))
	res := h.deps.Executor.Call(ctx, h.deps.Registry, name, args)
	resp := Response{Success: res.IsOK(), Result: res}
	if !res.IsOK() {
		resp.Error = res.ErrorText()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ExecutorHandlers) confirmTool(ctx context.Context, name string, args map[string]any) confirm.Outcome {
	if h.deps.Broker == nil {
		return confirm.Declined
	}
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	return h.deps.Broker.Confirm(ctx, confirm.Request{
		Title:     "Run " + name + "?",
		Plan:      fmt.Sprintf("1. %s %s", name, raw),
		Rationale: "Direct call to a tool that can change or delete data.",
	})
}

func (h *ExecutorHandlers) HandleSuggestions(w http.ResponseWriter, _ *http.Request) {
	var out []monitor.Suggestion
	if h.deps.Suggestions != nil {
		out = h.deps.Suggestions.Suggestions()
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: nonNil(out)})
}

func (h *ExecutorHandlers) HandleDismissSuggestion(w http.ResponseWriter, r *http.Request) {
	if h.deps.Suggestions == nil {
		writeJSON(w, http.StatusNotFound, Response{Error: "pattern analyzer is not running"})
		return
	}
	h.dismiss(w, r, h.deps.Suggestions.Dismiss)
}

func (h *ExecutorHandlers) HandleAlerts(w http.ResponseWriter, _ *http.Request) {
	var out []monitor.Alert
	if h.deps.Alerts != nil {
		out = h.deps.Alerts.Alerts()
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: nonNil(out)})
}

func (h *ExecutorHandlers) HandleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if h.deps.Alerts == nil {
		writeJSON(w, http.StatusNotFound, Response{Error: "health monitor is not running"})
		return
	}
	h.dismiss(w, r, h.deps.Alerts.Dismiss)
}

func (h *ExecutorHandlers) HandleActions(w http.ResponseWriter, _ *http.Request) {
	var out []monitor.Action
	if h.deps.Actions != nil {
		out = h.deps.Actions.Actions()
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: nonNil(out)})
}

// HandleApproveAction executes a pending organize action.
// POST /api/actions/approve
// Body: {"id": "..."}
func (h *ExecutorHandlers) HandleApproveAction(w http.ResponseWriter, r *http.Request) {
	if h.deps.Actions == nil {
		writeJSON(w, http.StatusNotFound, Response{Error: "downloads watcher is not running"})
		return
	}
	var req ApproveRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.deps.Actions.Approve(r.Context(), req.ID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, Response{Error: err.Error()})
		return
	}
	resp := Response{Success: res.IsOK(), Result: res}
	if !res.IsOK() {
		resp.Error = res.ErrorText()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ExecutorHandlers) HandleDismissAction(w http.ResponseWriter, r *http.Request) {
	if h.deps.Actions == nil {
		writeJSON(w, http.StatusNotFound, Response{Error: "downloads watcher is not running"})
		return
	}
	h.dismiss(w, r, h.deps.Actions.Dismiss)
}

// HandleStatus returns recent agent events, optionally only those after
// the RFC 3339 time in ?since=.
func (h *ExecutorHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Status == nil {
		writeJSON(w, http.StatusOK, Response{Success: true, Result: []*events.Event{}})
		return
	}
	evs := h.deps.Status.Events()
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("invalid since: %v", err)})
			return
		}
		evs = h.deps.Status.Since(t)
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: nonNil(evs)})
}

func (h *ExecutorHandlers) dismiss(w http.ResponseWriter, r *http.Request, fn func(string) error) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "id parameter is required"})
		return
	}
	if err := fn(id); err != nil {
		writeJSON(w, http.StatusNotFound, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

func (h *ExecutorHandlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("Failed to decode request", loggerv2.String("path", r.URL.Path), loggerv2.Error(err))
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// nonNil keeps empty lists as [] rather than null on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
