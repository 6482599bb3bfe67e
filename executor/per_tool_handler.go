package executor

import (
	"encoding/json"
	"fmt"
	"net/http"

	loggerv2 "jarvis/logger/v2"
)

// HandlePerTool runs the tool named in the path with the request body as
// its arguments.
// POST /api/tools/{tool}
// Body: {"source_path": "...", "destination_folder": "..."}
func (h *ExecutorHandlers) HandlePerTool(w http.ResponseWriter, r *http.Request) {
	tool := r.PathValue("tool")
	var args map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			h.logger.Warn("Failed to decode per-tool request body", loggerv2.String("tool", tool), loggerv2.Error(err))
			writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("Invalid request body: %v", err)})
			return
		}
	}
	if args == nil {
		args = make(map[string]any)
	}
	h.runTool(w, r, tool, args)
}
