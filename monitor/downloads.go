package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"jarvis/agent"
	"jarvis/llm"
	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
	"jarvis/translog"
)

const (
	DefaultMaxActions = 20
	// DefaultSettleDelay gives a download time to finish writing.
	DefaultSettleDelay = time.Second
)

// organizeTools are the only tools the watcher may propose, each mapped to
// the argument naming the file it acts on.
var organizeTools = map[string]string{
	"move_file":        "source_path",
	"rename_file":      "current_path",
	"delete_junk_file": "file_path",
}

const organizePrompt = `A new file has been downloaded: '%s'.
Based on the filename and common file types, decide which tool is best to organize it.
Your goal is to categorize and file it appropriately.

Here are the available organizing tools:
%s

Rules:
- If it's clearly temporary junk (e.g., 'tmp123.dat', 'download.part'), use delete_junk_file with a brief reason.
- Invoices, screenshots, images and documents should be moved into a fitting folder with move_file.
- Use rename_file when the name is meaningless but the file is worth keeping.

Respond ONLY with a JSON object for the single best tool to use.
The JSON MUST have 'tool_name' and 'args' (as an object). The file path is %s. Folders must be full paths.
Example:
` + "```json" + `
{
    "tool_name": "move_file",
    "args": {"source_path": "%s", "destination_folder": "%s"}
}
` + "```"

// Action is an organizing step proposed for a new download, waiting for
// the user to approve it.
type Action struct {
	ID        string         `json:"id"`
	File      string         `json:"file"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"created_at"`
}

// DownloadsWatcher proposes organize actions for files created in a folder.
type DownloadsWatcher struct {
	dir      string
	model    llm.Client
	registry *tools.Registry
	executor *tools.Executor
	logger   loggerv2.Logger
	settle   time.Duration

	actions *noticeList[Action]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

type DownloadsOption func(*DownloadsWatcher)

func WithDownloadsLogger(l loggerv2.Logger) DownloadsOption {
	return func(w *DownloadsWatcher) { w.logger = l }
}

func WithSettleDelay(d time.Duration) DownloadsOption {
	return func(w *DownloadsWatcher) { w.settle = d }
}

func NewDownloadsWatcher(dir string, model llm.Client, reg *tools.Registry, exec *tools.Executor, opts ...DownloadsOption) *DownloadsWatcher {
	w := &DownloadsWatcher{
		dir:      dir,
		model:    model,
		registry: reg,
		executor: exec,
		logger:   loggerv2.NewNoop(),
		settle:   DefaultSettleDelay,
		actions:  newNoticeList[Action](DefaultMaxActions, func(a Action) string { return a.ID }),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.executor == nil {
		w.executor = tools.NewExecutor(tools.WithExecutorLogger(w.logger))
	}
	return w
}

// Start watches the folder (not recursively) until Stop or ctx is done.
func (w *DownloadsWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return ErrAlreadyRunning
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	w.watcher, w.cancel, w.done = fw, cancel, make(chan struct{})
	go w.loop(ctx, fw, w.done)
	w.logger.Info("Downloads watcher started", loggerv2.String("dir", w.dir))
	return nil
}

func (w *DownloadsWatcher) Stop() {
	w.mu.Lock()
	fw, cancel, done := w.watcher, w.cancel, w.done
	w.watcher, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()
	if fw == nil {
		return
	}
	cancel()
	fw.Close()
	<-done
	w.logger.Info("Downloads watcher stopped", loggerv2.String("dir", w.dir))
}

func (w *DownloadsWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			if w.settle > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.settle):
				}
			}
			if _, err := w.Propose(ctx, ev.Name); err != nil {
				w.logger.Warn("No organize action for new file", loggerv2.String("file", ev.Name), loggerv2.Error(err))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Downloads watcher error", err)
		}
	}
}

// Propose asks the model how to organize path and queues the answer as a
// pending action.
func (w *DownloadsWatcher) Propose(ctx context.Context, path string) (*Action, error) {
	name := filepath.Base(path)
	example := filepath.Join(filepath.Dir(filepath.Dir(path)), "Documents", "Invoices")
	text, err := w.model.Generate(ctx, fmt.Sprintf(organizePrompt, name, w.toolList(), path, path, example))
	if err != nil {
		return nil, fmt.Errorf("organize proposal: %w", err)
	}
	block, err := agent.ExtractJSONBlock(text)
	if err != nil {
		return nil, err
	}
	var call agent.ToolCall
	if err := json.Unmarshal([]byte(block), &call); err != nil {
		return nil, fmt.Errorf("decode organize proposal: %w", err)
	}
	pathArg, ok := organizeTools[call.ToolName]
	if !ok {
		return nil, fmt.Errorf("tool %q may not be used to organize downloads", call.ToolName)
	}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	// The action always targets the new file, whatever the model wrote.
	call.Args[pathArg] = path

	args, _ := json.Marshal(call.Args)
	action := Action{
		ID:        uuid.NewString(),
		File:      path,
		ToolName:  call.ToolName,
		Args:      call.Args,
		Text:      fmt.Sprintf("New download '%s': %s %s", name, call.ToolName, args),
		CreatedAt: time.Now(),
	}
	w.actions.add(action)
	w.logger.Info("Organize action proposed", loggerv2.String("file", name), loggerv2.String("tool", call.ToolName))
	return &action, nil
}

func (w *DownloadsWatcher) toolList() string {
	var lines []string
	for _, name := range []string{"move_file", "rename_file", "delete_junk_file"} {
		def, ok := w.registry.Lookup(name)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s(%s): %s", name, def.Schema.Signature(), def.Description))
	}
	return strings.Join(lines, "\n")
}

func (w *DownloadsWatcher) Actions() []Action { return w.actions.list() }

// Approve runs a pending action through the executor. Approving is the
// user's confirmation. The action is removed first so it cannot run twice.
func (w *DownloadsWatcher) Approve(ctx context.Context, id string) (tools.Result, error) {
	action, ok := w.actions.take(id)
	if !ok {
		return tools.Result{}, ErrUnknownID
	}
	ctx = translog.WithAttribution(ctx, translog.Attribution{Source: translog.SourceDownloads})
	res := w.executor.Call(ctx, w.registry, action.ToolName, action.Args)
	w.logger.Info("Organize action executed",
		loggerv2.String("tool", action.ToolName),
		loggerv2.String("status", string(res.Status)))
	return res, nil
}

func (w *DownloadsWatcher) Dismiss(id string) error {
	if _, ok := w.actions.take(id); !ok {
		return ErrUnknownID
	}
	return nil
}
