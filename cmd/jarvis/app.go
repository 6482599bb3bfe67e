package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"jarvis/agent"
	"jarvis/confidence"
	"jarvis/config"
	"jarvis/confirm"
	"jarvis/events"
	"jarvis/llm"
	loggerv2 "jarvis/logger/v2"
	"jarvis/memory"
	"jarvis/observability"
	"jarvis/tools"
	"jarvis/tools/builtin"
	"jarvis/translog"
)

// app holds the long-lived collaborators shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   loggerv2.Logger
	model    llm.Model
	registry *tools.Registry
	executor *tools.Executor
	dynamic  *tools.DynamicManager
	memory   *memory.BleveStore
	txlog    *translog.Log
	emitter  *events.EventEmitter
	metrics  *observability.Metrics
}

type appOptions struct {
	// withModel initializes the LLM provider. Inspection commands skip it
	// so they work without an API key.
	withModel bool
	// quiet sends logs only to the log file, keeping stderr clean for
	// interactive and stdio commands.
	quiet bool
}

func openApp(ctx context.Context, flags *globalFlags, opts appOptions) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, flags)

	logger, err := newLogger(cfg, opts.quiet)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: tools.NewRegistry(),
		emitter:  events.NewEventEmitter(),
		metrics:  observability.NewMetrics(),
	}
	a.emitter.AddObserver(a.metrics)
	a.emitter.AddObserver(observability.NewLogTracer(logger))

	if opts.withModel {
		a.model, err = llm.InitializeLLM(ctx, llm.Config{
			Provider:          llm.Provider(cfg.LLM.Provider),
			Model:             cfg.LLM.Model,
			APIKey:            cfg.LLM.APIKey,
			Temperature:       cfg.LLM.Temperature,
			MaxTokens:         cfg.LLM.MaxTokens,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize llm: %w", err)
		}
	}

	a.txlog, err = translog.Open(cfg.TransactionLogPath(), translog.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction log: %w", err)
	}
	a.executor = tools.NewExecutor(
		tools.WithExecutorLogger(logger),
		tools.WithTimeout(cfg.Tools.Timeout),
		tools.WithObserver(a.metrics.ObserveTool),
		tools.WithCallHook(a.txlog.Hook()),
	)
	a.memory, err = memory.OpenBleve(cfg.MemoryDir(), memory.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open memory: %w", err)
	}

	sandbox := tools.NewSandbox(
		tools.WithSandboxLogger(logger),
		tools.WithSandboxTimeout(cfg.Tools.ScriptTimeout),
		tools.WithWorkDir(filepath.Join(cfg.DataDir, "sandbox")),
	)
	a.dynamic = tools.NewDynamicManager(a.registry, sandbox, tools.WithDynamicLogger(logger))

	home, _ := os.UserHomeDir()
	err = builtin.RegisterAll(a.registry, builtin.Deps{
		Memory:  a.memory,
		Dynamic: a.dynamic,
		Scripts: sandbox,
		Web: builtin.WebConfig{
			SearchAPIKey:    cfg.Tools.SearchAPIKey,
			SearchEngineID:  cfg.Tools.SearchEngineID,
			MaxScrapeLength: cfg.Tools.MaxScrapeLength,
		},
		Weather:       builtin.WeatherConfig{APIKey: cfg.Tools.WeatherAPIKey},
		HomeDir:       home,
		ScriptTimeout: cfg.Tools.ScriptTimeout,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	logger.Debug("Session tools registered", loggerv2.Int("count", a.registry.Len()))
	return a, nil
}

// newAgent builds a planning loop that asks confirmer before risky plans.
func (a *app) newAgent(confirmer confirm.Confirmer) *agent.Agent {
	ac := a.cfg.Agent
	weights := confidence.Weights{
		Model:      1 - ac.VerifierWeight - ac.HistoryWeight,
		Verifier:   ac.VerifierWeight,
		Historical: ac.HistoryWeight,
	}
	historian := confidence.NewHistorian(a.txlog, ac.HistoryRecords, a.logger)
	a.txlog.OnAppend(func(r translog.Record) { historian.Invalidate(r.ToolName) })

	return agent.New(a.model, a.registry,
		agent.WithLogger(a.logger),
		agent.WithMaxTurns(ac.MaxTurns),
		agent.WithMaxConsecutiveErrors(ac.MaxConsecutiveErrors),
		agent.WithMaxRateLimitRetries(ac.MaxRateLimitRetries),
		agent.WithThresholds(confidence.Thresholds{Go: ac.GoThreshold, Ask: ac.AskThreshold}),
		agent.WithWeights(weights),
		agent.WithHistorian(historian),
		agent.WithConfirmer(confirmer),
		agent.WithMemory(a.memory),
		agent.WithMemoryResults(ac.MemoryResults),
		agent.WithTransactionLog(a.txlog),
		agent.WithEmitter(a.emitter),
		agent.WithExecutor(a.executor),
	)
}

func (a *app) Close() {
	if a.memory != nil {
		if err := a.memory.Close(); err != nil {
			a.logger.Warn("Failed to close memory", loggerv2.Error(err))
		}
	}
	_ = a.logger.Close()
}

func applyFlagOverrides(cfg *config.Config, flags *globalFlags) {
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if flags.logFile != "" {
		cfg.Log.File = flags.logFile
	}
}

func newLogger(cfg *config.Config, quiet bool) (loggerv2.Logger, error) {
	lc := loggerv2.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.FilePath = cfg.Log.File
	if quiet {
		if cfg.Log.File == "" {
			return loggerv2.NewNoop(), nil
		}
		lc.Output = cfg.Log.File
		lc.FilePath = ""
	}
	return loggerv2.New(lc)
}
