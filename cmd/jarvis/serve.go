package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jarvis/confirm"
	"jarvis/events"
	"jarvis/executor"
	loggerv2 "jarvis/logger/v2"
	"jarvis/monitor"
)

const (
	statusHistory   = 200
	shutdownTimeout = 30 * time.Second
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr       string
		token      string
		noWatchers bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP bridge, background watchers and /metrics",
		Long: `Serve the HTTP bridge used by desktop front-ends. Plans that need consent
are parked until POST /api/confirmations/resolve answers them. Unless
disabled, the pattern analyzer, health monitor and downloads watcher run
in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags, appOptions{withModel: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if token == "" {
				token = executor.GenerateAPIToken()
				fmt.Fprintf(cmd.OutOrStdout(), "API token: %s\n", token)
			}

			recorder := events.NewRecorder(statusHistory)
			a.emitter.AddObserver(recorder)
			broker := confirm.NewBroker(
				confirm.WithTimeout(a.cfg.Agent.ConfirmationTimeout),
				confirm.WithLogger(a.logger),
			)

			deps := executor.Deps{
				Agent:    a.newAgent(broker),
				Broker:   broker,
				Registry: a.registry,
				Executor: a.executor,
				Status:   recorder,
				Logger:   a.logger,
			}
			if a.cfg.Watcher.Enabled && !noWatchers {
				stopWatchers := startWatchers(ctx, a, &deps)
				defer stopWatchers()
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())
			mux.Handle("/", executor.NewExecutorHandlers(deps).Handler(token))
			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("HTTP bridge listening", loggerv2.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("Shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			a.logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&token, "token", os.Getenv("JARVIS_API_TOKEN"), "API token; generated when empty")
	cmd.Flags().BoolVar(&noWatchers, "no-watchers", false, "do not start the background watchers")
	return cmd
}

// startWatchers starts the monitors, exposes them through deps and returns
// a func that stops them. A watcher that fails to start is logged and
// left out.
func startWatchers(ctx context.Context, a *app, deps *executor.Deps) func() {
	var stops []func()
	wc := a.cfg.Watcher

	analyzer := monitor.NewAnalyzer(a.txlog,
		monitor.WithAnalyzerLogger(a.logger),
		monitor.WithAnalyzerInterval(wc.AnalyzerInterval))
	if err := analyzer.Start(ctx); err != nil {
		a.logger.Warn("Pattern analyzer not started", loggerv2.Error(err))
	} else {
		deps.Suggestions = analyzer
		stops = append(stops, analyzer.Stop)
	}

	health := monitor.NewHealthMonitor(a.model,
		monitor.WithHealthLogger(a.logger),
		monitor.WithHealthInterval(wc.HealthInterval))
	if err := health.Start(ctx); err != nil {
		a.logger.Warn("Health monitor not started", loggerv2.Error(err))
	} else {
		deps.Alerts = health
		stops = append(stops, health.Stop)
	}

	if wc.DownloadsDir != "" {
		downloads := monitor.NewDownloadsWatcher(wc.DownloadsDir, a.model, a.registry, a.executor,
			monitor.WithDownloadsLogger(a.logger))
		if err := downloads.Start(ctx); err != nil {
			a.logger.Warn("Downloads watcher not started", loggerv2.Error(err))
		} else {
			deps.Actions = downloads
			stops = append(stops, downloads.Stop)
		}
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
