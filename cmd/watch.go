package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/emsham/tethru/internal/crm"
	"github.com/emsham/tethru/internal/instrumentation"
	"github.com/emsham/tethru/internal/logging"
	"github.com/emsham/tethru/internal/sync"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the sync daemon",
		Long: `Watch runs until interrupted. It observes the task and contact exports
for changes, debounces bursts of edits, and pushes each changed item to the
calendar. A periodic full reconciliation catches anything the incremental
path missed, and a Prometheus scrape endpoint exposes sync metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()
			return runWatch(cmd.Context(), app)
		},
	}
	return cmd
}

func runWatch(parent context.Context, app *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.cfg.Validate(); err != nil {
		return err
	}
	connected, err := app.manager.Connected(ctx)
	if err != nil {
		return err
	}
	if !connected {
		return errors.New("no calendar connected, run 'tethru connect' first")
	}

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		Enabled:        app.cfg.Metrics.Enabled,
		ServiceName:    "tethru",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			app.logger.Warn("metrics shutdown failed", logging.Err(err))
		}
	}()
	app.setMetrics(provider.Metrics())

	if provider.Enabled() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", provider.Handler())
		metricsServer := &http.Server{Addr: app.cfg.Metrics.Addr, Handler: mux}
		go func() {
			app.logger.Info("metrics endpoint listening", "addr", app.cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	syncer, err := app.newSyncer(ctx)
	if err != nil {
		return err
	}

	taskSource, contactSource := app.sources()
	tasks, err := taskSource.Snapshot(ctx)
	if err != nil {
		return err
	}
	contacts, err := contactSource.Snapshot(ctx)
	if err != nil {
		return err
	}

	detector := sync.NewDetector(syncer, app.store, app.cfg.DebounceWindow, app.logger)
	detector.SetMetrics(app.metrics)
	detector.Prime(tasks, contacts)

	taskUpdates, err := taskSource.Subscribe(ctx)
	if err != nil {
		return err
	}
	contactUpdates, err := contactSource.Subscribe(ctx)
	if err != nil {
		return err
	}

	// Periodic catch-up pass. Incremental detection can miss edits made
	// while the daemon was down, so a scheduled reconciliation walks
	// everything on a fixed cadence.
	if app.cfg.FullSyncSchedule != "" {
		scheduler := cron.New()
		_, err = scheduler.AddFunc(app.cfg.FullSyncSchedule, func() {
			fullSync(ctx, app, syncer, taskSource, contactSource)
		})
		if err != nil {
			return errors.New("invalid full_sync_schedule: " + err.Error())
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Reconcile once at startup to cover changes made while stopped.
	fullSync(ctx, app, syncer, taskSource, contactSource)

	app.logger.Info("watching for changes",
		"tasks_file", app.cfg.TasksFile,
		"contacts_file", app.cfg.ContactsFile,
		"debounce", app.cfg.DebounceWindow.String(),
	)
	return detector.Run(ctx, taskUpdates, contactUpdates)
}

func fullSync(ctx context.Context, app *app, syncer *sync.Syncer, tasks crm.TaskSource, contacts crm.ContactSource) {
	taskList, err := tasks.Snapshot(ctx)
	if err != nil {
		app.logger.Error("full sync aborted, cannot read tasks", logging.Err(err))
		return
	}
	contactList, err := contacts.Snapshot(ctx)
	if err != nil {
		app.logger.Error("full sync aborted, cannot read contacts", logging.Err(err))
		return
	}
	if _, err := syncer.FullSync(ctx, taskList, contactList); err != nil {
		app.logger.Error("full sync failed", logging.Err(err))
	}
}
