package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/emsham/tethru/internal/config"
	"github.com/emsham/tethru/internal/crm"
	"github.com/emsham/tethru/internal/gcal"
	"github.com/emsham/tethru/internal/instrumentation"
	"github.com/emsham/tethru/internal/logging"
	"github.com/emsham/tethru/internal/oauth"
	"github.com/emsham/tethru/internal/store"
	"github.com/emsham/tethru/internal/sync"
)

// app wires the engine's components together for a command invocation. The
// provider registry is constructed here, at startup, and passed where
// needed; there is no package-level registry.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	manager  *oauth.Manager
	registry *sync.Registry
	metrics  *instrumentation.Metrics
}

// newApp loads configuration and assembles the shared components.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	key, err := oauth.EncryptionKeyFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	cipher, err := oauth.NewTokenCipher(key)
	if err != nil {
		return nil, err
	}
	if !cipher.Enabled() {
		logger.Warn("no encryption key configured, tokens are stored in plaintext")
	}

	st, err := store.Open(cfg.DatabasePath, cipher)
	if err != nil {
		return nil, err
	}

	manager := oauth.NewManager(googleOAuthConfig(cfg), st, st, logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		manager: manager,
	}

	registry := sync.NewRegistry()
	registry.Register("google", func(ctx context.Context) (sync.Calendar, error) {
		return gcal.NewClient(ctx, manager, logger)
	})
	a.registry = registry
	return a, nil
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", logging.Err(err))
	}
}

// setMetrics propagates a metrics recorder to the components that emit
// measurements.
func (a *app) setMetrics(m *instrumentation.Metrics) {
	a.metrics = m
	a.manager.SetMetrics(m)
}

// newSyncer constructs the orchestrator for the configured provider.
func (a *app) newSyncer(ctx context.Context) (*sync.Syncer, error) {
	cal, err := a.registry.New(ctx, a.cfg.Provider)
	if err != nil {
		return nil, err
	}
	if c, ok := cal.(*gcal.Client); ok && a.metrics != nil {
		c.SetMetrics(a.metrics)
	}
	syncer := sync.NewSyncer(cal, a.store, a.store, a.cfg.CalendarID, a.logger)
	syncer.SetMetrics(a.metrics)
	return syncer, nil
}

// sources constructs the file-backed task and contact sources the CRM
// exports into.
func (a *app) sources() (crm.TaskSource, crm.ContactSource) {
	return crm.NewFileTaskSource(a.cfg.TasksFile, a.logger),
		crm.NewFileContactSource(a.cfg.ContactsFile, a.logger)
}

// googleOAuthConfig returns the OAuth2 configuration for the Google Calendar
// provider.
func googleOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes: []string{
			calendar.CalendarEventsScope,   // manage events the engine writes
			calendar.CalendarReadonlyScope, // list calendars
		},
	}
}

// printResult renders a reconciliation result for the terminal.
func printResult(result *sync.Result) {
	fmt.Printf("Synced %d item(s)\n", result.Synced)
	if !result.Success() {
		fmt.Printf("%d item(s) failed:\n", len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Printf("  - %s\n", msg)
		}
	}
}
