// Package extension provides a Forge extension entry point for Sentinel.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/api"
	"github.com/xraph/sentinel/blob"
	"github.com/xraph/sentinel/cache"
	"github.com/xraph/sentinel/notify"
	"github.com/xraph/sentinel/plugin"
	"github.com/xraph/sentinel/store"
	mongostore "github.com/xraph/sentinel/store/mongo"
	"github.com/xraph/sentinel/workflow"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "sentinel"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Role-based access control and role application workflow engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Sentinel as a Forge extension.
type Extension struct {
	config     Config
	eng        *sentinel.Engine
	apps       *workflow.Service
	apiHandler *api.API
	logger     *slog.Logger
	notifier   notify.Notifier
	engineOpts []sentinel.Option
	plugins    []plugin.Plugin
}

// New creates a Sentinel Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Sentinel engine.
func (e *Extension) Engine() *sentinel.Engine { return e.eng }

// Applications returns the role application workflow service.
func (e *Extension) Applications() *workflow.Service { return e.apps }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine and the
// workflow service, registers both in the DI container, and optionally
// registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*sentinel.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("sentinel: register engine in container: %w", err)
	}

	if err := vessel.Provide(fapp.Container(), func() (*workflow.Service, error) {
		return e.apps, nil
	}); err != nil {
		return fmt.Errorf("sentinel: register workflow service in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	var cacheOpts []cache.MemoryOption
	if e.config.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(e.config.CacheTTL))
	}
	permCache := cache.NewMemory(cacheOpts...)

	opts := make([]sentinel.Option, 0, len(e.engineOpts)+len(e.plugins)+3)
	opts = append(opts,
		sentinel.WithLogger(logger),
		sentinel.WithCache(permCache),
	)

	// Resolve the store: an explicit store.Store from the container wins,
	// otherwise a grove.DB is wrapped in the MongoDB store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, sentinel.WithStore(s))
	} else if db, err := forge.Inject[*grove.DB](fapp.Container()); err == nil {
		var storeOpts []mongostore.Option
		if e.config.AuditRetention > 0 {
			storeOpts = append(storeOpts, mongostore.WithAuditRetention(e.config.AuditRetention))
		}
		opts = append(opts, sentinel.WithStore(mongostore.New(db, storeOpts...)))
	}

	// Append user-provided options (may override store and cache).
	opts = append(opts, e.engineOpts...)

	for _, x := range e.plugins {
		opts = append(opts, sentinel.WithPlugin(x))
	}

	eng, err := sentinel.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("sentinel: create engine: %w", err)
	}
	e.eng = eng

	wfOpts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithCache(permCache),
		workflow.WithPlugins(eng.Plugins()),
	}
	if e.notifier != nil {
		wfOpts = append(wfOpts, workflow.WithNotifier(e.notifier))
	}
	if b, err := forge.Inject[blob.Store](fapp.Container()); err == nil {
		wfOpts = append(wfOpts, workflow.WithBlobStore(b))
	} else {
		wfOpts = append(wfOpts, workflow.WithBlobStore(blob.NewMemory()))
	}
	e.apps = workflow.New(eng.Store(), wfOpts...)

	e.apiHandler = api.New(eng, e.apps, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("sentinel: register routes: %w", err)
		}
	}

	return nil
}

// Start begins the engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("sentinel: extension not initialized")
	}

	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("sentinel: migration failed: %w", err)
			}
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("sentinel: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("sentinel: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all Sentinel API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
