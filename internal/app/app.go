package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/handlers"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/delivery"
	"github.com/ternarybob/macrolens/internal/services/events"
	"github.com/ternarybob/macrolens/internal/services/llm"
	"github.com/ternarybob/macrolens/internal/services/mcpserver"
	"github.com/ternarybob/macrolens/internal/services/pdf"
	"github.com/ternarybob/macrolens/internal/services/pipeline"
	"github.com/ternarybob/macrolens/internal/services/report"
	"github.com/ternarybob/macrolens/internal/services/scheduler"
	"github.com/ternarybob/macrolens/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService *scheduler.Service

	// Audit layer and its outer surfaces
	AuditService    *audit.Service
	Renderer        *report.Renderer
	DeliveryService *delivery.Service

	// Pipeline collaborators
	PDFExtractor    interfaces.PDFExtractor
	LLMService      interfaces.LLMService
	DraftServices   []interfaces.LLMService // extra providers of A/B and benchmark runs
	PipelineService *pipeline.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	AuditHandler    *handlers.AuditHandler
	RunsHandler     *handlers.RunsHandler
	PipelineHandler *handlers.PipelineHandler
	WSHandler       *handlers.WebSocketHandler
	MCPHandler      http.Handler
}

// New initializes the application with all dependencies. The scheduler is
// built when the pipeline is enabled but not started; see StartScheduler.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Bool("pipeline_enabled", cfg.Pipeline.Enabled).
		Str("provider", app.LLMService.Provider()).
		Bool("delivery_enabled", cfg.Delivery.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// NewAuditService builds the audit layer from configuration. storage and
// eventService may be nil for one-off commands that record nothing.
func NewAuditService(cfg *common.Config, storage interfaces.AuditRunStorage, eventService interfaces.EventService, logger arbor.ILogger) (*audit.Service, error) {
	calendar := events.NewCalendar()
	if cfg.Events.CalendarFile != "" {
		loaded, err := events.LoadCalendar(cfg.Events.CalendarFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load event calendar: %w", err)
		}
		calendar = loaded
		logger.Debug().Str("path", cfg.Events.CalendarFile).Msg("Event calendar loaded")
	}

	return audit.NewService(cfg.Policy, calendar, storage, eventService, logger)
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes the services in dependency order:
// audit layer, renderers, LLM collaborators, pipeline, scheduler.
func (a *App) initServices() error {
	var err error

	a.AuditService, err = NewAuditService(a.Config, a.StorageManager.AuditRunStorage(), a.EventService, a.Logger)
	if err != nil {
		return err
	}

	a.Renderer = report.NewRenderer(a.Config.Report, a.Logger)
	a.DeliveryService = delivery.NewService(a.Config.Delivery, a.Logger)
	a.PDFExtractor = pdf.NewExtractor(a.Logger)

	// A missing API key must not stop the server: the audit API works without
	// a provider and pipeline runs degrade to empty metrics and narrative.
	a.LLMService, err = llm.NewLLMService(context.Background(), a.Config, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Str("provider", a.Config.Pipeline.Provider).Msg("LLM service unavailable, pipeline runs will degrade")
		a.LLMService = llm.NewUnavailableService(llm.PrimaryProvider(a.Config.Pipeline), err)
	}

	retry := llm.NewRetryConfig(&a.Config.Pipeline)
	extractor := llm.NewMetricsExtractor(a.LLMService, retry, a.Config.Templates.Dir, a.Logger)

	a.PipelineService = pipeline.NewService(
		a.Config.Pipeline,
		a.PDFExtractor,
		extractor,
		a.initDrafters(retry),
		a.AuditService,
		a.Renderer,
		a.DeliveryService,
		a.StorageManager.KeyValueStorage(),
		a.EventService,
		a.Logger,
	)

	if a.Config.Pipeline.Enabled {
		a.SchedulerService, err = scheduler.NewService(a.PipelineService, a.Config.Pipeline.Schedule, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
	}

	return nil
}

// initDrafters builds one summarizer per draft target. The primary service
// is reused for its own provider at the configured model; other targets get
// their own service, or an unavailable stand-in when it cannot be created.
func (a *App) initDrafters(retry llm.RetryConfig) []pipeline.Drafter {
	targets := llm.DraftTargets(a.Config.Pipeline)
	primary := llm.PrimaryProvider(a.Config.Pipeline)

	drafters := make([]pipeline.Drafter, 0, len(targets))
	for _, ref := range targets {
		service := a.LLMService
		if ref.Provider != primary || ref.Model != "" {
			var err error
			service, err = llm.NewProviderService(context.Background(), a.Config, ref, a.Logger)
			if err != nil {
				a.Logger.Warn().Err(err).Str("provider", ref.Provider).Str("model", ref.Model).Msg("Draft provider unavailable")
				service = llm.NewUnavailableService(ref.Provider, err)
			}
			a.DraftServices = append(a.DraftServices, service)
		}
		drafters = append(drafters, pipeline.Drafter{
			Provider:   ref.Provider,
			Model:      ref.Model,
			Summarizer: llm.NewNarrativeSummarizer(service, retry, a.Config.Templates.Dir, a.Logger),
		})
	}

	if len(drafters) > 1 {
		a.Logger.Info().Int("drafters", len(drafters)).Str("mode", llm.RunMode(a.Config.Pipeline)).Msg("Comparison runs enabled")
	}
	return drafters
}

func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.Logger, a.SchedulerService)
	a.AuditHandler = handlers.NewAuditHandler(a.AuditService, a.Logger)
	a.RunsHandler = handlers.NewRunsHandler(a.StorageManager.AuditRunStorage(), a.Renderer, a.Logger)
	a.PipelineHandler = handlers.NewPipelineHandler(a.PipelineService, a.SchedulerService, a.Logger)

	a.WSHandler = handlers.NewWebSocketHandler(a.Logger)
	if err := a.WSHandler.SubscribeToRunEvents(a.EventService); err != nil {
		return fmt.Errorf("failed to subscribe run stream: %w", err)
	}

	tools := mcpserver.NewTools(a.AuditService, a.StorageManager.AuditRunStorage(), a.Renderer, a.Logger)
	a.MCPHandler = mcpserver.NewHTTPHandler(tools)

	return nil
}

// StartScheduler starts the cron schedule when the pipeline is enabled
func (a *App) StartScheduler() error {
	if a.SchedulerService == nil {
		a.Logger.Debug().Msg("Pipeline schedule disabled")
		return nil
	}
	return a.SchedulerService.Start()
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop the scheduler first so no run starts against closed storage
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	for _, svc := range append([]interfaces.LLMService{a.LLMService}, a.DraftServices...) {
		if svc == nil {
			continue
		}
		if err := svc.Close(); err != nil {
			a.Logger.Warn().Err(err).Str("provider", svc.Provider()).Msg("Failed to close LLM service")
		}
	}

	// Waits for in-flight event handlers
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
