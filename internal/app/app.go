package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"specview/internal/config"
	apierrors "specview/internal/errors"
	"specview/internal/infrastructure"
	customMiddleware "specview/internal/middleware"
	"specview/internal/services"
	handlers "specview/internal/transport/http"
	ws "specview/internal/websocket"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.DomainMetrics
	Services      *ServiceContainer

	errorHandler *apierrors.ErrorHandler
	validation   *customMiddleware.ValidationMiddleware
	listener     net.Listener
	serveErr     chan error
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Scans     *services.ScanService
	Health    *services.HealthService
	WebSocket *ws.Hub
	System    *infrastructure.SystemMetrics
}

// NewApplication loads the configuration at configPath (empty searches the
// default locations), initializes the global logger and wires the
// application
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewApplicationWithConfig(cfg, logger)
}

// NewApplicationWithConfig wires the application from an already loaded
// configuration
func NewApplicationWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	logger.Info("Application paths",
		slog.String("data_dir", paths.DataDir),
		slog.String("export_dir", paths.ExportDir),
		slog.String("logs_dir", paths.LogsDir))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateDomainMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create domain metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		errorHandler:  apierrors.NewErrorHandler(logger, false),
	}
	app.validation = customMiddleware.NewValidationMiddleware(logger, app.errorHandler)

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	system, err := infrastructure.NewSystemMetrics(a.OTelProviders.Meter, time.Now())
	if err != nil {
		return fmt.Errorf("failed to initialize system metrics: %w", err)
	}

	hub := ws.NewHub(ws.OptionsFrom(a.Config.WebSocket), a.Metrics, a.Logger)

	scans, err := services.NewScanService(a.Config, a.Paths, a.OTelProviders.Tracer, a.Metrics, hub, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scan service: %w", err)
	}

	a.Services = &ServiceContainer{
		Scans:     scans,
		Health:    services.NewHealthService(scans, hub, system, a.Logger),
		WebSocket: hub,
		System:    system,
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter hijackable runs before /ws
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → headers → CORS → rate limit
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)

		metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.Services.WebSocket)
		r.Mount("/metrics", metricsHandler.Routes())
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Compress(5))
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout, a.Logger))
		r.Use(a.validation.ValidateRequest)

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)
		r.Get("/stats", healthHandler.Stats)

		scans := a.Services.Scans

		// Requests that write files or mutate the cache are audited
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeValidator("application/json"))
			r.Use(customMiddleware.AuditLog(a.Logger))

			exportHandler := handlers.NewExportHandler(scans, a.validation, a.Logger, a.errorHandler)
			r.Post("/export", exportHandler.Export)
		})

		fileHandler := handlers.NewFileHandler(scans, a.validation, a.Logger, a.errorHandler)
		r.Mount("/files", fileHandler.Routes())

		scanHandler := handlers.NewScanHandler(scans, a.validation, a.Logger, a.errorHandler)
		r.Mount("/scans", scanHandler.Routes())

		r.Post("/logs", handlers.NewClientLogHandler(a.Logger, a.errorHandler).Handle)
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		Logger:         a.Logger,
	}
}

// originAllowed reports whether a websocket upgrade from origin may proceed.
// Requests without an Origin header come from non-browser clients.
func (a *Application) originAllowed(origin, host string) bool {
	if origin == "" {
		return true
	}
	if strings.EqualFold(origin, "http://"+host) || strings.EqualFold(origin, "https://"+host) {
		return true
	}
	if !a.Config.Security.EnableCORS {
		return false
	}
	for _, allowed := range a.Config.Security.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Preload parses the given scan logs so the first requests hit the cache.
// Failures are logged and do not stop the server.
func (a *Application) Preload(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	catalogs, err := a.Services.Scans.LoadAll(ctx, paths)
	if err != nil {
		a.Logger.WarnContext(ctx, "Preload failed", slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "Preloaded scan logs", slog.Int("count", len(catalogs)))
}

// Addr returns the bound listen address once Start has succeeded
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listen address and serves in the background. cancel is
// called when the server fails after startup.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	a.Services.WebSocket.Start()

	a.serveErr = make(chan error, 1)
	go func() {
		err := a.Server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serveErr <- err
			if cancel != nil {
				cancel()
			}
		}
		close(a.serveErr)
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", "http://"+ln.Addr().String()))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; stopping
	// the hub closes them
	a.Services.WebSocket.Stop()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := a.Stop(context.Background()); err != nil {
		return err
	}
	return <-a.serveErr
}

// handleWebSocket upgrades the connection and registers the client with the
// hub
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := customMiddleware.GetRequestID(r.Context())
	ctx := infrastructure.WithTraceID(r.Context(), reqID)

	a.Logger.DebugContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("user_agent", r.UserAgent()))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if a.originAllowed(origin, r.Host) {
				return true
			}
			a.Logger.WarnContext(ctx, "WebSocket origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", a.Config.Security.AllowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.WarnContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()))
			a.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				status, apierrors.ErrWebSocketUpgrade.ErrorCode, apierrors.ErrWebSocketUpgrade.Message, reason.Error()))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.Serve(a.Services.WebSocket, conn, reqID, a.Logger)
	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))
}

// performStartupHealthCheck verifies the data directory is readable and the
// export directory writable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var problems []string

	if info, err := os.Stat(a.Paths.DataDir); err != nil {
		problems = append(problems, fmt.Sprintf("data dir %s: %v", a.Paths.DataDir, err))
	} else if !info.IsDir() {
		problems = append(problems, fmt.Sprintf("data dir %s is not a directory", a.Paths.DataDir))
	}

	probe, err := os.CreateTemp(a.Paths.ExportDir, ".probe-*")
	if err != nil {
		problems = append(problems, fmt.Sprintf("export dir %s is not writable: %v", a.Paths.ExportDir, err))
	} else {
		probe.Close()
		os.Remove(probe.Name())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	a.Logger.DebugContext(ctx, "Startup health check passed")
	return nil
}
