// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/api"
	"github.com/itsatony/w4b_v3/server/dashboard/api/middleware"
	"github.com/itsatony/w4b_v3/server/dashboard/api/resources"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/cache"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/cleanup"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/config"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/exports"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/monitoring"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/notify"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/backend"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/files"
)

const healthWindow = time.Hour

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	cache      *cache.Store
	dashboard  *dashboard.Service
	exports    *exports.Manager
	monitoring *monitoring.Service
	stop       context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{
		config: cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Initialize services
	s.monitoring = monitoring.NewService(monitoring.Config{
		MetricsEnabled: s.config.Monitoring.MetricsEnabled,
		MetricsPath:    s.config.Monitoring.MetricsPath,
	})
	s.initializeServices()

	// Set up cleanup event handlers
	s.setupCleanupHandlers()

	// Background jobs
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	if s.config.FileStore.SweepInterval > 0 {
		go s.dashboard.Cleanup.RunSpoolSweeper(ctx, s.config.FileStore.SweepInterval, s.config.FileStore.MaxAge)
	}

	// Start server
	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.stop()
	s.exports.Shutdown()
	if err := s.cache.Close(); err != nil {
		nuts.L.Warnf("[Server] Closing cache: %v", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// initializeServices builds the backend clients, the cache and the HTTP stack
func (s *Server) initializeServices() {
	cfg := s.config

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s.cache = cache.New(rdb, cfg.Cache.Prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.Ping(ctx); err != nil {
		nuts.L.Warnf("[Server] Redis not reachable at %s, continuing: %v", cfg.Redis.Addr(), err)
	}

	spool, err := files.NewSpool(files.FileConfig{
		BasePath:    cfg.FileStore.BasePath,
		MaxFileSize: cfg.FileStore.MaxFileSize,
		AllowedMime: cfg.FileStore.AllowedMimeTypes,
	})
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize export spool: %v", err)
	}

	// Initialize repositories
	client := backend.New(cfg.Backend)
	levels := backend.NewLevelRepository(client)
	sensors := backend.NewSensorRepository(client)
	users := backend.NewUserRepository(client)
	roles := backend.NewRoleRepository(client)

	cleaner := cleanup.New(levels, sensors, s.cache, spool)
	s.dashboard = dashboard.New(levels, sensors, users, roles, backend.NewAuthRepository(client), s.cache, cleaner, dashboard.TTLs{
		Levels:      cfg.Cache.LevelsTTL,
		Summary:     cfg.Cache.SummaryTTL,
		Permissions: cfg.Cache.PermissionsTTL,
	})
	if err := s.dashboard.Validate(); err != nil {
		nuts.L.Fatalf("[Server] Dashboard service incomplete: %v", err)
	}

	hub := notify.NewHub()
	s.exports = exports.NewManager(backend.NewExportRepository(client), users, spool, hub, exports.Options{
		Interval: cfg.Export.PollInterval,
		Timeout:  cfg.Export.PollTimeout,
		OnEvent:  s.monitoring.RecordEvent,
	})

	sessions := auth.NewSessionStore(cfg.Session)
	authn := middleware.NewAuthenticator(sessions, cfg.Keycloak, s.dashboard)

	res := resources.NewResources(s.dashboard, sessions, s.exports, hub)
	res.SetHealthCheck(s.handleHealth())
	if cfg.Monitoring.MetricsEnabled {
		res.SetMetrics(promhttp.Handler())
	}

	metricsPath := ""
	if cfg.Monitoring.MetricsEnabled {
		metricsPath = cfg.Monitoring.MetricsPath
	}
	router := api.NewRouter(res, authn, metricsPath)

	var h http.Handler = router
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	if len(cfg.Server.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.AllowCredentials(),
		)(h)
	}
	s.srv.Handler = handlers.LoggingHandler(os.Stdout, h)
}

// handleHealth reports cache reachability and recent export activity
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cache.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		exportEvents, _ := s.monitoring.GetEventMetrics("export.", healthWindow)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"version":%q,"activePollers":%d,"exportEvents":%d}`,
			status, nuts.GetVersion(), s.exports.ActivePollers(), sum(exportEvents))
	}
}

func sum(counts map[string]int64) int64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	return n
}

func (s *Server) setupCleanupHandlers() {
	// Handle level deletion events
	s.dashboard.Cleanup.OnCleanup(cleanup.EventLevelDeleted, func(id string) {
		nuts.L.Infof("[Cleanup] Level %s deleted, tree cache dropped", id)
		s.monitoring.RecordEvent("level_deletion", map[string]string{
			"level_id": id,
		})
	})

	// Handle sensor deletion events
	s.dashboard.Cleanup.OnCleanup(cleanup.EventSensorDeleted, func(id string) {
		nuts.L.Infof("[Cleanup] Sensor %s deleted", id)
		s.monitoring.RecordEvent("sensor_deletion", map[string]string{
			"sensor_id": id,
		})
	})

	// Handle spool sweeps
	s.dashboard.Cleanup.OnCleanup(cleanup.EventSpoolSwept, func(n string) {
		s.monitoring.RecordEvent("spool_sweep", map[string]string{
			"removed": n,
		})
	})
}
