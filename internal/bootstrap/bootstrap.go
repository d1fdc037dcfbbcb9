package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "carscan-server/docs"
	"carscan-server/internal/domain/auth"
	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/eventbus"
	"carscan-server/internal/domain/scan"
	"carscan-server/internal/domain/sessionstore"
	platformconfig "carscan-server/internal/platform/config"
	platformerrors "carscan-server/internal/platform/errors"
	platformlogging "carscan-server/internal/platform/logging"
	platformobservability "carscan-server/internal/platform/observability"
	platformstorage "carscan-server/internal/platform/storage"
	httptransport "carscan-server/internal/transport/http"
	"carscan-server/internal/transport/http/scanapi"
	"carscan-server/internal/transport/http/system"
	"carscan-server/internal/transport/ws"
	"carscan-server/internal/util/work"
)

const shutdownTimeout = 15 * time.Second

// Version is overridden at link time.
var Version = "dev"

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>carscan API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	journal               *platformstorage.EventJournal
	bus                   *eventbus.Bus
	store                 sessionstore.Store
	tokens                *auth.SessionToken
	detector              *detection.Client
	detectQueue           *work.WorkQueue
	manager               *scan.Manager
}

// Run loads configuration, wires every component, serves HTTP and blocks
// until SIGINT/SIGTERM or ctx cancellation.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil || state.manager == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/manager not initialised",
		)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		state.close(closeCtx)
	}()

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "init graph:")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "  %s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "  %s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the init steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider", "storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "sessionstore:init",
			Title:     "Initialise session store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initSessionStoreStep,
		},
		{
			ID:        "scan:init-manager",
			Title:     "Initialise scan manager",
			DependsOn: []string{"observability:setup-hooks", "eventbus:init", "sessionstore:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initScanStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	platformlogging.DefaultLogger = logger

	logger.InfoTag("BOOT", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

// initDatabaseStep opens SQLite only when the session store uses it.
func initDatabaseStep(_ context.Context, state *appState) error {
	if !strings.EqualFold(state.config.SessionStore.Driver, sessionstore.DriverSQLite) {
		return nil
	}
	db, err := platformstorage.Open(state.config.SessionStore.SQLite.DSN)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to open database", err)
	}
	state.db = db
	state.journal = platformstorage.NewEventJournal(db)
	state.logger.InfoTag("STORE", "sqlite ready at %s", state.config.SessionStore.SQLite.DSN)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	state.bus = eventbus.Get()
	if state.journal == nil {
		return nil
	}

	journal, logger := state.journal, state.logger
	return state.bus.SubscribeAsync(func(ev eventbus.ScanEvent) {
		if ev.Topic == eventbus.EventScanProgress {
			return
		}
		var data []byte
		if ev.Data != nil {
			encoded, err := sonic.Marshal(ev.Data)
			if err != nil {
				logger.WarnTag("STORE", "journal encode %s failed: %v", ev.Topic, err)
				return
			}
			data = encoded
		}
		if err := journal.Append(context.Background(), ev.SessionID, ev.Topic, data); err != nil {
			logger.WarnTag("STORE", "journal append failed: %v", err)
		}
	})
}

func initSessionStoreStep(_ context.Context, state *appState) error {
	cfg := state.config.SessionStore
	store, err := sessionstore.New(sessionstore.Config{
		Driver: cfg.Driver,
		TTL:    cfg.TTL,
		Redis: &sessionstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
		Memory: &sessionstore.MemoryConfig{GCInterval: cfg.Cleanup},
	}, sessionstore.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "sessionstore:init", "failed to create session store", err)
	}
	state.store = store
	state.logger.InfoTag("STORE", "session store driver=%s ttl=%s", cfg.Driver, cfg.TTL)
	return nil
}

func initScanStep(_ context.Context, state *appState) error {
	cfg := state.config
	if err := checkTokenSecret(cfg, state.logger); err != nil {
		return err
	}
	detector, err := detection.NewClient(detection.Options{
		Endpoint:        cfg.Detection.URL,
		FallbackEnabled: cfg.Detection.FallbackEnabled,
		Logger:          state.logger,
	})
	if err != nil {
		return err
	}

	queue := work.NewWorkQueue(cfg.Detection.MaxConcurrent, 4*cfg.Detection.MaxConcurrent)
	manager, err := scan.NewManager(scan.ManagerOptions{
		Detector: scan.Throttle(detector, queue),
		Locale:   detection.ParseLocale(cfg.Scan.Locale),
		Store:    state.store,
		Bus:      state.bus,
		Logger:   state.logger,
	})
	if err != nil {
		queue.Stop()
		return err
	}

	state.detector = detector
	state.detectQueue = queue
	state.manager = manager
	state.tokens = auth.NewSessionToken(cfg.Server.Token).WithTTL(cfg.Server.SessionTTL)
	state.logger.InfoTag("SCAN", "detection endpoint %s (fallback=%t, workers=%d)", cfg.Detection.URL, cfg.Detection.FallbackEnabled, cfg.Detection.MaxConcurrent)
	return nil
}

// close releases everything the init graph acquired, in reverse order.
// Detection calls still running when ctx ends are abandoned.
func (s *appState) close(ctx context.Context) {
	if s.detectQueue != nil {
		if err := s.detectQueue.StopContext(ctx); err != nil {
			s.logger.WarnTag("BOOT", "detection queue did not drain: %v", err)
		}
	}
	if s.manager != nil {
		s.manager.Close()
	}
	if s.store != nil {
		if err := s.store.Close(context.Background()); err != nil {
			s.logger.WarnTag("STORE", "session store close failed: %v", err)
		}
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			s.logger.WarnTag("STORE", "database close failed: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.observabilityShutdown(shutdownCtx); err != nil {
			s.logger.WarnTag("BOOT", "observability shutdown failed: %v", err)
		}
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	interval := state.config.SessionStore.Cleanup
	if interval > 0 {
		g.Go(func() error {
			runMaintenance(groupCtx, state, interval)
			return nil
		})
	}
	return nil
}

// buildHandler assembles the gin engine with every route mounted.
func buildHandler(ctx context.Context, state *appState) (*gin.Engine, *ws.Hub, error) {
	cfg, logger := state.config, state.logger

	router, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	scanService, err := scanapi.NewService(cfg, logger, state.manager, state.tokens)
	if err != nil {
		return nil, nil, platformerrors.Wrap(platformerrors.KindTransport, "http:scan-service", "failed to create scan service", err)
	}
	if err := scanService.Register(ctx, router.API); err != nil {
		return nil, nil, err
	}

	hub := ws.NewHub(logger)
	wsRouter := ws.NewRouter(hub, logger, state.manager, state.tokens, state.bus, ws.RouterOptions{
		CheckOrigin: originChecker(cfg.Web.Origins),
	})
	router.Engine.GET("/ws/sessions/:id", func(c *gin.Context) {
		wsRouter.Handle(c.Writer, c.Request, c.Param("id"))
	})

	systemService, err := system.NewService(system.Options{
		Logger:      logger,
		Sessions:    state.manager,
		Store:       state.store,
		Connections: hub,
		Endpoint:    cfg.Detection.URL,
		Version:     Version,
	})
	if err != nil {
		return nil, nil, platformerrors.Wrap(platformerrors.KindTransport, "http:system-service", "failed to create system service", err)
	}
	if err := systemService.Register(ctx, router.API); err != nil {
		return nil, nil, err
	}

	router.Engine.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "openapi generation failed: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec", gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.Engine.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	return router.Engine, hub, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	cfg, logger := state.config, state.logger

	handler, hub, err := buildHandler(groupCtx, state)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "api docs at http://%s/docs", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			hub.CloseAll(ws.ErrSessionShutdown)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

// runMaintenance expires idle sessions, stale store records and old
// journal rows every interval.
func runMaintenance(ctx context.Context, state *appState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ttl := state.config.SessionStore.TTL
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state.manager.Sweep(ctx, ttl)
		if err := state.store.CleanupExpired(ctx); err != nil {
			state.logger.WarnTag("STORE", "cleanup failed: %v", err)
		}
		if state.journal != nil && ttl > 0 {
			n, err := state.journal.Purge(ctx, time.Now().Add(-ttl))
			if err != nil {
				state.logger.WarnTag("STORE", "journal purge failed: %v", err)
			} else if n > 0 {
				state.logger.DebugTag("STORE", "purged %d journal rows", n)
			}
		}
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "received %v, shutting down", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(shutdownTimeout):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}

// checkTokenSecret refuses the shipped signing secret unless the server
// only listens on loopback.
func checkTokenSecret(cfg *platformconfig.Config, logger *platformlogging.Logger) error {
	if cfg.Server.Token != platformconfig.DefaultTokenSecret {
		return nil
	}
	if !isLoopback(cfg.Server.IP) {
		return platformerrors.New(
			platformerrors.KindConfig,
			"scan:init-manager",
			fmt.Sprintf("server.token is still the default; set a secret before listening on %s", cfg.Server.IP),
		)
	}
	logger.WarnTag("AUTH", "server.token is the default secret; session tokens can be forged by anyone with local access")
	return nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
