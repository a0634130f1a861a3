// Package app wires configuration, storage, channels and the escalation
// worker into a running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/oncall-garden/internal/config"
	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/escalation"
	escalationpostgres "github.com/bissquit/oncall-garden/internal/escalation/postgres"
	"github.com/bissquit/oncall-garden/internal/identity/jwt"
	"github.com/bissquit/oncall-garden/internal/lease"
	"github.com/bissquit/oncall-garden/internal/notifications"
	notificationspostgres "github.com/bissquit/oncall-garden/internal/notifications/postgres"
	"github.com/bissquit/oncall-garden/internal/notifications/push"
	"github.com/bissquit/oncall-garden/internal/notifications/slack"
	"github.com/bissquit/oncall-garden/internal/notifications/webhook"
	"github.com/bissquit/oncall-garden/internal/oncall"
	oncallpostgres "github.com/bissquit/oncall-garden/internal/oncall/postgres"
	"github.com/bissquit/oncall-garden/internal/pkg/clock"
	"github.com/bissquit/oncall-garden/internal/pkg/ctxlog"
	"github.com/bissquit/oncall-garden/internal/pkg/httputil"
	"github.com/bissquit/oncall-garden/internal/pkg/metrics"
	"github.com/bissquit/oncall-garden/internal/pkg/postgres"
	"github.com/bissquit/oncall-garden/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redisLease    *lease.Redis
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc

	worker        *escalation.Worker
	workerCancel  context.CancelFunc
	escalationSvc *escalation.Service
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())
	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}
	metrics.BuildInfo.WithLabelValues(version.Version, version.GitCommit).Set(1)
	go metrics.CollectDBPoolMetrics(metricsCtx, db, 15*time.Second)

	var claims escalation.Lease = lease.Noop{}
	if cfg.Lease.Enabled {
		redisLease, err := lease.NewRedis(connectCtx, lease.Config{
			Address:   cfg.Lease.Address,
			Password:  cfg.Lease.Password,
			DB:        cfg.Lease.DB,
			KeyPrefix: cfg.Lease.KeyPrefix,
		})
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("connect lease store: %w", err)
		}
		app.redisLease = redisLease
		claims = redisLease
	}

	router, err := app.setup(claims)
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())
	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the escalation worker and the HTTP servers. It blocks until the
// API server stops.
func (a *App) Run() error {
	a.StartWorker()

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWorker launches the escalation loop if it is enabled. It is a no-op
// on repeated calls.
func (a *App) StartWorker() {
	if a.worker == nil || a.workerCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.worker.Start(ctx)
}

// Shutdown stops the worker, drains both servers and closes storage.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	// The worker goes first so an in-flight tick can still reach the database.
	if a.workerCancel != nil {
		a.worker.Stop()
		a.workerCancel()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
			mu.Unlock()
		}
	}
	wg.Add(2)
	go shutdown("server", a.server)
	go shutdown("metrics server", a.metricsServer)
	wg.Wait()

	a.closeResources()
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	a.metricsCancel()
	if a.redisLease != nil {
		if err := a.redisLease.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	a.db.Close()
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Worker returns the escalation worker, or nil when it is disabled.
func (a *App) Worker() *escalation.Worker {
	return a.worker
}

// EscalationService returns the service behind the incident actions.
func (a *App) EscalationService() *escalation.Service {
	return a.escalationSvc
}

func (a *App) setup(claims escalation.Lease) (*chi.Mux, error) {
	cfg := a.config

	notificationsRepo := notificationspostgres.NewRepository(a.db)
	senders, err := a.buildSenders()
	if err != nil {
		return nil, err
	}
	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}
	dispatcher := notifications.NewDispatcher(notifications.DispatcherConfig{
		AttemptTimeout: cfg.Notifications.AttemptTimeout,
		Concurrency:    cfg.Notifications.Concurrency,
	}, notificationsRepo, renderer, senders...)

	oncallService := oncall.NewService(oncallpostgres.NewRepository(a.db), clock.System())

	store := escalationpostgres.NewRepository(a.db)
	a.escalationSvc = escalation.NewService(
		escalation.ServiceConfig{BaseURL: cfg.Escalation.BaseURL},
		store,
		oncallService,
		dispatcher,
		clock.System(),
	)

	if cfg.Escalation.Enabled {
		a.worker = escalation.NewWorker(escalation.WorkerConfig{
			PollInterval: cfg.Escalation.PollInterval,
			TickTimeout:  cfg.Escalation.TickTimeout,
			BatchSize:    cfg.Escalation.BatchSize,
			Concurrency:  cfg.Escalation.Concurrency,
			LeaseTTL:     cfg.Escalation.LeaseTTL,
		}, store, a.escalationSvc, claims, clock.System())
	} else {
		slog.Warn("escalation worker is disabled: incidents will only move on manual escalation")
	}

	tokens := jwt.NewValidator(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Issuer:    cfg.JWT.Issuer,
	})

	r := chi.NewRouter()
	// Metrics first so the full request time is measured.
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	oncallHandler := oncall.NewHandler(oncallService)
	escalationHandler := escalation.NewHandler(a.escalationSvc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(tokens))
		r.Use(httputil.RequireRole(domain.RoleResponder))

		oncallHandler.RegisterRoutes(r)
		escalationHandler.RegisterRoutes(r)
	})

	return r, nil
}

func (a *App) buildSenders() ([]notifications.Sender, error) {
	cfg := a.config.Notifications
	var senders []notifications.Sender

	if cfg.Push.Enabled {
		s, err := push.NewSender(push.Config{
			Endpoint:  cfg.Push.Endpoint,
			ServerKey: cfg.Push.ServerKey,
			Timeout:   cfg.AttemptTimeout,
			RateLimit: cfg.Push.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create push sender: %w", err)
		}
		senders = append(senders, s)
	} else {
		slog.Warn("push sender is disabled: push notifications will be skipped")
	}

	if cfg.Slack.Enabled {
		s, err := slack.NewSender(slack.Config{
			BotToken: cfg.Slack.BotToken,
			APIURL:   cfg.Slack.APIURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create slack sender: %w", err)
		}
		senders = append(senders, s)
	} else {
		slog.Warn("chat sender is disabled: chat notifications will be skipped")
	}

	// Webhook URLs are configured per user.
	if cfg.Webhook.Enabled {
		senders = append(senders, webhook.NewSender(webhook.Config{
			SigningSecret: cfg.Webhook.SigningSecret,
			Timeout:       cfg.AttemptTimeout,
		}))
	}

	if !cfg.Breaker.Enabled {
		return senders, nil
	}
	breaker := notifications.BreakerConfig{
		MaxRequests:      1,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.OpenTimeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}
	for i, s := range senders {
		senders[i] = notifications.WithBreaker(s, breaker)
	}
	return senders, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	if a.redisLease != nil {
		if err := a.redisLease.Ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Lease store unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	worker := "disabled"
	if a.worker != nil {
		worker = a.worker.State().String()
	}
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":       version.Version,
		"commit":        version.GitCommit,
		"build_date":    version.BuildDate,
		"worker_status": worker,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
