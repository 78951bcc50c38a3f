// Package app wires configuration, object store, the reference Arrow
// columnar stack, and the catalog core into a runnable daemon exposing
// an optional HTTP surface and a Prometheus metrics endpoint
// (SPEC_FULL.md §2's "App/daemon" ambient component). Lifecycle shape —
// New/Start/Stop/Run with signal handling — is adapted from the
// teacher's internal/app/app.go, trimmed from its dozen monitor/sink/
// enterprise subsystems down to the handful of things a catalog daemon
// actually owns.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/icedb-go/icedb/internal/catalog"
	"github.com/icedb-go/icedb/internal/columnar"
	"github.com/icedb-go/icedb/internal/config"
	"github.com/icedb-go/icedb/internal/metrics"
	"github.com/icedb-go/icedb/internal/tracing"
	"github.com/icedb-go/icedb/pkg/codec"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

// App coordinates one catalog instance: object store, reference
// columnar writer/rewriter/describer, tracing, metrics, and an optional
// HTTP surface over the catalog's five operations.
type App struct {
	config  *config.Config
	logger  *logrus.Logger
	catalog *catalog.Catalog
	tracer  *tracing.Manager

	httpServer    *http.Server
	metricsServer *metrics.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads configFile, builds the object store and reference columnar
// stack it names, and wires them into a Catalog.
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build object store: %w", err)
	}

	tracerCfg := tracing.DefaultConfig()
	tracerCfg.Enabled = cfg.Tracing.Enabled
	tracerCfg.Exporter = cfg.Tracing.Exporter
	if cfg.Tracing.Endpoint != "" {
		tracerCfg.Endpoint = cfg.Tracing.Endpoint
	}
	if cfg.Tracing.SampleRate != 0 {
		tracerCfg.SampleRate = cfg.Tracing.SampleRate
	}
	tracer, err := tracing.NewManager(tracerCfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build tracer: %w", err)
	}

	codecs := codec.NewRegistry()
	writer := columnar.NewWriter(store, codecs)
	rewriter := columnar.NewRewriter(store, codecs)

	cat := catalog.New(catalog.Options{
		Store:        store,
		Prefix:       cfg.ObjectStore.TablePrefix,
		HostID:       cfg.App.HostID,
		Logger:       logger,
		ColumnWriter: writer,
		Rewriter:     rewriter,
		Describer:    writer,
	})

	app := &App{
		config:  cfg,
		logger:  logger,
		catalog: cat,
		tracer:  tracer,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port), logger)
	}
	if cfg.Server.Enabled {
		app.httpServer = app.buildHTTPServer()
	}

	return app, nil
}

func buildStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (objectstore.Store, error) {
	switch cfg.ObjectStore.Backend {
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.ObjectStore.Bucket, logger)
	case "localdisk":
		return objectstore.NewLocalDiskStore(cfg.ObjectStore.LocalDir)
	default:
		return nil, fmt.Errorf("unknown object store backend: %s", cfg.ObjectStore.Backend)
	}
}

func (app *App) buildHTTPServer() *http.Server {
	router := mux.NewRouter()
	app.registerHandlers(router)
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Start brings up the metrics server and, if enabled, the HTTP surface.
func (app *App) Start() error {
	app.logger.Info("starting icedb catalog daemon")

	if app.metricsServer != nil {
		if err := app.metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	if app.httpServer != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logger.WithField("addr", app.httpServer.Addr).Info("starting HTTP server")
			if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.logger.WithError(err).Error("HTTP server error")
			}
		}()
	}

	app.logger.Info("icedb catalog daemon started")
	return nil
}

// Stop performs graceful shutdown of the HTTP surface, metrics server,
// and tracer provider.
func (app *App) Stop() error {
	app.logger.Info("stopping icedb catalog daemon")
	app.cancel()

	if app.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.httpServer.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Error("failed to shut down HTTP server")
		}
	}

	if app.metricsServer != nil {
		if err := app.metricsServer.Stop(); err != nil {
			app.logger.WithError(err).Error("failed to stop metrics server")
		}
	}

	if app.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.tracer.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Error("failed to shut down tracer")
		}
	}

	app.wg.Wait()
	app.logger.Info("icedb catalog daemon stopped")
	return nil
}

// Run starts the daemon and blocks until SIGINT/SIGTERM.
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		return err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	app.logger.Info("shutdown signal received")
	return app.Stop()
}
