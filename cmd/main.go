package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/vesseltrail/internal/adapters/datasource"
	"github.com/okian/vesseltrail/internal/adapters/http/api"
	"github.com/okian/vesseltrail/internal/adapters/http/site"
	"github.com/okian/vesseltrail/internal/adapters/http/swagger"
	app "github.com/okian/vesseltrail/internal/app"
	"github.com/okian/vesseltrail/internal/config"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/pkg/logger"
	"github.com/okian/vesseltrail/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "vesseltrail stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "server stopped")
}

// run wires the data source, service and HTTP server and blocks until ctx ends.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	stack, err := datasource.FromConfig(ctx, cfg, log.Named("datasource"))
	if err != nil {
		return fmt.Errorf("data source: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stack.Close(closeCtx); err != nil {
			log.Warn(ctx, "closing data source", logger.Error(err))
		}
	}()

	svc := newService(cfg, stack.Source, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr), logger.String("source", cfg.Source))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if stack.Kafka != nil {
		g.Go(func() error {
			if err := stack.Kafka.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	return g.Wait()
}

// newService maps configuration onto service options.
func newService(cfg *config.Config, src datasource.Source, log logger.Logger) *app.Service {
	return app.New(
		app.WithSource(src),
		app.WithLogger(log.Named("service")),
		app.WithLocation(cfg.Location()),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithFetchTimeout(config.Duration(cfg.FetchTimeoutMS)),
		app.WithSessionTTL(config.Duration(cfg.SessionTTLMS)),
		app.WithThresholds(colors.MetricPower, cfg.PowerThresholds[0], cfg.PowerThresholds[1]),
		app.WithThresholds(colors.MetricSFOC, cfg.SFOCThresholds[0], cfg.SFOCThresholds[1]),
		app.WithThresholds(colors.MetricExcessConsumption, cfg.ConsumptionThresholds[0], cfg.ConsumptionThresholds[1]),
	)
}

// newMux registers the API, the API docs and the dashboard.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater updates process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
