package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-hive/hivewatch/internal/api"
	"github.com/go-hive/hivewatch/internal/buildinfo"
	hivewatch "github.com/go-hive/hivewatch/internal/config"
	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/notify"
	"github.com/go-hive/hivewatch/internal/observability"
	"github.com/go-hive/hivewatch/internal/presenter"
	"github.com/go-hive/hivewatch/internal/server"
	"github.com/go-hive/hivewatch/internal/setup"
	"github.com/go-hive/hivewatch/internal/shutdown"
	"github.com/go-hive/hivewatch/internal/suppression"
	"github.com/go-hive/hivewatch/internal/surveillance"
	"github.com/go-hive/hivewatch/internal/watchlist"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const drainTimeout = 10 * time.Second

func main() {
	_, _ = fmt.Fprint(os.Stdout, buildinfo.Graffiti)
	_, _ = fmt.Fprintln(os.Stdout, buildinfo.Info.String())

	ctx, done := shutdown.New()
	logger := logging.FromContext(ctx)
	ctx = logging.WithLogger(ctx, logger)
	if err := run(ctx); err != nil {
		done()
		logger.Fatal(err)
	}

	defer done()
}

func run(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	config := hivewatch.Config{}
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer func() {
		if err := env.Close(logging.WithLogger(context.Background(), logger)); err != nil {
			logger.Errorf("closing environment: %v", err)
		}
	}()

	// Fetches and notifications outlive the signal context so the adapter can drain into them on shutdown.
	notifyCtx, stopNotify := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer stopNotify()

	sinks := notify.Multi{notify.Log{}}
	if m := env.MQTT(); m != nil {
		sinks = append(sinks, m)
	}
	var (
		webhooks   notify.Manager
		shutdownCh = make(chan error, 1)
	)
	if provideFn := env.ProvideNotifier(); provideFn != nil {
		webhooks, err = provideFn(shutdownCh)
		if err != nil {
			return fmt.Errorf("notifier provider function error: %w", err)
		}
		if err := webhooks.Run(notifyCtx); err != nil {
			return fmt.Errorf("webhooks.Run: %w", err)
		}
		sinks = append(sinks, webhooks)
	}

	store := suppression.New(ctx, env.Persister())
	engine, err := surveillance.New(notifyCtx, env.Fetcher(), store, surveillance.WithInterval(config.Surveillance.Interval))
	if err != nil {
		return fmt.Errorf("surveillance.New: %w", err)
	}
	adapter, err := presenter.New(notifyCtx, engine, store, sinks)
	if err != nil {
		return fmt.Errorf("presenter.New: %w", err)
	}

	metrics, err := observability.New(&config.Observability, surveillance.Views...)
	if err != nil {
		return fmt.Errorf("observability.New: %w", err)
	}
	defer metrics.Close()

	apiHandler, err := api.NewHandler(&config.API, adapter, metrics.Instrument)
	if err != nil {
		return fmt.Errorf("api.NewHandler: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)
	mux.Handle("/health", server.HandleHealth(env.HealthChecks()))
	mux.Handle("/metrics", metrics.Handler())

	if path := config.Watchlist.File; path != "" {
		entries, err := watchlist.Load(path)
		if err != nil {
			return fmt.Errorf("watchlist.Load: %w", err)
		}
		for _, e := range entries {
			if err := adapter.StartWatching(e.EntityID, e.Label); err != nil {
				return fmt.Errorf("watch %s: %w", e.EntityID, err)
			}
		}
		logger.Infof("watching %d hives from %s", len(entries), path)
	}

	httpSrv, err := server.New(config.SrvAddr)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	grpcListener, err := server.New(config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("server.New grpc: %w", err)
	}
	grpcSrv, health := server.NewGRPC()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("http listening on %s", httpSrv.Addr())
		return httpSrv.ServeHTTPHandler(gctx, mux)
	})
	g.Go(func() error {
		return grpcListener.ServeGRPC(gctx, grpcSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return nil
	})
	serveErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := adapter.Close(drainCtx); err != nil {
		logger.Errorf("closing adapter: %v", err)
	}
	if webhooks != nil {
		webhooks.Stop()
		if err := <-shutdownCh; err != nil {
			logger.Errorf("webhook shutdown: %v", err)
		}
	}
	return serveErr
}
