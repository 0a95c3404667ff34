// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the beacon daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/api"
	"github.com/JakeFAU/playback-beacon/internal/clock/system"
	"github.com/JakeFAU/playback-beacon/internal/config"
	"github.com/JakeFAU/playback-beacon/internal/delivery"
	"github.com/JakeFAU/playback-beacon/internal/delivery/sinks"
	"github.com/JakeFAU/playback-beacon/internal/id/uuid"
	"github.com/JakeFAU/playback-beacon/internal/metrics"
	"github.com/JakeFAU/playback-beacon/internal/policy/ratelimit"
	"github.com/JakeFAU/playback-beacon/internal/publisher/pubsub"
	"github.com/JakeFAU/playback-beacon/internal/session"
	"github.com/JakeFAU/playback-beacon/internal/storage/gcs"
	"github.com/JakeFAU/playback-beacon/internal/storage/local"
	"github.com/JakeFAU/playback-beacon/internal/storage/postgres"
	"github.com/JakeFAU/playback-beacon/internal/store"
)

// App holds the shared, long-lived services: the delivery hub, the session
// registry, the HTTP server and any external clients the sinks depend on.
type App struct {
	logger   *zap.Logger
	hub      *delivery.Hub
	sessions *session.Registry
	server   *api.Server

	closers []func(context.Context) error
}

// New builds every service described by cfg. Pub/Sub, Postgres and GCS sinks
// are only created when their section is configured. reg receives all
// collectors and backs /metrics.
func New(ctx context.Context, cfg config.Config, reg *prometheus.Registry, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a := &App{logger: logger}

	deliverySinks, history, err := a.buildSinks(ctx, cfg, reg)
	if err != nil {
		_ = a.closeAll(context.Background())
		return nil, err
	}

	a.hub = delivery.NewHub(delivery.Config{
		BufferSize:  cfg.Delivery.BufferSize,
		SinkTimeout: cfg.SinkTimeout(),
		Logger:      logger.Named("delivery"),
	}, deliverySinks...)
	// Flush the hub before external clients shut down.
	a.closers = append([]func(context.Context) error{a.hub.Close}, a.closers...)

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Session.EventsPerSecond,
		DefaultBurst: cfg.Session.EventBurst,
	})
	a.sessions = session.NewRegistry(session.Config{
		Provider:    cfg.ProviderKind(),
		MaxSessions: cfg.Session.MaxSessions,
		Defaults:    cfg.Tracker,
		IdleTimeout: cfg.SessionIdleTimeout(),
		OnRemove:    limiter.Forget,
	}, a.hub, system.New(), uuid.New(), logger.Named("session"))
	if idle := cfg.SessionIdleTimeout(); idle > 0 {
		janitorCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		go a.sessions.RunJanitor(janitorCtx, janitorInterval(idle))
		a.closers = append([]func(context.Context) error{func(context.Context) error {
			stop()
			return nil
		}}, a.closers...)
	}

	httpMetrics, err := metrics.NewHTTP(reg)
	if err != nil {
		_ = a.closeAll(context.Background())
		return nil, fmt.Errorf("http metrics: %w", err)
	}
	if err := metrics.RegisterSessionGauge(reg, a.sessions.Len); err != nil {
		_ = a.closeAll(context.Background())
		return nil, err
	}

	a.server = api.NewServer(a.sessions, history, cfg, reg, httpMetrics, limiter, logger.Named("api"))
	logger.Info("application services initialized",
		zap.String("provider", string(cfg.ProviderKind())),
		zap.Int("sinks", len(deliverySinks)),
	)
	return a, nil
}

// janitorInterval sweeps a few times per idle window, at most once a second.
func janitorInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func (a *App) buildSinks(ctx context.Context, cfg config.Config, reg prometheus.Registerer) ([]delivery.Sink, store.BeaconRepository, error) {
	var out []delivery.Sink
	var history store.BeaconRepository

	if cfg.Sinks.Log {
		out = append(out, sinks.NewLogSink(a.logger.Named("beacons")))
	}
	if cfg.Sinks.Prometheus {
		promSink, err := sinks.NewPrometheusSink(reg)
		if err != nil {
			return nil, nil, fmt.Errorf("prometheus sink: %w", err)
		}
		out = append(out, promSink)
	}

	if cfg.PubSub.TopicName != "" {
		client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		publisher := pubsub.New(client.Topic(cfg.PubSub.TopicName))
		a.closers = append(a.closers, func(context.Context) error {
			publisher.Stop()
			return client.Close()
		})
		out = append(out, sinks.NewPubSubSink(publisher, a.logger.Named("pubsub")))
		a.logger.Info("pubsub sink enabled", zap.String("topic", cfg.PubSub.TopicName))
	}

	if cfg.DB.DSN != "" {
		beaconStore, err := postgres.NewBeaconStore(ctx, postgres.BeaconStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("beacon store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			beaconStore.Close()
			return nil
		})
		history = beaconStore
		out = append(out, sinks.NewStoreSink(beaconStore))
		a.logger.Info("postgres sink enabled", zap.String("table", cfg.DB.Table))
	}

	if cfg.Archive.GCSBucket != "" {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("storage client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			return client.Close()
		})
		blobs, err := gcs.New(client, gcs.Config{
			Bucket:       cfg.Archive.GCSBucket,
			CacheControl: cfg.Archive.CacheControl,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("blob store: %w", err)
		}
		out = append(out, sinks.NewArchiveSink(blobs, cfg.Archive.Prefix))
		a.logger.Info("archive sink enabled", zap.String("bucket", cfg.Archive.GCSBucket))
	} else if cfg.Archive.Dir != "" {
		blobs, err := local.New(local.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return nil, nil, fmt.Errorf("local archive: %w", err)
		}
		out = append(out, sinks.NewArchiveSink(blobs, cfg.Archive.Prefix))
		a.logger.Info("archive sink enabled", zap.String("dir", cfg.Archive.Dir))
	}

	return out, history, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Sessions exposes the session registry.
func (a *App) Sessions() *session.Registry {
	return a.sessions
}

// Hub exposes the delivery hub.
func (a *App) Hub() *delivery.Hub {
	return a.hub
}

// Close flushes pending beacons and then releases external clients.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	return a.closeAll(ctx)
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
