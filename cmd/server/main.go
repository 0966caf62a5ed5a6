package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"

	"bizreg/internal/attachment"
	"bizreg/internal/audit"
	authhandler "bizreg/internal/auth/handler"
	"bizreg/internal/auth/idempotency"
	"bizreg/internal/auth/revocation"
	authservice "bizreg/internal/auth/service"
	"bizreg/internal/auth/token"
	drafthandler "bizreg/internal/draft/handler"
	draftmetrics "bizreg/internal/draft/metrics"
	draftservice "bizreg/internal/draft/service"
	draftstore "bizreg/internal/draft/store"
	"bizreg/internal/objectstore"
	"bizreg/internal/platform/config"
	"bizreg/internal/platform/health"
	"bizreg/internal/platform/httpserver"
	"bizreg/internal/platform/logger"
	"bizreg/internal/platform/metrics"
	"bizreg/internal/platform/middleware"
	"bizreg/internal/platform/postgres"
	platformredis "bizreg/internal/platform/redis"
)

const (
	shutdownTimeout = 15 * time.Second
	auditQueueSize  = 1024
)

// main wires dependencies and keeps the server lifecycle small. Business logic
// lives in internal service packages.
func main() {
	configFile := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	db    *sql.DB
	redis *platformredis.Client
	kafka *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	auditSink, err := newAuditSink(ctx, cfg, deps, log)
	if err != nil {
		return err
	}
	auditPublisher := audit.NewPublisher(auditSink, audit.WithQueue(auditQueueSize), audit.WithLogger(log))
	auditWorker := audit.NewWorker(auditSink, auditPublisher.Inbox(), log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = auditWorker.Run(ctx)
	}()

	objects, err := newObjectStore(cfg)
	if err != nil {
		return err
	}
	files := attachment.NewManager(objects,
		attachment.WithMaxSize(cfg.Draft.MaxUploadBytes),
		attachment.WithLogger(log),
		attachment.WithMetrics(attachment.NewMetrics(registry)),
	)

	drafts, err := newDraftService(ctx, cfg, deps, files, auditPublisher, registry, log)
	if err != nil {
		return err
	}

	tokens := token.New(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	auth, err := authservice.New(tokens, newRevocationList(deps),
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	router := newRouter(cfg, log, registry, routes{
		drafts: drafthandler.New(drafts, log,
			drafthandler.WithIdempotency(newIdempotencyStore(cfg, deps)),
			drafthandler.WithMaxFileSize(cfg.Draft.MaxUploadBytes),
			drafthandler.WithMaxBody(cfg.Draft.MaxRequestBytes),
		),
		auth:    authhandler.New(auth, log),
		files:   objectstore.NewHandler(objects, log),
		health:  newHealth(deps),
		authMw:  middleware.RequireAuth(auth, log),
		devAuth: cfg.Auth.DevAuth,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting bizreg", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	stop()
	<-workerDone
	return nil
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	deps.db = db

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.redis = client

	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.ClientID("bizreg"),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		)
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("kafka client: %w", err)
		}
		deps.kafka = kc
	}

	log.Info("dependencies connected",
		"postgres", deps.db != nil,
		"redis", deps.redis != nil,
		"kafka", deps.kafka != nil,
	)
	return deps, nil
}

func newAuditSink(ctx context.Context, cfg config.Config, deps *infra, log *slog.Logger) (audit.Sink, error) {
	if deps.kafka == nil {
		return audit.NewLogSink(log), nil
	}
	if err := audit.EnsureTopic(ctx, deps.kafka, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
		return nil, err
	}
	return audit.NewKafkaSink(deps.kafka, cfg.Kafka.Topic), nil
}

type objectStore interface {
	attachment.ObjectStore
	objectstore.Reader
}

func newObjectStore(cfg config.Config) (objectStore, error) {
	if cfg.Storage.Dir == "" {
		return objectstore.NewInMemory(cfg.Storage.PublicBaseURL), nil
	}
	files, err := objectstore.NewFileStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	return files, nil
}

func newDraftService(
	ctx context.Context,
	cfg config.Config,
	deps *infra,
	files *attachment.Manager,
	publisher *audit.Publisher,
	registry prometheus.Registerer,
	log *slog.Logger,
) (*draftservice.Service, error) {
	var (
		st draftstore.Store
		tx draftstore.TxRunner
	)
	if deps.db != nil {
		if err := draftstore.Migrate(ctx, deps.db); err != nil {
			return nil, fmt.Errorf("migrate draft schema: %w", err)
		}
		st = draftstore.NewPostgres(deps.db)
		tx = newDraftPostgresTx(deps.db)
	} else {
		mem := draftstore.NewInMemoryStore()
		st, tx = mem, mem
	}
	return draftservice.New(st, tx, files,
		draftservice.WithLogger(log),
		draftservice.WithAuditPublisher(publisher),
		draftservice.WithMetrics(draftmetrics.New(registry)),
		draftservice.WithTracer(otel.Tracer("bizreg/draft")),
		draftservice.WithTxTimeout(cfg.Draft.TxTimeout),
		draftservice.WithUploadConcurrency(cfg.Draft.UploadConcurrency),
	)
}

func newRevocationList(deps *infra) authservice.RevocationList {
	if deps.redis != nil {
		return revocation.NewRedis(deps.redis.Client)
	}
	return revocation.NewInMemory()
}

func newIdempotencyStore(cfg config.Config, deps *infra) drafthandler.IdempotencyStore {
	if deps.redis != nil {
		return idempotency.NewRedis(deps.redis.Client, cfg.Draft.IdempotencyTTL)
	}
	return idempotency.NewInMemory(idempotency.WithMemoryTTL(cfg.Draft.IdempotencyTTL))
}

func newHealth(deps *infra) *health.Handler {
	h := health.NewHandler()
	if deps.db != nil {
		h.Add("postgres", deps.db.PingContext)
	}
	if deps.redis != nil {
		h.Add("redis", deps.redis.Health)
	}
	if deps.kafka != nil {
		h.Add("kafka", deps.kafka.Ping)
	}
	return h
}

type routes struct {
	drafts  *drafthandler.Handler
	auth    *authhandler.Handler
	files   *objectstore.Handler
	health  *health.Handler
	authMw  func(http.Handler) http.Handler
	devAuth bool
}

func newRouter(cfg config.Config, log *slog.Logger, registry *prometheus.Registry, rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(metrics.New(registry)))

	rt.health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	rt.files.Register(r)
	if rt.devAuth {
		log.Warn("development token issuance enabled")
		rt.auth.RegisterDev(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		r.Use(rt.authMw)
		rt.drafts.Register(r)
		rt.auth.Register(r)
	})
	return r
}
