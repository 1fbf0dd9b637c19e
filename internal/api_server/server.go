package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/config"
	handlers "github.com/clubops/querycsv/internal/handlers/v1"
	"github.com/clubops/querycsv/internal/jobs"
	"github.com/clubops/querycsv/internal/notify"
	"github.com/clubops/querycsv/internal/registry"
	"github.com/clubops/querycsv/internal/service"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	queueStopTimeout        = 30 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	registry *registry.Registry
	listener net.Listener
}

// New returns a new instance of the querycsv API server.
func New(
	cfg *config.Config,
	store store.Store,
	registry *registry.Registry,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("api_server")
	logger.Info("Initializing API server")

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	notifier := notify.NewFromConfig(s.cfg)
	processor := jobs.NewProcessor(s.store, s.registry, notifier, s.cfg.Service.DataDir)

	queue, err := s.initQueue(ctx, processor)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), queueStopTimeout)
		defer cancel()
		if err := queue.Close(stopCtx); err != nil {
			logger.Warnw("failed to stop job queue", "error", err)
		}
	}()

	reaper, err := jobs.NewReaper(s.store, queue, s.cfg)
	if err != nil {
		return fmt.Errorf("failed to create reaper: %w", err)
	}
	go reaper.Run(ctx)

	uploadSrv := service.NewUploadService(s.store, s.registry, queue, s.cfg.Service.DataDir)
	collectionSrv := service.NewCollectionService(s.registry)

	h := handlers.NewHandler(uploadSrv, collectionSrv)
	h.Routes(router)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("api server terminated")
	}()

	logger.Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

// initQueue starts the river queue on postgres; other databases fall back
// to the in-process queue.
func (s *Server) initQueue(ctx context.Context, processor *jobs.Processor) (jobs.Queue, error) {
	logger := zap.S().Named("api_server")

	if s.cfg.Database.Type != "pgsql" {
		logger.Info("using in-process job queue")
		return jobs.NewInProcessQueue(processor), nil
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d dbname=%s",
		s.cfg.Database.Hostname,
		s.cfg.Database.User,
		s.cfg.Database.Password,
		s.cfg.Database.Port,
		s.cfg.Database.Name,
	)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	client, err := jobs.NewClient(ctx, pool, processor, s.cfg.Jobs.Workers)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to start river: %w", err)
	}

	logger.Info("River job queue initialized")
	return client, nil
}
