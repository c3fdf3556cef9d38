package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gmelo/transferapi/internal/db"
	"github.com/gmelo/transferapi/internal/handlers"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/repository/postgres"
	"github.com/gmelo/transferapi/internal/service/bacen"
	"github.com/gmelo/transferapi/internal/service/bacenretry"
	"github.com/gmelo/transferapi/internal/service/balance"
	"github.com/gmelo/transferapi/internal/service/registry"
	"github.com/gmelo/transferapi/internal/service/transfer"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	retryProcessor *bacenretry.Processor
	logger         logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	registryClient := registry.NewClient(c.RegistryAddr, c.ClientCacheTTL, log)
	bacenClient := bacen.NewClient(c.BacenAddr, c.BacenRatePerSecond, log)

	transferService := transfer.NewService(storage, registryClient, bacenClient, log)
	balanceService := balance.NewService(storage, registryClient, c.BalanceCacheTTL, log)

	mux := handlers.NewRouter(transferService, balanceService, pool, log)

	return &ServerApp{
		ListenAddr:     c.ListenAddr,
		Handler:        mux,
		retryProcessor: bacenretry.New(bacenClient, storage.Transfer(), log),
		logger:         log,
	}, nil
}

// Run starts the BACEN retry processor and the http server, then closes both
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	processorStopped := s.retryProcessor.Process(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-processorStopped

	return err
}
