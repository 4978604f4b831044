package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/plincohq/onboarding-service/internal/config"
	"github.com/plincohq/onboarding-service/internal/handler"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// Server represents the onboarding service
type Server struct {
	config         config.Config
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer wires the router and all services
func NewServer(cfg config.Config) (*Server, error) {
	router := mux.NewRouter()

	// Handler manager creates all services internally
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		return nil, err
	}
	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.handlerManager.StartSessionCleanupSubscriber(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("starting server", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Base().Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Base().Warn("graceful shutdown failed", zap.Error(err))
	}

	s.handlerManager.Shutdown()
	return nil
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("failed to initialize zap logger, falling back to std log")
	}
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Base().Fatal("invalid configuration", zap.Error(err))
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Base().Fatal("failed to initialize server", zap.Error(err))
	}

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		logger.Base().Fatal("server exited", zap.Error(err))
	}
}
