package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/plincohq/onboarding-service/internal/adapters/googleauth"
	"github.com/plincohq/onboarding-service/internal/adapters/identity"
	"github.com/plincohq/onboarding-service/internal/adapters/vapi"
	"github.com/plincohq/onboarding-service/internal/config"
	"github.com/plincohq/onboarding-service/internal/core/event"
	"github.com/plincohq/onboarding-service/internal/core/session"
	"github.com/plincohq/onboarding-service/internal/notify"
	"github.com/plincohq/onboarding-service/internal/repository"
	"github.com/plincohq/onboarding-service/internal/services/googlelink"
	"github.com/plincohq/onboarding-service/internal/services/onboarding"
	"github.com/plincohq/onboarding-service/internal/services/project"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"github.com/plincohq/onboarding-service/pkg/redis"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config      config.Config
	repoManager repository.RepositoryManager
	bus         event.Bus
	notifier    *notify.Service

	linkService       *googlelink.Service
	onboardingService *onboarding.Service
	projectService    *project.Service

	sessionManager *session.Manager
	callHandler    *CallHandler
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg config.Config) (*HandlerManager, error) {
	// Initialize database connection
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Initialize Redis for the shared session registry
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}
	redisConfig := &redis.RedisConfig{
		Host:     redisHost,
		Port:     redisPort,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}
	redisSvc, err := redis.NewRedisService(redisConfig)
	if err != nil {
		logger.Base().Warn("failed to initialize redis service, running without session registry", zap.Error(err))
	}

	var sessionManager *session.Manager
	if redisSvc != nil {
		sessionManager = session.NewManager(redisSvc, cfg.PodID)
		logger.Base().Info("session registry initialized", zap.String("pod_id", cfg.PodID))
	}

	bus := event.NewBus()
	subscribeTelemetry(bus)
	notifier := notify.NewService()

	identityClient := identity.NewClient(cfg.IdentityAPIURL, cfg.IdentitySecretKey)
	tokenInspector := googleauth.NewClient(cfg.GoogleTokenInfoURL)

	linkService := googlelink.NewService(identityClient, tokenInspector, notifier)
	onboardingService := onboarding.NewService(repoManager.User(), notifier)
	projectService := project.NewService(repoManager.User(), repoManager.Project())

	callHandler := NewCallHandler(
		repoManager.User(),
		notifier,
		bus,
		sessionManager,
		cfg.VapiPublicKey,
		cfg.VapiAssistantID,
		vapi.Factory(cfg.VapiBaseURL),
	)

	return &HandlerManager{
		config:            cfg,
		repoManager:       repoManager,
		bus:               bus,
		notifier:          notifier,
		linkService:       linkService,
		onboardingService: onboardingService,
		projectService:    projectService,
		sessionManager:    sessionManager,
		callHandler:       callHandler,
	}, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	// Apply global middleware
	router.Use(CORSMiddleware)
	router.Use(LoggingMiddleware)

	router.HandleFunc("/health", hm.handleHealth).Methods("GET")

	// Webhook routes carry no session token; the tool-call route is rate
	// limited because the assistant can invoke it in a tight loop.
	toolCallHandler := NewToolCallHandler(hm.projectService)
	toolCallLimiter := rate.NewLimiter(rate.Limit(10), 20)
	router.Handle("/api/vapi/project",
		RateLimitMiddleware(toolCallLimiter)(http.HandlerFunc(toolCallHandler.HandleToolCall))).
		Methods("POST", "OPTIONS")

	// Authenticated API subrouter
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(ValidationMiddleware)
	apiRouter.Use(SessionAuthMiddleware(hm.config.JWTSecret))

	userHandler := NewUserHandler(hm.repoManager.User(), hm.onboardingService, hm.linkService, hm.config.IdentityWebhookSecret)
	userHandler.SetupUserRoutes(router, apiRouter)

	googleHandler := NewGoogleHandler(hm.linkService, hm.onboardingService, hm.config.GoogleRedirectURL)
	googleHandler.SetupGoogleRoutes(apiRouter)

	projectHandler := NewProjectHandler(hm.projectService)
	projectHandler.SetupProjectRoutes(apiRouter)

	hm.callHandler.SetupCallRoutes(apiRouter)

	router.PathPrefix("/api/").HandlerFunc(handleCORS).Methods("OPTIONS")

	logger.Base().Info("all application routes registered")
}

// StartSessionCleanupSubscriber listens for cleanup broadcasts from other
// pods so a session registered here is dropped when any pod ends it.
func (hm *HandlerManager) StartSessionCleanupSubscriber(ctx context.Context) {
	if hm.sessionManager == nil {
		return
	}
	err := hm.sessionManager.SubscribeToCleanup(ctx, func(sessionID string) {
		logger.Base().Info("cleanup broadcast received", zap.String("session_id", sessionID))
	})
	if err != nil {
		logger.Base().Warn("failed to subscribe to session cleanup", zap.Error(err))
	}
}

// Shutdown tears down engines, the event bus and the database connection.
func (hm *HandlerManager) Shutdown() {
	hm.callHandler.Shutdown()
	hm.linkService.Dispose()
	if err := hm.bus.Close(); err != nil {
		logger.Base().Warn("failed to close event bus", zap.Error(err))
	}
	if err := hm.repoManager.Close(); err != nil {
		logger.Base().Warn("failed to close database connection", zap.Error(err))
	}
}

func (hm *HandlerManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"events": hm.bus.GetStats(),
	})
}
