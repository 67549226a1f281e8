// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"prospect-service/internal/config"
	"prospect-service/internal/db"
	authHandler "prospect-service/internal/handlers/auth"
	prospectHandler "prospect-service/internal/handlers/prospect"
	staffHandler "prospect-service/internal/handlers/staff"
	wsHandler "prospect-service/internal/handlers/websocket"
	"prospect-service/internal/middleware"
	"prospect-service/internal/pkg/cache"
	"prospect-service/internal/pkg/jwt"
	"prospect-service/internal/pkg/session"
	"prospect-service/internal/realtime"
	"prospect-service/internal/repository/postgres"
	assignmentUsecase "prospect-service/internal/service/assignment"
	attentionUsecase "prospect-service/internal/service/attention"
	authUsecase "prospect-service/internal/service/auth"
	backupUsecase "prospect-service/internal/service/backup"
	permissionsUsecase "prospect-service/internal/service/permissions"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	cancel context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addresses: []string{s.cfg.RedisAddr},
		Password:  s.cfg.RedisPass,
		DB:        0,
		PoolSize:  10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Repositories -----
	userRepo := postgres.NewUserRepository(pool)
	staffRepo := postgres.NewStaffRepository(pool)
	unitRepo := postgres.NewCoordinationUnitRepository(pool)
	prospectRepo := postgres.NewProspectRepository(pool)
	auditRepo := postgres.NewAssignmentAuditRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)

	// ----- Services (Usecases) -----
	authService := authUsecase.NewAuthService(userRepo, jwtManager, sessionManager, rateLimiter, logger)
	resolver := permissionsUsecase.NewResolver(userRepo, staffRepo, prospectRepo, cache.SystemClock{}, logger)
	engine := assignmentUsecase.NewEngine(prospectRepo, staffRepo, unitRepo, auditRepo, resolver, logger)
	backupManager := backupUsecase.NewManager(staffRepo, logger)

	// ----- Realtime -----
	hub := realtime.NewHub(jwtManager.Verifier, sessionManager, logger)

	attentionService := attentionUsecase.NewService(
		resolver,
		messageRepo,
		prospectRepo,
		userRepo,
		backupManager,
		hub,
		logger,
	)
	hub.SetAttention(attentionService)

	feed := realtime.NewFeed(pool, s.cfg.FeedChannel, attentionService, logger)

	go hub.Run(ctx)
	go feed.Run(ctx)

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService)
	prospectHandlerInst := prospectHandler.NewProspectHandler(resolver, engine, attentionService, prospectRepo, auditRepo)
	staffHandlerInst := staffHandler.NewStaffHandler(backupManager, staffRepo, unitRepo)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
		middleware.MetricsMiddleware(s.cfg.ServiceName),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:     authHandlerInst,
		ProspectHandler: prospectHandlerInst,
		StaffHandler:    staffHandlerInst,
		WSHandler:       wsHandlerInst,
		AuthMiddleware:  authMiddleware,
	}
	SetupRouter(s.engine, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops the hub and the change feed.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}
