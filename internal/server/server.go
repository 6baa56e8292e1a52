package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"docchat/internal/agent"
	"docchat/internal/agent/component"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/handler"
	authHandler "docchat/internal/handler/auth"
	"docchat/internal/pkg/cache"
	"docchat/internal/pkg/jwt"
	"docchat/internal/pkg/mongodb"
	"docchat/internal/pkg/storagefactory"
	"docchat/internal/repository"
	authRepo "docchat/internal/repository/auth"
	"docchat/internal/server/middleware"
	"docchat/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 初始化 MongoDB
	var mongoClient *mongodb.Client
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without it")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
		}
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	if err := srv.setupRoutes(); err != nil {
		return nil, err
	}

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() error {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if s.mongo == nil {
		log.Warn().Msg("MongoDB not configured, API endpoints disabled")
		return nil
	}

	// 文档文件存储
	store, err := storagefactory.NewStorage(context.Background(), &s.cfg.Storage)
	if err != nil {
		return err
	}
	log.Info().Str("type", store.GetStorageType()).Msg("initialized document storage")

	// ChatModel (可选，未配置 API Key 时智能体走降级路径)
	var chatModel einomodel.BaseChatModel
	if s.cfg.AI.APIKey != "" {
		cm, err := component.NewChatModel(context.Background(), &s.cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize chat model, continuing without it")
		} else {
			chatModel = cm
			log.Info().Str("provider", s.cfg.AI.Provider).Str("model", s.cfg.AI.Model).Msg("initialized chat model")
		}
	}

	// 仓库
	convRepo := repository.NewConversationRepo(s.mongo.Database())
	memoryRepo := repository.NewMemoryRepo(s.mongo.Database())
	dbRepo := repository.NewDocumentDBRepo(s.mongo.Database(), s.redis)
	docRepo := repository.NewDocumentRepo(s.mongo.Database())
	userRepo := authRepo.NewUserRepo(s.mongo.Database())

	// 每个会话一对互相链接的智能体
	chatManager := chat.NewManager(convRepo, memoryRepo, dbRepo, store, func() (chat.Conversationalist, chat.CorpusRetriever) {
		cag := agent.NewCAGAgent(chatModel, docRepo)
		conversational := agent.NewConversationalAgent(chatModel, memoryRepo)
		conversational.SetRetriever(cag)
		return conversational, cag
	})

	// 语义分析智能体 (可选)
	var semantic *agent.SemanticAgent
	if chatModel != nil {
		semantic = agent.NewSemanticAgent(chatModel)
	}
	docService := service.NewDocumentService(dbRepo, docRepo, store, semantic)

	// JWT 配置兜底
	jwtSecret := s.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := s.cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	authSvc := service.NewAuthService(userRepo, jwtSecret, accessTokenExpiry)
	jwtUtil := jwt.NewJWT(jwtSecret, accessTokenExpiry)

	chatHdl := handler.NewChatHandler(chatManager)
	databaseHdl := handler.NewDatabaseHandler(docService)
	documentHdl := handler.NewDocumentHandler(docService)
	authHdl := authHandler.NewHandler(authSvc)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 认证接口（公开）
		v1.POST("/auth/register", authHdl.Register)
		v1.POST("/auth/login", authHdl.Login)
		v1.GET("/auth/me", middleware.Auth(jwtUtil), authHdl.GetMe)

		// 会话接口
		v1.POST("/sessions", chatHdl.CreateSession)
		sessions := v1.Group("/sessions/:sid")
		{
			sessions.GET("/view", chatHdl.View)
			sessions.POST("/messages", chatHdl.Submit)
			sessions.POST("/conversations", chatHdl.NewConversation)
			sessions.PUT("/conversations/:convID", chatHdl.SwitchConversation)
			sessions.DELETE("/conversations/:convID", chatHdl.DeleteConversation)
			sessions.PUT("/database", chatHdl.SwitchDatabase)
		}

		// 文档库与文档接口
		v1.GET("/databases", databaseHdl.List)
		v1.POST("/databases", databaseHdl.Create)
		v1.DELETE("/databases/:name", databaseHdl.Delete)
		v1.GET("/databases/:name/documents", documentHdl.List)
		v1.POST("/databases/:name/documents", documentHdl.Upload)
		v1.DELETE("/databases/:name/documents/:id", documentHdl.Delete)
		v1.GET("/databases/:name/files/:filename", documentHdl.Download)
	}

	return nil
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
