package app

import (
	"classtutor_backend/internal/config"
	"classtutor_backend/internal/controller"
	"classtutor_backend/internal/repository"
	"classtutor_backend/internal/service"
	"classtutor_backend/pkg/database"
	"classtutor_backend/pkg/logger"
	"classtutor_backend/pkg/monitoring"
	"classtutor_backend/pkg/security"
	"classtutor_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	assignment *repository.AssignmentRepository
	question   *repository.QuestionRepository
	chat       *repository.ChatRepository
}

type services struct {
	storage    service.FileFetcher
	ai         *service.AIService
	pipeline   *service.PipelineService
	assignment *service.AssignmentService
	rateLimit  *service.RateLimitService
	chat       *service.ChatService
}

type controllers struct {
	assignment *controller.AssignmentController
	chat       *controller.ChatController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		assignment: repository.NewAssignmentRepository(db),
		question:   repository.NewQuestionRepository(db),
		chat:       repository.NewChatRepository(db, rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	storage, err := service.NewStorageProvider(&cfg.Storage)
	if err != nil {
		logger.L().Fatal("Failed to initialize storage provider", zap.Error(err))
	}
	s.storage = storage

	s.ai = service.NewAIService(cfg.AI)
	s.pipeline = service.NewPipelineService(repos.assignment, repos.question, s.storage, s.ai, cfg.Pipeline)
	s.assignment = service.NewAssignmentService(repos.assignment, repos.question)
	s.rateLimit = service.NewRateLimitService(repos.chat, cfg.ChatLimit)
	s.chat = service.NewChatService(repos.chat, repos.question, s.ai, s.rateLimit, service.RetryPolicy{
		MaxAttempts: cfg.Pipeline.RetryAttempts,
		BaseDelay:   cfg.Pipeline.RetryBaseDelay,
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		assignment: controller.NewAssignmentController(s.pipeline, s.assignment),
		chat:       controller.NewChatController(s.chat),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// ReloadConfig 配置热重载回调，目前只有聊天限额支持运行时调整
func (a *App) ReloadConfig(cfg *config.Config) {
	a.services.rateLimit.UpdateLimits(cfg.ChatLimit)
	logger.L().Info("chat limits reloaded",
		zap.Int("perMinute", cfg.ChatLimit.PerMinute),
		zap.Int("perDay", cfg.ChatLimit.PerDay))
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.L().Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.L().Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 不可用时限流走数据库兜底，不阻断启动
		logger.L().Warn("Redis unavailable, rate limit cache disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("classtutor-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.L().Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
