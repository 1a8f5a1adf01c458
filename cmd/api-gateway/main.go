package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/kelas-bersih-api/api/swagger"
	"github.com/noah-isme/kelas-bersih-api/internal/handler"
	"github.com/noah-isme/kelas-bersih-api/internal/middleware"
	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	"github.com/noah-isme/kelas-bersih-api/internal/service"
	"github.com/noah-isme/kelas-bersih-api/pkg/cache"
	"github.com/noah-isme/kelas-bersih-api/pkg/config"
	"github.com/noah-isme/kelas-bersih-api/pkg/database"
	"github.com/noah-isme/kelas-bersih-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/kelas-bersih-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/kelas-bersih-api/pkg/middleware/requestid"
	"github.com/noah-isme/kelas-bersih-api/pkg/storage"
)

// @title Kelas Bersih API
// @version 0.1.0
// @description Classroom cleaning gamification backend
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	photoStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init photo storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "kelas-bersih-api",
	})
	classService := service.NewClassService(classRepo, groupRepo, validate, logr)
	groupService := service.NewGroupService(groupRepo, classRepo, userRepo, validate, logr)
	taskService := service.NewTaskService(taskRepo, classRepo, validate, logr)
	submissionService := service.NewSubmissionService(submissionRepo, taskRepo, groupRepo, classRepo, photoStorage, signer, logr, service.SubmissionServiceConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})
	reviewService := service.NewReviewService(submissionRepo, pointsRepo, taskRepo, classRepo, cacheRepo, validate, logr)
	badgeService := service.NewBadgeService(badgeRepo, groupRepo, classRepo, validate, logr)
	leaderboardService := service.NewLeaderboardService(pointsRepo, cacheRepo, logr, service.LeaderboardServiceConfig{
		CacheEnabled: cfg.Leaderboard.CacheEnabled && redisClient != nil,
		CacheTTL:     cfg.Leaderboard.CacheTTL,
	})
	attendanceService := service.NewAttendanceService(attendanceRepo, userRepo, validate, logr)

	var metricsService *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsService = service.NewMetricsService()
	}

	authHandler := handler.NewAuthHandler(authService)
	classHandler := handler.NewClassHandler(classService)
	groupHandler := handler.NewGroupHandler(groupService)
	taskHandler := handler.NewTaskHandler(taskService)
	submissionHandler := handler.NewSubmissionHandler(submissionService, reviewService, metricsService)
	badgeHandler := handler.NewBadgeHandler(badgeService)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		protected.POST("/classes", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), classHandler.Create)
		protected.GET("/classes", classHandler.List)
		protected.GET("/classes/:classId", classHandler.Get)
		protected.POST("/classes/join", middleware.RequireRoles(models.RoleStudent), classHandler.Join)

		protected.POST("/classes/:classId/groups", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), groupHandler.Create)
		protected.GET("/classes/:classId/groups", groupHandler.ListByClass)
		protected.GET("/groups/:id/members", groupHandler.ListMembers)
		protected.POST("/groups/:id/members", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), groupHandler.AddMember)
		protected.POST("/groups/:id/transfer", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), groupHandler.Transfer)
		protected.DELETE("/groups/:id/members/:studentId", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), groupHandler.RemoveMember)

		protected.POST("/classes/:classId/tasks", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), taskHandler.Create)
		protected.GET("/classes/:classId/tasks", taskHandler.ListByClass)
		protected.GET("/tasks/:id", taskHandler.Get)
		protected.PUT("/tasks/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), taskHandler.Update)
		protected.DELETE("/tasks/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), taskHandler.Delete)

		protected.POST("/submissions", middleware.RequireRoles(models.RoleStudent), submissionHandler.Submit)
		protected.GET("/submissions", submissionHandler.List)
		protected.GET("/submissions/:id", submissionHandler.Get)
		protected.POST("/submissions/:id/decision", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), submissionHandler.Decide)
		protected.GET("/submissions/:id/photo-url", submissionHandler.PhotoURL)

		protected.GET("/badges", badgeHandler.Catalog)
		protected.POST("/groups/:id/badges", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), badgeHandler.Award)
		protected.GET("/groups/:id/badges", badgeHandler.ListByGroup)

		protected.GET("/classes/:classId/leaderboard", leaderboardHandler.Get)
		protected.GET("/classes/:classId/leaderboard/export/csv", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), leaderboardHandler.ExportCSV)
		protected.GET("/classes/:classId/leaderboard/export/pdf", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), leaderboardHandler.ExportPDF)

		protected.POST("/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.Mark)
		protected.GET("/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.ListByDate)
		protected.GET("/attendance/students/:studentId", attendanceHandler.ListByStudent)

		if cfg.Metrics.Enabled {
			protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)
		}
	}

	// The photo download authenticates with the signed token, so the JWT is
	// optional here.
	api.GET("/submissions/:id/photo", middleware.OptionalJWT(authService), submissionHandler.Photo)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
