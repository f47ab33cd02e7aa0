package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/epathshala/portal-api/api/swagger"
	"github.com/epathshala/portal-api/internal/handler"
	"github.com/epathshala/portal-api/internal/middleware"
	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/realtime"
	"github.com/epathshala/portal-api/internal/repository"
	"github.com/epathshala/portal-api/internal/service"
	"github.com/epathshala/portal-api/pkg/cache"
	"github.com/epathshala/portal-api/pkg/config"
	"github.com/epathshala/portal-api/pkg/database"
	"github.com/epathshala/portal-api/pkg/jobs"
	"github.com/epathshala/portal-api/pkg/logger"
	corsmiddleware "github.com/epathshala/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/epathshala/portal-api/pkg/middleware/requestid"
)

// @title ePathshala Portal API
// @version 1.0.0
// @description Role based school portal: authentication, navigation shell, notifications and realtime chat.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()

	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	layoutRepo := repository.NewLayoutPreferenceRepository(db)
	chatRepo := repository.NewChatRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Notifications.CacheTTL, logr, cfg.Notifications.CacheEnabled && redisClient != nil)

	dispatch := jobs.NewMux()
	queue := jobs.NewQueue("notifications", dispatch.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Notifications.DispatchWorkers,
		BufferSize: cfg.Notifications.DispatchBuffer,
		MaxRetries: cfg.Notifications.DispatchRetries,
		RetryDelay: cfg.Notifications.DispatchRetryGap,
		Logger:     logr,
		OnOutcome: func(job jobs.Job, err error) {
			metricsSvc.RecordDispatch(job.Type, err)
		},
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ExpiringSoonWindow: cfg.JWT.ExpiringSoon,
		OTPExpiry:          cfg.JWT.OTPExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
		CheckSession:       cfg.JWT.CheckSession,
	}).WithOTPSender(service.LogOTPSender{Logger: logr})

	layoutSvc := service.NewLayoutPreferenceService(layoutRepo, cacheSvc, cfg.Navigation.CacheTTL, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, cacheSvc, queue, validate, logr, service.NotificationConfig{
		AnnouncementTTL: cfg.Notifications.AnnouncementTTL,
		UnreadCacheTTL:  cfg.Notifications.CacheTTL,
	})
	navigationSvc := service.NewNavigationService(models.UserRole(cfg.Navigation.DefaultRole), layoutSvc, notificationSvc, logr)
	routeSvc := service.NewRouteService(metricsSvc, logr)
	chatSvc := service.NewChatService(chatRepo, notificationSvc, validate, logr, cfg.Realtime.HistoryLimit)
	exportSvc := service.NewExportService(authSvc, logr)
	userSvc := service.NewUserService(userRepo, notificationSvc, cacheSvc, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, notificationSvc, validate, logr)

	broker := realtime.NewBroker(realtime.Config{
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	}, authSvc, metricsSvc, logr)
	realtime.RegisterChatHandlers(broker, chatSvc)
	service.RegisterPushHandlers(dispatch, broker)

	queue.Start(ctx)

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(authSvc, exportSvc)
	navigationHandler := handler.NewNavigationHandler(navigationSvc)
	layoutHandler := handler.NewLayoutHandler(layoutSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	routeHandler := handler.NewRouteHandler(routeSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	userHandler := handler.NewUserHandler(userSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	pageHandler := handler.NewPageHandler(navigationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, cfg.Log.SkipPaths...))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authenticated := middleware.JWT(authSvc)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(userRepo, logr, action, resource)
	}

	auth := api.Group("/auth")
	{
		auth.GET("/status", authHandler.Status)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/verify-otp", authHandler.VerifyOTP)

		secured := auth.Group("")
		secured.Use(authenticated)
		secured.POST("/logout", authHandler.Logout)
		secured.POST("/change-password", authHandler.ChangePassword)
		secured.GET("/me", authHandler.Me)
		secured.GET("/token-status", authHandler.TokenStatus)
		secured.GET("/session/:id", sessionHandler.Get)

		admin := secured.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		admin.GET("/sessions", sessionHandler.List)
		admin.GET("/sessions/export", audit(models.AuditActionSessionExport, "sessions"), sessionHandler.Export)
	}

	users := api.Group("/admin/users")
	users.Use(authenticated, middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Deactivate)
	}

	api.GET("/users/:id", authenticated, middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), userHandler.Get)

	events := api.Group("/events")
	events.Use(middleware.OptionalJWT(authSvc))
	{
		events.GET("", calendarHandler.List)
		events.GET("/:id", calendarHandler.Get)
	}

	adminEvents := api.Group("/admin/events")
	adminEvents.Use(authenticated, middleware.RequireRoles(models.RoleAdmin), audit(models.AuditActionEventWrite, "calendar_events"))
	{
		adminEvents.POST("", calendarHandler.Create)
		adminEvents.PUT("/:id", calendarHandler.Update)
		adminEvents.DELETE("/:id", calendarHandler.Delete)
	}

	system := api.Group("/system")
	system.Use(authenticated, middleware.RequireRoles(models.RoleAdmin))
	system.GET("/metrics", metricsHandler.Snapshot)

	navigation := api.Group("/navigation")
	navigation.Use(authenticated)
	{
		navigation.GET("/menu", navigationHandler.Menu)
		navigation.GET("/shell", navigationHandler.Shell)
		navigation.GET("/shell.html", navigationHandler.ShellHTML)
	}

	layout := api.Group("/layout/preferences")
	layout.Use(authenticated)
	{
		layout.GET("", layoutHandler.List)
		layout.GET("/:variant", layoutHandler.Get)
		layout.PUT("/:variant", audit(models.AuditActionLayoutUpdate, "layout_preferences"), layoutHandler.Put)
		layout.POST("/:variant/toggle", audit(models.AuditActionLayoutUpdate, "layout_preferences"), layoutHandler.Toggle)
	}

	notifications := api.Group("/notifications")
	notifications.Use(authenticated)
	{
		notifications.GET("/user", notificationHandler.List)
		notifications.GET("/user/unread/count", notificationHandler.UnreadCount)
		notifications.GET("/user/summary", notificationHandler.Summary)
		notifications.POST("/mark-read/:id", notificationHandler.MarkRead)
		notifications.POST("/mark-all-read", notificationHandler.MarkAllRead)
		notifications.GET("/announcements", notificationHandler.Announcements)

		staff := notifications.Group("")
		staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
		staff.POST("/announcements", audit(models.AuditActionAnnouncement, "notifications"), notificationHandler.CreateAnnouncement)
		staff.POST("/assignment", audit(models.AuditActionBroadcast, "topics"), notificationHandler.Broadcast("assignment"))
		staff.POST("/leaveApproval", audit(models.AuditActionBroadcast, "topics"), notificationHandler.Broadcast("leaveApproval"))
	}

	routes := api.Group("/routes")
	{
		routes.GET("", routeHandler.List)
		routes.GET("/resolve", middleware.OptionalJWT(authSvc), routeHandler.Resolve)
	}

	chat := api.Group("/chat")
	chat.Use(authenticated)
	chat.GET("/rooms/:roomId/messages", chatHandler.History)

	if cfg.Realtime.Enabled {
		r.GET(cfg.Realtime.Path, gin.WrapH(broker))
	}

	r.NoRoute(middleware.OptionalJWT(authSvc), middleware.Guard(routeSvc), pageHandler.Serve)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	broker.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	queue.Stop()
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
