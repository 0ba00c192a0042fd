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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-lifecycle-api/api/swagger"
	"github.com/noah-isme/sma-lifecycle-api/internal/dependency"
	"github.com/noah-isme/sma-lifecycle-api/internal/handler"
	"github.com/noah-isme/sma-lifecycle-api/internal/middleware"
	"github.com/noah-isme/sma-lifecycle-api/internal/repository"
	"github.com/noah-isme/sma-lifecycle-api/internal/service"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/pkg/cache"
	"github.com/noah-isme/sma-lifecycle-api/pkg/config"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	"github.com/noah-isme/sma-lifecycle-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-lifecycle-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-lifecycle-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-lifecycle-api/pkg/telemetry"
)

// @title SMA Lifecycle API
// @version 1.0.0
// @description Tenant-scoped lifecycle and authorization engine for school workflow records
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, dialect, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(db.DB, dialect, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	registry, err := dependency.Load(cfg.Dependencies.RegistryPath)
	if err != nil {
		logr.Fatal("failed to load dependency registry", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, listing cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	tenantRepo := repository.NewTenantRepository(db, dialect)
	actorRepo := repository.NewActorRepository(db, dialect)
	recordRepo := repository.NewRecordRepository(db, dialect)
	dependencyRepo := repository.NewDependencyRepository(dialect)

	resolver := service.NewDependencyResolver(registry, dependencyRepo, metricsSvc, logr)
	authSvc := service.NewAuthService(actorRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	actorContextSvc := service.NewActorContextService(actorRepo, logr)
	lifecycleSvc := service.NewLifecycleService(recordRepo, actorRepo, service.NewUniquenessGuard(recordRepo), resolver, validate, logr,
		service.WithLifecycleCache(cacheSvc),
		service.WithLifecycleMetrics(metricsSvc),
	)
	actorSvc := service.NewActorService(actorRepo, resolver, cacheSvc, validate, logr)
	commentSvc := service.NewCommentService(tenancy.NewResolver(tenantRepo), lifecycleSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	actorHandler := handler.NewActorHandler(actorSvc)
	recordHandler := handler.NewRecordHandler(lifecycleSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(telemetry.GinMiddleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	public := api.Group("/public", middleware.OptionalJWT(authSvc), middleware.OptionalActor(actorContextSvc))
	public.POST("/tenants/:slug/news/:id/comments", commentHandler.Submit)

	secured := api.Group("", middleware.JWT(authSvc), middleware.Actor(actorContextSvc))
	secured.GET("/me", authHandler.Me)
	secured.GET("/metrics/summary", metricsHandler.Summary)

	secured.POST("/actors", actorHandler.Create)
	secured.GET("/actors", actorHandler.List)
	secured.DELETE("/actors/:id", actorHandler.Delete)

	records := secured.Group("/records/:type")
	records.GET("", recordHandler.List)
	records.POST("", recordHandler.Create)
	records.POST("/bulk", recordHandler.Bulk)
	records.GET("/:id", recordHandler.Get)
	records.POST("/:id/transitions", recordHandler.Transition)
	records.DELETE("/:id", recordHandler.Delete)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("dialect", dialect.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
