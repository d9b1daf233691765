package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tablevine/booking-risk/internal/risk"
	"github.com/tablevine/booking-risk/pkg/common"
	"github.com/tablevine/booking-risk/pkg/config"
	"github.com/tablevine/booking-risk/pkg/database"
	"github.com/tablevine/booking-risk/pkg/health"
	"github.com/tablevine/booking-risk/pkg/logger"
	"github.com/tablevine/booking-risk/pkg/middleware"
	"github.com/tablevine/booking-risk/pkg/ratelimit"
	"github.com/tablevine/booking-risk/pkg/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load("risk")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Risk.RunMigrations {
		if err := runMigrations(cfg); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	dbPool, err := database.NewDBPool(&cfg.Database, cfg.Server.ServiceName)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()
	pool := dbPool.GetPrimary()
	logger.Info("Connected to PostgreSQL", zap.Int("replicas", len(dbPool.Replicas)))

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	var publisher risk.Publisher
	var natsPublisher *risk.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = risk.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	var resolver risk.MXResolver
	if cfg.Risk.MXLookupEnabled {
		resolver = risk.NewNetMXResolver(time.Duration(cfg.Risk.MXLookupTimeout) * time.Second)
	}

	cache := risk.NewRedisVelocityCache(redisClient)
	repo := risk.NewRepository(pool)

	service, err := risk.NewService(risk.DefaultConfig(), cache, repo, publisher, resolver, cfg.Risk.FlagThreshold)
	if err != nil {
		logger.Fatal("Failed to create risk service", zap.Error(err))
	}
	handler := risk.NewHandler(service)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))
	router.Use(middleware.SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	limiter := ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
	router.Use(middleware.RateLimit(limiter))

	checkTimeout := health.DefaultCheckerConfig().Timeout
	pgChecker := health.AsyncChecker(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		return pool.Ping(ctx)
	}, checkTimeout)
	redisChecker := health.AsyncChecker(health.RedisChecker(redisClient.Client), checkTimeout)

	router.GET("/healthz", common.HealthCheckWithDeps(cfg.Server.ServiceName, version, map[string]func() error{
		"postgres": pgChecker,
		"redis":    redisChecker,
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1/risk")
	{
		// Internal endpoints called by the booking service
		api.POST("/assess", handler.Assess)
		api.POST("/assess/email", handler.AssessEmail)
		api.POST("/assess/phone", handler.AssessPhone)
		api.POST("/assess/name", handler.AssessName)
		api.POST("/failed-attempts", handler.RecordFailedAttempt)

		// Review queue, staff only
		admin := api.Group("", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole("admin", "risk_analyst"))
		{
			admin.GET("/assessments/flagged", handler.ListFlagged)
			admin.GET("/assessments/:id", handler.GetAssessment)
			admin.GET("/history", handler.ContactHistory)
		}
	}

	addr := ":" + cfg.Server.Port
	logger.Info("Risk service starting", zap.String("port", cfg.Server.Port))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.Risk.MigrationsPath, cfg.Database.MigrateURL())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
