package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"site_registry/internal/api"
	"site_registry/internal/config"
	"site_registry/internal/limiter"
	"site_registry/internal/repository"
	"site_registry/internal/service"
	"site_registry/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := logger.Init(logger.Options{
		Level:         cfg.LogLevel,
		Directory:     cfg.LogDir,
		FileMaxAgeDay: cfg.LogFileMaxAge,
	}); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	logger.Info("Starting Site Registry")

	// Initialize databases
	db, err := config.InitDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database: " + err.Error())
	}
	defer db.Close()

	influx, err := config.InitInflux(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize InfluxDB: " + err.Error())
	}
	if influx != nil {
		defer influx.Close()
	}

	// Repositories
	var (
		sites  repository.SiteRepository
		users  repository.UserRepository
		events repository.EventRepository
	)
	switch d := db.(type) {
	case *config.MongoDatabase:
		sites = repository.NewMongoSiteRepo(d)
		users = repository.NewMongoUserRepo(d)
	default:
		sites = repository.NewMemorySiteRepo()
		users = repository.NewMemoryUserRepo()
	}
	if influx != nil {
		events = repository.NewInfluxEventRepo(influx)
	} else {
		logger.Warn("INFLUXDB_URL not set, status history is kept in memory")
		events = repository.NewMemoryEventRepo()
	}

	// Services
	writer := service.NewStatusEventWriter(events, cfg.EventBatchSize,
		time.Duration(cfg.EventFlushInterval)*time.Millisecond)
	defer writer.Close()

	cache := service.NewCache(time.Minute)
	defer cache.Close()

	siteSvc := service.NewSiteService(sites, events, writer, cache, cfg.SiteListCacheTTL)
	authSvc := service.NewAuthService(users, service.AuthConfig{
		Secret:        cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	})
	if cfg.BreakGlassEnabled() {
		logger.Warnf("Break-glass admin enabled for %q", cfg.AdminUsername)
	}

	loginLimiter := newLimiter(cfg)
	defer loginLimiter.Close()

	// Setup HTTP server
	router, err := setupRouter(cfg, api.Services{
		Sites:   siteSvc,
		Auth:    authSvc,
		Limiter: loginLimiter,
	})
	if err != nil {
		logger.Fatal("Failed to set up router: " + err.Error())
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %d (%s store)", cfg.ServerPort, sites.Type())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: " + err.Error())
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced shutdown: " + err.Error())
	}

	logger.Info("Server stopped gracefully")
}

func newLimiter(cfg *config.Config) limiter.Limiter {
	if cfg.RedisURL == "" {
		return limiter.NewMemoryLimiter(cfg.LoginRatePerMinute, time.Minute)
	}

	l, err := limiter.NewRedisLimiter(cfg.RedisURL, cfg.LoginRatePerMinute, time.Minute)
	if err != nil {
		logger.Warnf("Redis limiter unavailable, using in-process limiter: %v", err)
		return limiter.NewMemoryLimiter(cfg.LoginRatePerMinute, time.Minute)
	}
	logger.Info("Login limiter backed by Redis")
	return l
}

func setupRouter(cfg *config.Config, svc api.Services) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r, err := api.NewEngine(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	// Static dashboard
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		r.Static("/static", cfg.StaticDir)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticDir + "/index.html")
		})
	}

	api.SetupRoutes(r, svc)

	return r, nil
}
