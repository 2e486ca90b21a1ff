package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apichallenges "github.com/ecostride/ecostride-api/internal/api/challenges"
	"github.com/ecostride/ecostride-api/internal/cache"
	"github.com/ecostride/ecostride-api/internal/config"
	"github.com/ecostride/ecostride-api/internal/metrics"
	"github.com/ecostride/ecostride-api/internal/repository"
	"github.com/ecostride/ecostride-api/internal/service/challenges"
	"github.com/ecostride/ecostride-api/internal/service/rewards"
	"github.com/ecostride/ecostride-api/internal/service/scheduler"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.Get()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	loc, err := cfg.Challenges.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid challenges timezone: %w", err)
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisCache, err := cache.NewRedisCache(&cfg.Database.Redis, log)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisCache.Close()

	challengeRepo := repository.NewChallengeRepository(db)
	rewardRepo := repository.NewRewardRepository(db)

	pointsService := rewards.NewPointsService(rewardRepo, log)
	co2Service := rewards.NewCO2Service(rewardRepo, log)
	statsService := rewards.NewStatsService(rewardRepo, log)
	streakService := rewards.NewStreakService(rewardRepo, loc, log)

	engine := challenges.NewEngine(challenges.Deps{
		Store:      challengeRepo,
		Points:     pointsService,
		CO2:        co2Service,
		Stats:      statsService,
		Streaks:    streakService,
		Dispatches: rewardRepo,
		Location:   loc,
		Log:        log,
	})
	queryService := challenges.NewQueryService(
		challengeRepo,
		engine,
		redisCache,
		time.Duration(cfg.Challenges.CatalogCacheTTL)*time.Second,
		log,
	)

	sweep := scheduler.NewService(cfg, challengeRepo, engine, loc, log)
	if err := sweep.Start(); err != nil {
		return fmt.Errorf("failed to start reconciliation sweep: %w", err)
	}
	defer sweep.Stop()

	handler := apichallenges.NewHandler(
		engine,
		queryService,
		pointsService,
		co2Service,
		statsService,
		streakService,
		log,
	)
	router := buildRouter(cfg, db, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("environment", cfg.Server.Environment).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

func buildRouter(cfg *config.Config, db *repository.DB, handler *apichallenges.Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	handler.RegisterRoutes(router.Group("/api/v1"))

	return router
}
