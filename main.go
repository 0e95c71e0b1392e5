package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/config"
	"github.com/rmhse/rmhse_backend/controllers"
	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/monitoring"
	"github.com/rmhse/rmhse_backend/repositories"
	"github.com/rmhse/rmhse_backend/routes"
	"github.com/rmhse/rmhse_backend/services"
	"github.com/rmhse/rmhse_backend/utils"
	"github.com/rmhse/rmhse_backend/websocket"
)

type stores struct {
	users       services.UserStore
	sequences   services.SequenceStore
	extends     services.ExtendStore
	withdrawals services.WithdrawalStore
	close       func()
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := config.NewLogger(cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatal("storage unavailable", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer st.close()

	// Upgrade locks are shared through Redis when it is reachable
	var locker services.Locker = repositories.NewLocalLocker()
	if redisClient := config.ConnectRedis(cfg, logger); redisClient != nil {
		defer redisClient.Close()
		locker = repositories.NewRedisLocker(redisClient, logger)
	}

	hierarchy := hierarchyFromConfig(cfg)
	if err := hierarchy.Validate(); err != nil {
		logger.Fatal("invalid commission hierarchy", zap.Error(err))
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()

	ids := services.NewIDGenerator(st.sequences, hierarchy.JoinPrefix, logger)
	distributor := services.NewDistributor(st.users, hierarchy, wsHub, logger)
	userService := services.NewUserService(st.users, st.extends, st.withdrawals, hierarchy, logger)
	activationService := services.NewActivationService(st.users, ids, distributor, hierarchy, logger)
	upgradeService := services.NewUpgradeService(st.users, ids, locker, hierarchy, logger)
	extendService := services.NewExtendService(st.extends, st.users, hierarchy, logger)
	withdrawalService := services.NewWithdrawalService(st.withdrawals, st.users, logger)

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, created, err := userService.EnsureAdmin(seedCtx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Warn("no admin account, distribution remainders will be dropped", zap.Error(err))
	} else if created {
		logger.Info("created admin account", zap.String("email", cfg.AdminEmail))
	}
	cancel()

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator()

	rateLimiter := middleware.NewRateLimiter()
	stopCleanup := make(chan struct{})
	go rateLimiter.Cleanup(time.Hour, stopCleanup)
	defer close(stopCleanup)

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS(cfg.CORSOrigins))
	e.Use(middleware.SecurityHeaders())
	e.Use(monitoring.Middleware())
	e.Use(rateLimiter.RateLimit())

	routes.SetupRoutes(e, cfg.JWTSecret, wsHub, routes.Controllers{
		Auth:  controllers.NewAuthController(userService, cfg.JWTSecret, logger),
		User:  controllers.NewUserController(userService, upgradeService, extendService, withdrawalService, logger),
		Admin: controllers.NewAdminController(userService, activationService, upgradeService, extendService, withdrawalService, logger),
	})

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageDriver))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStores(cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			users:       repositories.NewMemoryUserStore(),
			sequences:   repositories.NewMemorySequenceStore(),
			extends:     repositories.NewMemoryExtendStore(),
			withdrawals: repositories.NewMemoryWithdrawalStore(),
			close:       func() {},
		}, nil
	}

	client, err := config.ConnectDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.DBName)
	return &stores{
		users:       repositories.NewUserRepository(db),
		sequences:   repositories.NewCounterRepository(db),
		extends:     repositories.NewExtendRepository(db),
		withdrawals: repositories.NewWithdrawalRepository(db),
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		},
	}, nil
}

func hierarchyFromConfig(cfg *config.Config) services.Hierarchy {
	h := services.DefaultHierarchy()
	h.TotalBudget = cfg.CommissionBudget
	h.CohortPayout = cfg.BMPayout
	h.DefaultLimit = cfg.DefaultLimit
	h.LimitStep = cfg.LimitStep
	h.MaxChainDepth = cfg.ChainMaxDepth
	return h
}
