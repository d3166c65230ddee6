package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stocklane/stocklane/internal/app"
	"github.com/stocklane/stocklane/internal/auth"
	"github.com/stocklane/stocklane/internal/inventory"
	"github.com/stocklane/stocklane/internal/masterdata/products"
	"github.com/stocklane/stocklane/internal/masterdata/warehouses"
	"github.com/stocklane/stocklane/internal/orders"
	"github.com/stocklane/stocklane/internal/pickpack"
	"github.com/stocklane/stocklane/internal/platform/cache"
	"github.com/stocklane/stocklane/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := cache.NewCache(redisClient)

	authRepo := auth.NewRepository(pool)
	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(authService, logger)

	productRepo := products.NewRepository(pool)
	warehouseRepo := warehouses.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, productRepo, store, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	pickpackRepo := pickpack.NewRepository(pool)
	pickpackService := pickpack.NewService(pickpackRepo, warehouseRepo, orderRepo, logger)
	pickpackHandler := pickpack.NewHandler(logger, pickpackService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthService:      authService,
		AuthHandler:      authHandler,
		InventoryHandler: inventoryHandler,
		PickPackHandler:  pickpackHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
