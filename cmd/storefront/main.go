package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/cartapi"
	"storefront/internal/infra/ratelimit"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.IsProd(), cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//ローカルキャッシュ
	cartCache, closeCache, err := cache.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalf("cart cache: %v", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.WithError(err).Warn("cart cache close failed")
		}
	}()

	//リモートのカートサービス
	client := cartapi.NewClient(cfg.CartAPIURL, cfg.CartAPIVariant, cfg.CartAPITimeout, &http.Client{})

	//Usecase生成
	registry := usecase.NewSessionRegistry(client, cartCache, usecase.RegistryOptions{
		Store: usecase.CartStoreOptions{Policy: usecase.OpPolicy(cfg.OpPolicy)},
		Log:   log,
	})
	checkoutUC := usecase.NewCheckoutUsecase(client, registry, log)
	orderUC := usecase.NewOrderUsecase(client, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(client, log)

	//Handler生成
	h := server.Handlers{
		Cart:         handler.NewCartHandler(registry),
		Checkout:     handler.NewCheckoutHandler(checkoutUC),
		AdminSession: handler.NewAdminSessionHandler(registry),
		Order:        handler.NewOrderHandler(orderUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		Health:       handler.NewHealthHandler(),
	}
	if mw, closeLimiter := rateLimit(cfg, log); mw != nil {
		h.CartMutate = []echo.MiddlewareFunc{mw}
		defer closeLimiter()
	}

	srv := server.New(cfg, log, h)

	//使われていないセッションの掃除
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.RunSweeper(ctx, time.Minute, cfg.SessionIdleTTL)
	}()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("Gracefully shutting down...")

	if err := srv.Shutdown(10 * time.Second); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	//ワーカーを止めて、裏のReconcileが終わるのを待つ
	cancel()
	wg.Wait()
	registry.Wait()
}

// RATELIMIT_USER_RPS が設定されているときだけRedisのレート制限を掛ける
func rateLimit(cfg config.Config, log *logrus.Logger) (echo.MiddlewareFunc, func()) {
	if cfg.RateLimitRPS <= 0 {
		return nil, func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable, rate limiter disabled")
		_ = rdb.Close()
		return nil, func() {}
	}

	log.WithFields(logrus.Fields{
		"rps":   cfg.RateLimitRPS,
		"burst": cfg.RateLimitBurst,
	}).Info("cart rate limiter enabled")
	mw := middleware.RateLimit(ratelimit.NewRedisLimiter(rdb), cfg.RateLimitBurst, cfg.RateLimitRPS, log)
	return mw, func() { _ = rdb.Close() }
}
