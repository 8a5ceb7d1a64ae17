package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/infra/db"
	repo "storefront/internal/repository"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// 設定のドライバでキャッシュを作る。closeは必ず呼ぶこと。
func Open(ctx context.Context, cfg config.Config, log *logrus.Logger) (repo.CartCache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.CacheDriver {
	case config.CacheMemory:
		log.Info("cart cache: memory")
		return NewMemoryCache(), noop, nil

	case config.CacheFile:
		fc, err := NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("dir", cfg.CacheDir).Info("cart cache: file")
		return fc, noop, nil

	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := pingRedis(ctx, rdb, log); err != nil {
			_ = rdb.Close()
			return nil, noop, err
		}
		log.WithField("addr", cfg.RedisAddr).Info("cart cache: redis")
		return NewRedisCache(rdb, cfg.CacheTTL), rdb.Close, nil

	case config.CachePostgres:
		gormDB, sqlDB, err := db.Connect(db.DSN())
		if err != nil {
			return nil, noop, err
		}
		migrate := func() error {
			return gormDB.WithContext(ctx).AutoMigrate(&model.CacheSlot{})
		}
		if err := closeOnError(migrate, sqlDB); err != nil {
			return nil, noop, err
		}
		log.Info("cart cache: postgres")
		return NewGormCache(gormDB), sqlDB.Close, nil
	}

	return nil, noop, fmt.Errorf("cache driver %q is not supported", cfg.CacheDriver)
}

// 準備に失敗したら開いたプールを閉じてからエラーを返す
func closeOnError(prepare func() error, pool io.Closer) error {
	if err := prepare(); err != nil {
		_ = pool.Close()
		return err
	}
	return nil
}

// 起動直後はRedisがまだ上がっていないことがあるので数回だけ待つ
func pingRedis(ctx context.Context, rdb *redis.Client, log *logrus.Logger) error {
	const maxRetries = 5

	var err error
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return nil
		}

		backoff := time.Duration(1<<i) * time.Second
		log.Warnf("redis not ready, retry in %v... (%d/%d)", backoff, i+1, maxRetries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed to connect to redis after %d retries: %w", maxRetries, err)
}
