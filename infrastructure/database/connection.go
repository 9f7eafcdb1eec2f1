package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kcsatboard/pkg/config"
)

// InitPostgres 创建 pgx 连接池并验证连通性
func InitPostgres(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: 解析 Postgres DSN 失败: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	if cfg.MaxConnLifetimeSeconds > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.MaxConnLifetimeSeconds) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: 创建 Postgres 连接池失败: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: Postgres 连接验证失败: %w", err)
	}
	logger.Info("成功连接到 Postgres", zap.Int32("max_conns", poolCfg.MaxConns))
	return pool, nil
}

// InitRedis 初始化 Redis 客户端连接
func InitRedis(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("database: 无法连接到 Redis (%s): %w", cfg.Addr, err)
	}
	logger.Info("成功连接到 Redis", zap.String("address", cfg.Addr))
	return rdb, nil
}
