package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzprom "github.com/hertz-contrib/monitor-prometheus"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kcsatboard/biz/dal/pgdal"
	"kcsatboard/biz/handler/community"
	"kcsatboard/biz/model"
	"kcsatboard/biz/repo/pgrepo"
	"kcsatboard/biz/service"
	dbInfra "kcsatboard/infrastructure/database"
	"kcsatboard/infrastructure/rabbitmq"
	"kcsatboard/internal/scheduler"
	"kcsatboard/pkg/cache"
	"kcsatboard/pkg/config"
	"kcsatboard/pkg/keyspace"
)

// 定时任务和命令触发的重算共用的超时
const jobTimeout = time.Minute

// Init 执行所有初始化步骤，返回配置好的 Hertz 实例
// 后台资源 (调度器、消息队列、连接池) 通过 OnShutdown 钩子释放
func Init(configPath string) (*server.Hertz, *config.AppConfig, error) {
	// 1. 加载配置
	cfg, err := config.InitConfig(configPath)
	if err != nil {
		log.Printf("Error: 加载配置失败: %v", err)
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化 Zap Logger
	logger := NewLogger(cfg.Logging.Level)
	logger.Info("Zap Logger 初始化完成", zap.String("level", cfg.Logging.Level))

	ctx := context.Background()

	// 3. 数据库连接
	if cfg.Database.Postgres.AutoMigrate {
		if err := dbInfra.ApplyPostgresSchema(cfg.Database.Postgres.DSN, logger); err != nil {
			return nil, nil, fmt.Errorf("执行数据库迁移失败: %w", err)
		}
	}
	var res closers
	pool, err := dbInfra.InitPostgres(ctx, &cfg.Database.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化 PostgreSQL 失败: %w", err)
	}
	res.add(func(context.Context) { pool.Close() })
	redisClient, err := dbInfra.InitRedis(ctx, &cfg.Database.Redis, logger)
	if err != nil {
		res.closeAll(ctx)
		return nil, nil, fmt.Errorf("初始化 Redis 失败: %w", err)
	}
	res.add(func(context.Context) {
		if err := redisClient.Close(); err != nil {
			logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	})
	logger.Info("数据库连接初始化完成.")

	// 4. 缓存
	store, questionCache, err := InitCache(redisClient, &cfg.Cache)
	if err != nil {
		res.closeAll(ctx)
		return nil, nil, err
	}

	// 5. DAL + Repositories
	postRepo, commentRepo, questionRepo := InitRepositories(logger, pool, questionCache, &cfg.Cache)
	logger.Info("Repositories 初始化完成.")

	// 6. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	// 7. 消息队列 (可选)
	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rmqPub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			// 事件是尽力而为的，连不上时降级为不发布
			logger.Warn("RabbitMQ Publisher 初始化失败，领域事件将不会发布", zap.Error(err))
		} else {
			publisher = rmqPub
			res.add(func(context.Context) { rmqPub.Close() })
		}
	}

	// 8. Service
	svcs, ranking, sweeper := InitServices(logger, cfg, store, publisher, metrics, postRepo, commentRepo, questionRepo)
	logger.Info("Service 初始化完成.")

	if cfg.RabbitMQ.Enabled {
		consumer, err := rabbitmq.NewConsumer(
			cfg.RabbitMQ.URL,
			rabbitmq.RankingCommandHandler(ranking, jobTimeout, logger),
			rabbitmq.ConsumerOptions{
				ExchangeName: cfg.RabbitMQ.Exchange,
				QueueName:    cfg.RabbitMQ.CommandQueue,
				RoutingKey:   model.CommandRecompute,
			},
			logger,
		)
		if err != nil {
			logger.Warn("RabbitMQ Consumer 初始化失败，手动重算不可用", zap.Error(err))
		} else {
			res.add(func(ctx context.Context) { _ = consumer.Shutdown(ctx) })
		}
	}

	// 9. 定时任务
	sched, err := InitScheduler(logger, cfg, ranking, sweeper)
	if err != nil {
		res.closeAll(ctx)
		return nil, nil, err
	}
	sched.Start()
	res.add(sched.Stop)

	// 10. 注入依赖到 Handler
	community.SetServices(svcs, logger)
	logger.Info("依赖注入 Handler 完成.")

	// 11. Hertz 服务器
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithTracer(hertzprom.NewServerTracer(cfg.Metrics.Address, cfg.Metrics.Path, hertzprom.WithRegistry(reg))),
	)
	h.OnShutdown = append(h.OnShutdown, func(ctx context.Context) {
		res.closeAll(ctx)
		_ = logger.Sync()
	})
	logger.Info("Hertz 服务器实例创建完成.", zap.String("address", cfg.Server.Address))

	return h, cfg, nil
}

// NewLogger 根据配置级别创建 JSON 格式的 logger
func NewLogger(level string) *zap.Logger {
	logLevel := zapcore.InfoLevel
	switch level {
	case "debug":
		logLevel = zapcore.DebugLevel
	case "info", "":
	case "warn":
		logLevel = zapcore.WarnLevel
	case "error":
		logLevel = zapcore.ErrorLevel
	default:
		log.Printf("Warning: 无效的日志级别 '%s'，将使用 'info'", level)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(log.Default().Writer()),
		logLevel,
	)
	return zap.New(core, zap.AddCaller())
}

// InitCache 创建计数器存储和题目缓存
func InitCache(redisClient *redis.Client, cfg *config.CacheConfig) (cache.CounterStore, cache.Cache[*model.Question], error) {
	store, err := cache.NewRedisStore(redisClient, cfg.Prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("创建计数器存储失败: %w", err)
	}
	questionCache, err := cache.NewJSONCache[*model.Question](redisClient, cfg.Prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("创建题目缓存失败: %w", err)
	}
	return store, questionCache, nil
}

// InitRepositories 初始化 DAL 和仓库层
func InitRepositories(
	logger *zap.Logger,
	pool *pgxpool.Pool,
	questionCache cache.Cache[*model.Question],
	cacheCfg *config.CacheConfig,
) (pgrepo.PostRepository, pgrepo.CommentRepository, pgrepo.QuestionRepository) {
	postRepo := pgrepo.NewPostRepository(pool, pgdal.NewPostDAL(), logger)
	commentRepo := pgrepo.NewCommentRepository(pool, pgdal.NewCommentDAL())
	questionRepo := pgrepo.NewQuestionRepository(pool, pgdal.NewQuestionDAL(), questionCache, cacheCfg.QuestionTTLSeconds, logger)
	return postRepo, commentRepo, questionRepo
}

// InitServices 组装服务层
func InitServices(
	logger *zap.Logger,
	cfg *config.AppConfig,
	store cache.CounterStore,
	publisher service.EventPublisher,
	metrics *service.Metrics,
	postRepo pgrepo.PostRepository,
	commentRepo pgrepo.CommentRepository,
	questionRepo pgrepo.QuestionRepository,
) (community.Services, service.RankingEngine, *service.ViewMarkSweeper) {
	engagement := service.NewEngagementService(store, postRepo, publisher, metrics, service.EngagementOptions{
		HotThreshold: cfg.Engagement.HotThreshold,
		MarkTTL:      cfg.Engagement.MarkTTL(),
	}, logger)

	guard := service.NewIdempotencyGuard(store, service.LockWindows{
		keyspace.OpPost:         cfg.Idempotency.PostTTL(),
		keyspace.OpComment:      cfg.Idempotency.CommentTTL(),
		keyspace.OpQuestionSave: cfg.Idempotency.QuestionTTL(),
		keyspace.OpSignup:       cfg.Idempotency.SignupTTL(),
	}, metrics, logger)

	ranking := service.NewRankingEngine(store, questionRepo, publisher, metrics, cfg.Ranking.Size, logger)

	svcs := community.Services{
		Engagement:  engagement,
		Community:   service.NewCommunityService(guard, engagement, store, postRepo, commentRepo, questionRepo, logger),
		HotComments: service.NewHotCommentSelector(store, cfg.Engagement.HotCommentMinScore, cfg.Engagement.HotCommentLimit, logger),
		Ranking:     ranking,
	}
	return svcs, ranking, service.NewViewMarkSweeper(store, cfg.Cleanup.BatchSize, logger)
}

// InitScheduler 注册排行榜重算和 (可选的) 浏览标记清理任务
func InitScheduler(logger *zap.Logger, cfg *config.AppConfig, ranking service.RankingEngine, sweeper *service.ViewMarkSweeper) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(cfg.Ranking.Timezone, jobTimeout, logger)
	if err != nil {
		return nil, err
	}
	err = sched.Add("ranking.recompute", cfg.Ranking.Cron, func(ctx context.Context) error {
		_, err := ranking.RecomputeRanking(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if cfg.Cleanup.Enabled {
		err = sched.Add("view_marks.sweep", cfg.Cleanup.Cron, func(ctx context.Context) error {
			_, err := sweeper.SweepViewMarks(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return sched, nil
}
