package config

import (
	"fmt"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppConfig 包含所有应用程序的配置
type AppConfig struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Engagement  EngagementConfig  `mapstructure:"engagement"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Address               string `mapstructure:"address"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"` // 单个请求访问缓存的超时
}

// DatabaseConfig 包含所有数据库的配置
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig PostgreSQL 连接配置
type PostgresConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig 缓存相关配置
type CacheConfig struct {
	Prefix             string `mapstructure:"prefix"`
	QuestionTTLSeconds int    `mapstructure:"question_ttl_seconds"` // 题目快照读缓存
}

// EngagementConfig 浏览/投票/热帖相关配置
type EngagementConfig struct {
	HotThreshold       int64 `mapstructure:"hot_threshold"`
	MarkTTLHours       int   `mapstructure:"mark_ttl_hours"`
	HotCommentMinScore int64 `mapstructure:"hot_comment_min_score"`
	HotCommentLimit    int   `mapstructure:"hot_comment_limit"`
}

// IdempotencyConfig 各类创建操作的防重窗口 (秒)
type IdempotencyConfig struct {
	PostTTLSeconds     int `mapstructure:"post_ttl_seconds"`
	CommentTTLSeconds  int `mapstructure:"comment_ttl_seconds"`
	QuestionTTLSeconds int `mapstructure:"question_ttl_seconds"`
	SignupTTLSeconds   int `mapstructure:"signup_ttl_seconds"`
}

// RankingConfig 排行榜定时任务配置
type RankingConfig struct {
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
	Size     int    `mapstructure:"size"`
}

// CleanupConfig 浏览标记的批量清理 (旧方案，默认关闭，依赖 TTL 过期)
type CleanupConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Cron      string `mapstructure:"cron"`
	BatchSize int    `mapstructure:"batch_size"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig 日志相关配置
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// RabbitMQConfig RabbitMQ 连接配置
type RabbitMQConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	CommandQueue string `mapstructure:"command_queue"`
}

// GlobalConfig 是全局配置实例
var GlobalConfig = new(AppConfig)

// MaxRankingSize 排行榜最多的槽位数
const MaxRankingSize = 5

func InitConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)   // 设置配置文件路径
	v.SetConfigType("yaml") // 设置配置文件类型
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	*GlobalConfig = *cfg

	// 监听配置文件变化，非法配置不生效
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("配置文件已更改: %s", e.Name)
		next, err := load(v)
		if err != nil {
			log.Printf("警告: 重新加载配置失败，继续使用旧配置: %v", err)
			return
		}
		*GlobalConfig = *next
		log.Println("Info: 配置已重新加载.")
	})

	log.Printf("Info: 成功加载并解析配置文件: %s", path)
	return GlobalConfig, nil
}

// setDefaults 业务阈值走 viper 默认值，显式写 0 的配置会被 Validate 拒绝
func setDefaults(v *viper.Viper) {
	v.SetDefault("engagement.hot_threshold", 20)
	v.SetDefault("engagement.hot_comment_min_score", 2)
	v.SetDefault("engagement.hot_comment_limit", 3)
	v.SetDefault("ranking.size", MaxRankingSize)
}

func load(v *viper.Viper) (*AppConfig, error) {
	cfg := new(AppConfig)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Validate 检查业务阈值，不做任何修正
func (c *AppConfig) Validate() error {
	e := c.Engagement
	switch {
	case e.HotThreshold < 1:
		return fmt.Errorf("config: engagement.hot_threshold must be >= 1, got %d", e.HotThreshold)
	case e.HotCommentMinScore < 1:
		return fmt.Errorf("config: engagement.hot_comment_min_score must be >= 1, got %d", e.HotCommentMinScore)
	case e.HotCommentLimit < 1:
		return fmt.Errorf("config: engagement.hot_comment_limit must be >= 1, got %d", e.HotCommentLimit)
	case e.MarkTTLHours < 0:
		return fmt.Errorf("config: engagement.mark_ttl_hours must not be negative, got %d", e.MarkTTLHours)
	case c.Ranking.Size < 1 || c.Ranking.Size > MaxRankingSize:
		return fmt.Errorf("config: ranking.size must be in [1, %d], got %d", MaxRankingSize, c.Ranking.Size)
	}
	if c.Server.RequestTimeoutSeconds < 0 || c.Database.Postgres.MaxConns < 0 ||
		c.Cache.QuestionTTLSeconds < 0 || c.Cleanup.BatchSize < 0 {
		return fmt.Errorf("config: timeouts, pool sizes and batch sizes must not be negative")
	}
	i := c.Idempotency
	if i.PostTTLSeconds < 0 || i.CommentTTLSeconds < 0 || i.QuestionTTLSeconds < 0 || i.SignupTTLSeconds < 0 {
		return fmt.Errorf("config: idempotency windows must not be negative")
	}
	return nil
}

// ApplyDefaults 为未配置 (零值) 的字段填充默认值
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 3
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = 10
	}
	if c.Cache.QuestionTTLSeconds == 0 {
		c.Cache.QuestionTTLSeconds = 600
	}
	if c.Engagement.HotThreshold == 0 {
		c.Engagement.HotThreshold = 20
	}
	if c.Engagement.MarkTTLHours == 0 {
		c.Engagement.MarkTTLHours = 24
	}
	if c.Engagement.HotCommentMinScore == 0 {
		c.Engagement.HotCommentMinScore = 2
	}
	if c.Engagement.HotCommentLimit == 0 {
		c.Engagement.HotCommentLimit = 3
	}
	if c.Idempotency.PostTTLSeconds == 0 {
		c.Idempotency.PostTTLSeconds = 60
	}
	if c.Idempotency.CommentTTLSeconds == 0 {
		c.Idempotency.CommentTTLSeconds = 60
	}
	if c.Idempotency.QuestionTTLSeconds == 0 {
		c.Idempotency.QuestionTTLSeconds = 60
	}
	if c.Idempotency.SignupTTLSeconds == 0 {
		c.Idempotency.SignupTTLSeconds = 300
	}
	if c.Ranking.Cron == "" {
		c.Ranking.Cron = "0 0 * * MON"
	}
	if c.Ranking.Timezone == "" {
		c.Ranking.Timezone = "Asia/Seoul"
	}
	if c.Ranking.Size == 0 {
		c.Ranking.Size = 5
	}
	if c.Cleanup.Cron == "" {
		c.Cleanup.Cron = "0 0 * * *"
	}
	if c.Cleanup.BatchSize == 0 {
		c.Cleanup.BatchSize = 100
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "kcsatboard.events"
	}
	if c.RabbitMQ.CommandQueue == "" {
		c.RabbitMQ.CommandQueue = "kcsatboard.ranking.commands"
	}
}

// MarkTTL 用户动作标记的有效期
func (e EngagementConfig) MarkTTL() time.Duration {
	return time.Duration(e.MarkTTLHours) * time.Hour
}

// RequestTimeout 单个请求的超时
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (i IdempotencyConfig) PostTTL() time.Duration     { return seconds(i.PostTTLSeconds) }
func (i IdempotencyConfig) CommentTTL() time.Duration  { return seconds(i.CommentTTLSeconds) }
func (i IdempotencyConfig) QuestionTTL() time.Duration { return seconds(i.QuestionTTLSeconds) }
func (i IdempotencyConfig) SignupTTL() time.Duration   { return seconds(i.SignupTTLSeconds) }
