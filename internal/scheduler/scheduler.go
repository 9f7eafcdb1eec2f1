// Package scheduler 负责周期任务: 每周排行重算与 (可选的) 浏览标记清理
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 一个周期任务，返回的 error 只用于记录日志
type Job func(ctx context.Context) error

// Scheduler 包装 cron.Cron，同一个任务上一次没跑完时跳过本次触发
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
}

// New 创建调度器，timezone 为空时使用 UTC
// timeout 限制单次任务的执行时间，<= 0 表示不限制。
func New(timezone string, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler: 无效的时区 %q: %w", timezone, err)
		}
	}
	named := logger.Named("scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(
			cron.Recover(cronLogger{named}),
			cron.SkipIfStillRunning(cronLogger{named}),
		),
	)
	return &Scheduler{cron: c, timeout: timeout, logger: named}, nil
}

// Add 注册任务，spec 为标准 5 段 cron 表达式
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("scheduler: 注册任务 %s (%s) 失败: %w", name, spec, err)
	}
	s.logger.Info("周期任务已注册", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("周期任务执行失败", zap.String("job", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("周期任务执行完成", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

// Start 在后台 goroutine 中开始调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在运行的任务结束，或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待周期任务结束超时")
	}
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, zap.Any("kv", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, zap.Error(err), zap.Any("kv", keysAndValues))
}
