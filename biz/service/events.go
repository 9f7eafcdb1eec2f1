package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kcsatboard/biz/model"
)

// EventPublisher 发布领域事件，rabbitmq.Publisher 满足该接口
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, messageBody interface{}) error
}

// publish 尽力而为，失败只记录日志
func publish(ctx context.Context, p EventPublisher, logger *zap.Logger, ev model.Event) {
	if p == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := p.Publish(ctx, ev.Type, ev); err != nil {
		logger.Warn("发布领域事件失败", zap.String("type", ev.Type), zap.Error(err))
	}
}
