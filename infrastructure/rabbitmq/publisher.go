package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeType 领域事件和命令共用一个 topic 交换机
const ExchangeType = "topic"

// Publisher 把领域事件发布到交换机，routing key 即事件类型
type Publisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	logger       *zap.Logger
}

// NewPublisher 连接 RabbitMQ 并声明交换机
func NewPublisher(amqpURL string, exchangeName string, logger *zap.Logger) (*Publisher, error) {
	conn, ch, err := dialAndDeclare(amqpURL, exchangeName, logger)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		conn:         conn,
		channel:      ch,
		exchangeName: exchangeName,
		logger:       logger.Named("rabbitmq_publisher"),
	}, nil
}

// dialAndDeclare 建立连接、打开通道、声明持久化交换机，失败时关闭已打开的资源
func dialAndDeclare(amqpURL, exchangeName string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", zap.Error(err))
		return nil, nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: open channel failed: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchangeName,
		ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: declare exchange %q failed: %w", exchangeName, err)
	}
	logger.Info("RabbitMQ 交换机声明成功", zap.String("exchange", exchangeName), zap.String("type", ExchangeType))
	return conn, ch, nil
}

// buildPublishing 序列化消息体，每条消息带唯一的 MessageId 便于下游去重
func buildPublishing(messageBody interface{}) (amqp.Publishing, error) {
	body, err := json.Marshal(messageBody)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal message failed: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}, nil
}

// Publish 发布消息到指定的 routingKey，满足 service.EventPublisher
func (p *Publisher) Publish(ctx context.Context, routingKey string, messageBody interface{}) error {
	msg, err := buildPublishing(messageBody)
	if err != nil {
		p.logger.Error("消息序列化失败", zap.String("routingKey", routingKey), zap.Error(err))
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		p.logger.Error("发布消息失败", zap.String("routingKey", routingKey), zap.Error(err))
		return fmt.Errorf("rabbitmq: publish %s failed: %w", routingKey, err)
	}

	p.logger.Debug("消息发布成功",
		zap.String("routingKey", routingKey),
		zap.String("messageId", msg.MessageId),
	)
	return nil
}

// Close 关闭通道和连接
func (p *Publisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("关闭 RabbitMQ 通道失败", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error("关闭 RabbitMQ 连接失败", zap.Error(err))
		}
	}
	p.logger.Info("RabbitMQ Publisher 已关闭")
}
