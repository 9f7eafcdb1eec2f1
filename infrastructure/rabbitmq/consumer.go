package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"kcsatboard/biz/model"
)

// ErrUnknownCommand 收到无法识别的命令，消息会被 Nack 且不重入队列
var ErrUnknownCommand = errors.New("rabbitmq: unknown command")

// MessageHandler 处理一条消息，返回 error 时 Nack
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Recomputer 手动触发排行榜重算
type Recomputer interface {
	RecomputeRanking(ctx context.Context) ([]int64, error)
}

// Command 运维通过队列下发的命令
type Command struct {
	Type string `json:"type"`
}

// RankingCommandHandler 把 ranking.recompute 命令转成一次重算
func RankingCommandHandler(engine Recomputer, timeout time.Duration, logger *zap.Logger) MessageHandler {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		var cmd Command
		if err := json.Unmarshal(delivery.Body, &cmd); err != nil {
			return fmt.Errorf("rabbitmq: decode command failed: %w", err)
		}
		if cmd.Type != model.CommandRecompute {
			return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		ids, err := engine.RecomputeRanking(ctx)
		if err != nil {
			return err
		}
		logger.Info("收到命令，排行榜已重算", zap.String("messageId", delivery.MessageId), zap.Int64s("ids", ids))
		return nil
	}
}

// Consumer 从命令队列消费消息
type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queueName   string
	consumerTag string
	logger      *zap.Logger
	handler     MessageHandler
	stop        chan struct{}
	done        chan struct{}
}

// ConsumerOptions 队列绑定配置
type ConsumerOptions struct {
	ExchangeName string
	QueueName    string
	RoutingKey   string
	ConsumerTag  string // 为空时生成 uuid
}

// NewConsumer 声明队列、绑定到交换机并开始消费
func NewConsumer(amqpURL string, handler MessageHandler, opts ConsumerOptions, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := dialAndDeclare(amqpURL, opts.ExchangeName, logger)
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	q, err := ch.QueueDeclare(
		opts.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("rabbitmq: declare queue %q failed: %w", opts.QueueName, err)
	}
	if err := ch.QueueBind(q.Name, opts.RoutingKey, opts.ExchangeName, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("rabbitmq: bind queue %q with key %q failed: %w", q.Name, opts.RoutingKey, err)
	}
	// 一次只处理一条，重算本身已串行
	if err := ch.Qos(1, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("rabbitmq: set qos failed: %w", err)
	}

	tag := opts.ConsumerTag
	if tag == "" {
		tag = "kcsatboard-" + uuid.NewString()
	}
	deliveries, err := ch.Consume(q.Name, tag, false, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("rabbitmq: consume failed: %w", err)
	}

	c := &Consumer{
		conn:        conn,
		channel:     ch,
		queueName:   q.Name,
		consumerTag: tag,
		handler:     handler,
		logger:      logger.Named("rabbitmq_consumer").With(zap.String("queue", q.Name), zap.String("tag", tag)),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go c.loop(deliveries)
	c.logger.Info("RabbitMQ Consumer 已启动")
	return c, nil
}

func (c *Consumer) loop(deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Info("消息通道已关闭")
				return
			}
			c.dispatch(d)
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) dispatch(d amqp.Delivery) {
	err := c.handler(context.Background(), d)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("发送 Ack 失败", zap.Error(ackErr))
		}
		return
	}
	// 格式错误或未知命令不重入队列，其余失败交给下一次投递重试
	requeue := !errors.Is(err, ErrUnknownCommand) && !d.Redelivered
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		requeue = false
	}
	c.logger.Error("消息处理失败", zap.Error(err), zap.Bool("requeue", requeue))
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.logger.Error("发送 Nack 失败", zap.Error(nackErr))
	}
}

// Shutdown 取消订阅并等待消费循环退出
func (c *Consumer) Shutdown(ctx context.Context) error {
	err := c.channel.Cancel(c.consumerTag, false)
	if err != nil {
		c.logger.Error("取消消费者失败", zap.Error(err))
	}
	close(c.stop)
	select {
	case <-c.done:
	case <-ctx.Done():
		c.logger.Warn("等待消费循环退出超时")
	}
	if cerr := c.channel.Close(); cerr != nil {
		c.logger.Error("关闭 RabbitMQ 通道失败", zap.Error(cerr))
	}
	if cerr := c.conn.Close(); cerr != nil {
		c.logger.Error("关闭 RabbitMQ 连接失败", zap.Error(cerr))
	}
	c.logger.Info("RabbitMQ Consumer 已关闭")
	return err
}
