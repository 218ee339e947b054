package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer delivers messages from one queue bound to the events exchange.
type Consumer struct {
	ch         *amqp.Channel
	queue      string
	routingKey string
	logger     *zap.Logger
}

// StartConsumer declares the exchange and a durable queue bound to routingKey
// and runs handler for each delivery until ctx is done.
func StartConsumer(ctx context.Context, conn *amqp.Connection, routingKey string, handler HandlerFunc, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Consumer{ch: ch, queue: QueueName(routingKey), routingKey: routingKey, logger: logger}
	msgs, err := c.setup()
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	go c.run(ctx, msgs, handler)
	return c, nil
}

func (c *Consumer) setup() (<-chan amqp.Delivery, error) {
	if err := declareEventsExchange(c.ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	if _, err := c.ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", c.queue, err)
	}

	if err := c.ch.QueueBind(c.queue, c.routingKey, EventsExchange, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind %s: %w", c.queue, err)
	}

	if err := c.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	msgs, err := c.ch.Consume(
		c.queue,
		posServiceName, // consumer tag
		false,          // autoAck
		false,          // exclusive
		false,          // noLocal
		false,          // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return msgs, nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery, handler HandlerFunc) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumer", zap.String("queue", c.queue))
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("delivery channel closed", zap.String("queue", c.queue))
				return
			}
			deliver(ctx, handler, msg.Body, msg.Redelivered, msg, c.logger)
		}
	}
}

// deliver runs handler and settles the delivery. A failure is requeued once
// when it looks transient; otherwise it is dropped to the dead letter path.
func deliver(ctx context.Context, handler HandlerFunc, body []byte, redelivered bool, ack acknowledger, logger *zap.Logger) {
	err := handler(ctx, body)
	if err == nil {
		if ackErr := ack.Ack(false); ackErr != nil {
			logger.Error("ack failed", zap.Error(ackErr))
		}
		return
	}

	retry := requeue(err) && !redelivered
	logger.Error("handle message failed", zap.Bool("requeue", retry), zap.Error(err))
	if nackErr := ack.Nack(false, retry); nackErr != nil {
		logger.Error("nack failed", zap.Error(nackErr))
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
