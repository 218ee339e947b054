package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
)

// publishChannel is the part of *amqp.Channel the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type SequenceAllocator interface {
	Next(ctx context.Context, partition string) (int64, error)
}

type Publisher struct {
	ch               publishChannel
	seq              SequenceAllocator
	publishEnveloped bool
	producer         string
	timeout          time.Duration
	now              func() time.Time
}

type PublisherOptions struct {
	PublishEnveloped bool
	Producer         string
}

func NewPublisher(conn *amqp.Connection, seq SequenceAllocator, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return newPublisher(ch, seq, opts), nil
}

func newPublisher(ch publishChannel, seq SequenceAllocator, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = posServiceName
	}
	return &Publisher{
		ch:               ch,
		seq:              seq,
		publishEnveloped: opts.PublishEnveloped,
		producer:         producer,
		timeout:          3 * time.Second,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishSaleCompleted announces a committed sale.
func (p *Publisher) PublishSaleCompleted(ctx context.Context, correlationID string, sale domain.Sale) error {
	if !p.publishEnveloped {
		body, err := json.Marshal(LegacySaleCompleted{
			EventType:            EventTypeSaleCompleted,
			SaleCompletedPayload: saleCompletedPayload(sale),
		})
		if err != nil {
			return fmt.Errorf("marshal SaleCompleted: %w", err)
		}
		return p.publishJSON(ctx, SaleCompletedRoutingKey, correlationID, body)
	}

	seq, err := p.seq.Next(ctx, SalesPartition)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	ev := newSaleCompletedEvent(correlationID, seq, p.producer, sale, p.now())
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal SaleCompleted envelope: %w", err)
	}
	return p.publishJSON(ctx, SaleCompletedRoutingKey, ev.CorrelationID, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, correlationID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: correlationID,
			Timestamp:     p.now(),
			Body:          body,
		},
	)
}
