package events

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange          = "ecommerce.events"
	SaleCompletedRoutingKey = "pos.sale.completed.v1"
	StockReceivedRoutingKey = "inventory.stock.received.v1"
	posServiceName          = "pos-service-go"

	// SalesPartition is the single ordered stream every SaleCompleted event
	// is sequenced in.
	SalesPartition = "pos.sales"
)

// Dial connects to the broker with a bounded TCP dial.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

// QueueName is the durable queue this service binds for routingKey.
func QueueName(routingKey string) string {
	return serviceQueue(posServiceName, routingKey)
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}
