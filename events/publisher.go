// Package events publishes order lifecycle events for the notification
// service. Delivery is fire-and-forget: the order path never fails because
// the broker is down.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/models"
)

const exchange = "orders"

type orderEvent struct {
	Type      string       `json:"type"`
	UserID    string       `json:"userId"`
	Order     models.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logrus.Entry
}

// NewPublisher connects to the broker and declares the orders exchange.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{
		conn:    conn,
		channel: channel,
		log:     logrus.WithField("component", "events"),
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) OrderCompleted(ctx context.Context, userID string, order models.Order) {
	p.publish(ctx, "order.completed", userID, order)
}

func (p *Publisher) OrderRecovered(ctx context.Context, userID string, order models.Order) {
	p.publish(ctx, "order.recovered", userID, order)
}

func (p *Publisher) publish(ctx context.Context, routingKey, userID string, order models.Order) {
	body, err := json.Marshal(orderEvent{
		Type:      routingKey,
		UserID:    userID,
		Order:     order,
		Timestamp: time.Now(),
	})
	if err != nil {
		p.log.WithError(err).Error("failed to encode order event")
		return
	}

	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.log.WithError(err).WithField("event", routingKey).Error("failed to publish order event")
	}
}
