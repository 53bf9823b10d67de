// Package messaging publishes complaint lifecycle events for downstream
// consumers (a notifier, dashboards). Publishing is optional and
// best-effort: a nil *Publisher is valid and drops every event.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName            = "civiceye.events"
	RoutingKeyCreated       = "complaint.created"
	RoutingKeyStatusUpdated = "complaint.status.updated"

	publishTimeout = 5 * time.Second
)

type ComplaintCreatedMessage struct {
	ComplaintID   string `json:"complaint_id"`
	IssueType     string `json:"issue_type"`
	SeverityScore int    `json:"severity_score"`
	ReporterID    string `json:"reporter_id"`
	ReporterName  string `json:"reporter_name"`
	Timestamp     int64  `json:"timestamp"`
}

type StatusUpdateMessage struct {
	ComplaintID string `json:"complaint_id"`
	NewStatus   string `json:"new_status"`
	Message     string `json:"message,omitempty"`
	UpdatedBy   string `json:"updated_by"`
	ReporterID  string `json:"reporter_id"`
	Timestamp   int64  `json:"timestamp"`
}

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
	mu      sync.Mutex
}

// NewPublisher connects to the broker and declares the topic exchange.
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, log: log}, nil
}

func (p *Publisher) publish(routingKey string, message any) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	p.log.Debug("event published", zap.String("routing_key", routingKey))
	return nil
}

func (p *Publisher) PublishComplaintCreated(msg ComplaintCreatedMessage) error {
	return p.publish(RoutingKeyCreated, msg)
}

func (p *Publisher) PublishStatusUpdate(msg StatusUpdateMessage) error {
	return p.publish(RoutingKeyStatusUpdated, msg)
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
