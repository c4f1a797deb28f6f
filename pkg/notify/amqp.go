// Package notify publishes report events to RabbitMQ.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Defaults for Config.
const (
	DefaultExchange   = "ledgerview"
	DefaultRoutingKey = "report.generated"
	publishTimeout    = 5 * time.Second
)

// Config holds the broker settings.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// channel is the subset of *amqp091.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends ReportGeneratedMessage events to a durable direct exchange.
type Publisher struct {
	conn       *amqp091.Connection
	ch         channel
	exchange   string
	routingKey string
	logger     *slog.Logger
	now        func() time.Time
}

// New dials the broker and declares the exchange and a queue bound to the
// routing key so events are retained until consumed.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, errors.New("AMQP URL is required")
	}
	cfg = withDefaults(cfg)

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	logger.Info("AMQP publisher ready", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey)

	p := newPublisher(ch, cfg, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, cfg Config, logger *slog.Logger) *Publisher {
	cfg = withDefaults(cfg)
	return &Publisher{
		ch:         ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
		now:        time.Now,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	return cfg
}

func setup(ch *amqp091.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.RoutingKey, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(cfg.RoutingKey, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// ReportGenerated publishes a persistent event for snap.
func (p *Publisher) ReportGenerated(ctx context.Context, snap api.ReportSnapshot, location string) error {
	msg := NewReportGeneratedMessage(snap, location, p.now())
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    snap.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.InfoContext(ctx, "published report event",
		"id", snap.ID,
		"sequence", snap.Sequence,
		"exchange", p.exchange,
		"routing_key", p.routingKey)
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
