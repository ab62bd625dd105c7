// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rabbitmq publishes transfer events to a durable topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/luxfi/log"
	"github.com/rabbitmq/amqp091-go"

	"github.com/luxfi/bridge/events"
)

const (
	DefaultExchange    = "bridge_events"
	defaultDialTimeout = 10 * time.Second
	exchangeKind       = "topic"
)

var (
	_ events.Publisher = (*Producer)(nil)

	errInvalidScheme    = errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	errConnectionClosed = errors.New("broker connection closed")
)

// Producer holds the connection and channel used for publishing.
type Producer struct {
	log      log.Logger
	exchange string

	lock    sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errInvalidScheme
	}
	return clean, nil
}

// New dials [amqpURL] and declares [exchange].
func New(amqpURL, exchange string, logger log.Logger) (*Producer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(defaultDialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}

	p := &Producer{
		log:      logger,
		exchange: exchange,
		conn:     conn,
	}
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Producer) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		p.exchange,   // name
		exchangeKind, // type
		true,         // durable
		false,        // autoDelete
		false,        // internal
		false,        // noWait
		nil,          // args
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare exchange %q: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish sends [event] with its type as routing key. A failed publish
// reopens the channel and is retried once.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.TransferID.String(),
		Timestamp:    time.Unix(event.Timestamp, 0),
		Body:         body,
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn("publish failed, reopening channel",
		log.String("exchange", p.exchange),
		log.String("routingKey", string(event.Type)),
		log.Err(err),
	)
	if reopenErr := p.openChannel(); reopenErr != nil {
		return errors.Join(err, reopenErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
}

// HealthCheck fails once the broker connection is gone.
func (p *Producer) HealthCheck(context.Context) (interface{}, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	details := map[string]string{"exchange": p.exchange}
	if p.conn == nil || p.conn.IsClosed() {
		return details, errConnectionClosed
	}
	return details, nil
}

// Close closes the channel and the connection.
func (p *Producer) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
