// README: RabbitMQ publisher for booking lifecycle events. Reopens the connection when the broker drops it.
package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type connectFunc func() (amqpChannel, io.Closer, error)

// Publisher sends JSON messages to one topic exchange over a single channel.
type Publisher struct {
	exchange string
	connect  connectFunc

	mu   sync.Mutex
	conn io.Closer
	ch   amqpChannel
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	return newPublisher(exchange, dialChannel(url))
}

func newPublisher(exchange string, connect connectFunc) (*Publisher, error) {
	p := &Publisher{exchange: exchange, connect: connect}
	if err := p.reconnect(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialChannel(url string) connectFunc {
	return func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(30 * time.Second),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial failed: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq: failed to open channel: %w", err)
		}
		return ch, conn, nil
	}
}

// reconnect must be called with mu held (or before the publisher is shared).
func (p *Publisher) reconnect() error {
	p.closeLocked()
	ch, conn, err := p.connect()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", p.exchange, err)
	}
	p.ch, p.conn = ch, conn
	return nil
}

// Publish marshals v to JSON and publishes it persistently under routingKey.
// A closed channel is reopened once per call; a failed reopen is retried on the next call.
func (p *Publisher) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	reopened := false
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.reconnect(); err != nil {
			return fmt.Errorf("publish: reconnect: %w", err)
		}
		reopened = true
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) && !reopened {
		if rerr := p.reconnect(); rerr != nil {
			return fmt.Errorf("publish: reconnect: %w", rerr)
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
