// Package amqp carries ledger events and chat messages over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"agencyfund/internal/core"
	"agencyfund/internal/ledger"
	applog "agencyfund/internal/log"
)

var _ ledger.EventPublisher = (*Client)(nil)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	prefetch       = 1
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// channel is the part of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Topology names the direct exchange and the queues bound to it. Each
// queue is bound with its own name as routing key; empty names are skipped.
type Topology struct {
	Exchange string
	Events   string
	Inbound  string
	Replies  string
}

func (t Topology) queues() []string {
	var out []string
	for _, q := range []string{t.Events, t.Inbound, t.Replies} {
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}

type Client struct {
	url      string
	topology Topology
	logger   *slog.Logger

	mu          sync.Mutex
	conn        *amqp091.Connection
	channel     channel
	lastFailure time.Time

	state        int32
	failureCount int64
}

// NewClient dials the broker and declares the topology.
func NewClient(url string, topology Topology) (*Client, error) {
	c := &Client{
		url:      url,
		topology: topology,
		logger:   slog.Default().With(applog.FieldComponent, applog.ComponentAMQP),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClientWithChannel(ch channel, topology Topology) (*Client, error) {
	c := &Client{
		topology: topology,
		channel:  ch,
		logger:   slog.Default().With(applog.FieldComponent, applog.ComponentAMQP),
	}
	if err := setup(ch, topology); err != nil {
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(ch, c.topology); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.mu.Unlock()
	return nil
}

func setup(ch channel, t Topology) error {
	if err := ch.ExchangeDeclare(
		t.Exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range t.queues() {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return ch.Qos(prefetch, 0, false)
}

// reconnect replaces a broken connection. Clients built without a URL
// cannot reconnect.
func (c *Client) reconnect() error {
	if c.url == "" {
		return errors.New("no broker url to reconnect to")
	}
	c.closeConn()
	return c.connect()
}

func (c *Client) currentChannel() channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Client) publish(ctx context.Context, routingKey, msgType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, not publishing to %s", routingKey)
	}
	ch := c.currentChannel()
	if ch == nil {
		c.recordFailure()
		return errors.New("amqp channel is not connected")
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(pctx,
		c.topology.Exchange, // exchange
		routingKey,          // routing key
		false,               // mandatory
		false,               // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    uuid.NewString(),
			Type:         msgType,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			if rerr := c.reconnect(); rerr != nil {
				c.logger.WarnContext(ctx, "Reconnect after publish failure failed", applog.FieldError, rerr)
			}
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// PublishExpenseRecorded implements ledger.EventPublisher.
func (c *Client) PublishExpenseRecorded(ctx context.Context, f core.Fund, e core.Expense) error {
	return c.publishEvent(ctx, NewExpenseRecordedEvent(f, e))
}

// PublishFundCompleted implements ledger.EventPublisher.
func (c *Client) PublishFundCompleted(ctx context.Context, f core.Fund, s core.Settlement) error {
	return c.publishEvent(ctx, NewFundCompletedEvent(f, s))
}

func (c *Client) publishEvent(ctx context.Context, ev *LedgerEvent) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.publish(ctx, c.topology.Events, ev.Type, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published ledger event",
		applog.FieldEventType, ev.Type,
		applog.FieldFundID, ev.FundID,
		applog.FieldQueue, c.topology.Events)
	return nil
}

// PublishReply sends a reply to the outbound chat queue.
func (c *Client) PublishReply(ctx context.Context, userID, text string) error {
	return c.publishChat(ctx, c.topology.Replies, "chat.reply", userID, text)
}

// PublishInbound injects a user message as if it came from the chat channel.
func (c *Client) PublishInbound(ctx context.Context, userID, text string) error {
	return c.publishChat(ctx, c.topology.Inbound, "chat.inbound", userID, text)
}

func (c *Client) publishChat(ctx context.Context, queue, msgType, userID, text string) error {
	body, err := NewChatMessage(userID, text).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	return c.publish(ctx, queue, msgType, body)
}

// ConsumeEvents delivers ledger events to handler until ctx ends.
func (c *Client) ConsumeEvents(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	return consume(ctx, c, c.topology.Events, LedgerEventFromJSON, handler)
}

// ConsumeChat delivers inbound chat messages to handler until ctx ends.
func (c *Client) ConsumeChat(ctx context.Context, handler func(context.Context, *ChatMessage) error) error {
	return consume(ctx, c, c.topology.Inbound, ChatMessageFromJSON, handler)
}

// consume acks handled messages, drops undecodable ones and requeues
// messages whose handler failed.
func consume[T any](ctx context.Context, c *Client, queue string, decode func([]byte) (*T, error), handler func(context.Context, *T) error) error {
	ch := c.currentChannel()
	if ch == nil {
		return errors.New("amqp channel is not connected")
	}
	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	logger := c.logger.With(applog.FieldQueue, queue)
	logger.InfoContext(ctx, "Started consuming")

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}

			msg, err := decode(delivery.Body)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to decode message", applog.FieldError, err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(ctx, msg); err != nil {
				logger.ErrorContext(ctx, "Failed to handle message",
					applog.FieldError, err, "message_id", delivery.MessageId)
				delivery.Nack(false, true) // reject and requeue
				continue
			}
			delivery.Ack(false)
		}
	}
}

// Run keeps consume running across broker disconnects, backing off between
// attempts. It returns when ctx ends or consume fails for another reason.
func (c *Client) Run(ctx context.Context, loop func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := loop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Consumer lost connection, retrying",
			applog.FieldError, err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if rerr := c.reconnect(); rerr != nil {
			c.logger.WarnContext(ctx, "Reconnect failed", applog.FieldError, rerr)
			continue
		}
		attempt = -1
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

// Ready fails while the circuit breaker refuses to publish.
func (c *Client) Ready(context.Context) error {
	if c.isCircuitOpen() {
		return errors.New("amqp circuit breaker is open")
	}
	if c.currentChannel() == nil {
		return errors.New("amqp channel is not open")
	}
	return nil
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, errDeliveriesClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection", "closed", "eof", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.closeConn()
	return nil
}
