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

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	errMalformed        = errors.New("malformed message")
	errDeliveriesClosed = errors.New("delivery channel closed")
)

// Topology is the exchange and the queues the client declares. Each queue is
// bound to the exchange with its own name as routing key.
type Topology struct {
	Exchange        string
	EventsQueue     string
	GenerationQueue string
}

func (t Topology) queues() []string {
	var out []string
	for _, q := range []string{t.EventsQueue, t.GenerationQueue} {
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}

// Client publishes and consumes ledger messages. It reconnects lazily after a
// broken connection, and a circuit breaker stops publish attempts for a while
// after repeated failures so that callers are not slowed down by a dead broker.
type Client struct {
	url          string
	exchangeName string
	topology     Topology

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	stateMu      sync.Mutex
	lastFailure  time.Time
}

func NewClient(url string, topology Topology) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: topology.Exchange,
		topology:     topology,
	}
	if _, err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureChannel returns the open channel, dialing again if the connection
// was lost.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.topology); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn, c.channel = conn, channel
	slog.Info("Connected to AMQP broker", "exchange", c.exchangeName, "queues", c.topology.queues())
	return channel, nil
}

func setup(ch *amqp091.Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "direct", true, false, false, false, nil); err != nil {
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
	return nil
}

// PublishLedgerEvent routes an event to the events queue.
func (c *Client) PublishLedgerEvent(ctx context.Context, ev *LedgerEvent) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.publish(ctx, c.topology.EventsQueue, body); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Published ledger event", "event_id", ev.ID, "kind", ev.Kind, "entity_id", ev.EntityID)
	return nil
}

// PublishGenerationRequest routes a batch trigger to the generation queue.
func (c *Client) PublishGenerationRequest(ctx context.Context, req *GenerationRequest) error {
	body, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal generation request: %w", err)
	}
	if err := c.publish(ctx, c.topology.GenerationQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published generation request", "request_id", req.ID, "dry_run", req.DryRun, "type", req.Type)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, not publishing to %s", routingKey)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeLedgerEvents blocks delivering events to handler until ctx ends.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	return c.consume(ctx, c.topology.EventsQueue, decoding(LedgerEventFromJSON, handler))
}

// ConsumeGenerationRequests blocks delivering batch triggers to handler
// until ctx ends.
func (c *Client) ConsumeGenerationRequests(ctx context.Context, handler func(context.Context, *GenerationRequest) error) error {
	return c.consume(ctx, c.topology.GenerationQueue, decoding(GenerationRequestFromJSON, handler))
}

// decoding adapts a typed handler to raw delivery bodies. Bodies that do not
// decode are reported as malformed.
func decoding[T any](decode func([]byte) (*T, error), handler func(context.Context, *T) error) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		msg, err := decode(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		return handler(ctx, msg)
	}
}

// settlement is what happens to a delivery after its handler returns.
type settlement int

const (
	settleAck settlement = iota
	settleDrop
	settleRequeue
)

func settle(err error) settlement {
	switch {
	case err == nil:
		return settleAck
	case errors.Is(err, errMalformed):
		return settleDrop
	default:
		return settleRequeue
	}
}

// consume keeps a consumer alive across broker restarts, backing off
// between reconnection attempts.
func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) error) error {
	attempt := 0
	for {
		started, err := c.consumeOnce(ctx, queue, handle)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !errors.Is(err, errDeliveriesClosed) && !isConnectionError(err) {
			return err
		}
		if started {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting", "queue", queue, "error", err, "backoff", wait)
		c.reset()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handle func(context.Context, []byte) error) (bool, error) {
	ch, err := c.ensureChannel()
	if err != nil {
		return false, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return false, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, errDeliveriesClosed
			}
			err := handle(ctx, delivery.Body)
			switch settle(err) {
			case settleAck:
				delivery.Ack(false)
			case settleDrop:
				slog.ErrorContext(ctx, "Dropping malformed message", "queue", queue, "error", err)
				delivery.Nack(false, false)
			default:
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
				delivery.Nack(false, true)
			}
		}
	}
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
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
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.stateMu.Lock()
	c.lastFailure = time.Now()
	c.stateMu.Unlock()
	if n >= maxFailures && atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
		slog.Warn("AMQP circuit breaker opened", "failures", n, "open_for", openTimeout)
	}
}

// isCircuitOpen reports whether publishing is suspended. An open circuit
// turns half-open once openTimeout has passed, letting one attempt through.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.stateMu.Lock()
	last := c.lastFailure
	c.stateMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
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
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
