package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-ticketing/internal/clock"
)

const (
	defaultDialTimeout = 3 * time.Second
	redialBackoff      = 5 * time.Second
	heartbeat          = 10 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits before
// dialing a broker that recently refused or timed out.
var ErrBrokerUnavailable = errors.New("broker unavailable")

type dialFunc func(url string, timeout time.Duration) (*amqp.Connection, error)

func dialBroker(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Publisher sends purchase events to a durable queue on the default
// exchange. The connection is opened lazily and reopened after a failure;
// callers are expected to log publish errors rather than fail the request.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	dial        dialFunc
	clock       clock.Clock

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewPublisher returns a Publisher for queue on the broker at url. A dial
// gives up after dialTimeout, or earlier when the publish context ends;
// zero means 3s.
func NewPublisher(url, queue string, dialTimeout time.Duration) *Publisher {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &Publisher{
		url:         url,
		queue:       queue,
		dialTimeout: dialTimeout,
		dial:        dialBroker,
		clock:       clock.NewSystem(),
	}
}

// Publish marshals ev and sends it as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev PurchaseEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.connect(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.usable() {
		return fmt.Errorf("%w: connection lost", ErrBrokerUnavailable)
	}
	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.MessageID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// connect makes sure an open channel is cached. The dial runs without p.mu
// held, so a slow broker never queues other publishers behind the lock.
// After a failed dial no new dial starts until redialBackoff has passed.
func (p *Publisher) connect(ctx context.Context) error {
	p.mu.Lock()
	if p.usable() {
		p.mu.Unlock()
		return nil
	}
	if wait := p.retryAt.Sub(p.clock.Now()); wait > 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: next dial in %s", ErrBrokerUnavailable, wait.Round(time.Millisecond))
	}
	p.mu.Unlock()

	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	conn, ch, err := p.open(timeout)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.retryAt = p.clock.Now().Add(redialBackoff)
		return err
	}
	p.retryAt = time.Time{}
	if p.usable() {
		// a concurrent publisher connected first
		_ = conn.Close()
		return nil
	}
	p.reset()
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) open(timeout time.Duration) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := p.dial(p.url, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	return conn, ch, nil
}

// usable reports whether the cached channel is open. p.mu must be held.
func (p *Publisher) usable() bool {
	return p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed()
}

// reset drops the cached connection. p.mu must be held.
func (p *Publisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
