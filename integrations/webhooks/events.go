package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"farmchain/core/events"
	"farmchain/observability"
)

const (
	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultQueueSize   = 128
	defaultDrainWait   = 10 * time.Second

	// SignatureHeader carries the HMAC-SHA256 of the request body.
	SignatureHeader = "X-Farm-Signature"
	// EventHeader carries the event type of the delivery.
	EventHeader = "X-Farm-Event"
)

// Payload is the JSON body delivered for each pool event.
type Payload struct {
	Type       string            `json:"type"`
	DeliveryID string            `json:"deliveryId"`
	Attributes map[string]string `json:"attributes"`
	EmittedAt  time.Time         `json:"emittedAt"`
}

// Dispatcher forwards pool events to an HTTP endpoint with retry and
// exponential backoff. It implements events.Emitter; Emit never blocks and
// drops events when the queue is full.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
	now         func() time.Time
	drainWait   time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan delivery
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type delivery struct {
	eventType string
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithDrainTimeout bounds how long Close keeps delivering queued events.
func WithDrainTimeout(wait time.Duration) Option {
	return func(d *Dispatcher) {
		if wait > 0 {
			d.drainWait = wait
		}
	}
}

// WithLogger overrides the logger used to report failed deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		drainWait:   defaultDrainWait,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, defaultQueueSize),
		closing:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close stops accepting events and lets the worker finish the delivery in
// progress, then sends every queued event once without retries. Deliveries
// still pending when the drain timeout expires are aborted and counted as
// drops.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.closing)
		deadline := time.AfterFunc(d.drainWait, d.cancel)
		d.wg.Wait()
		deadline.Stop()
		d.cancel()
	})
}

// Emit implements events.Emitter.
func (d *Dispatcher) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if d == nil || rendered == nil {
		return
	}
	payload := Payload{
		Type:       rendered.Type,
		DeliveryID: uuid.NewString(),
		Attributes: rendered.Attributes,
		EmittedAt:  d.now(),
	}
	if err := d.enqueue(payload); err != nil {
		observability.Events().RecordDrop("webhook")
		d.logger.Warn("webhook event dropped", "type", payload.Type, "error", err)
	}
}

func (d *Dispatcher) enqueue(payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case <-d.closing:
		return errors.New("webhook: dispatcher closed")
	default:
	}
	select {
	case d.queue <- delivery{eventType: payload.Type, body: data}:
		return nil
	default:
		return errors.New("webhook: queue full")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.closing:
			d.drain()
			return
		}
	}
}

// drain sends the remaining queued events with a single attempt each.
func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.queue:
			if err := d.attempt(job); err != nil {
				d.drop(job, 1, err)
			}
		default:
			return
		}
	}
}

func (d *Dispatcher) attempt(job delivery) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	if d.client.Timeout <= 0 {
		return d.send(d.ctx, job)
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
	defer cancel()
	return d.send(ctx, job)
}

func (d *Dispatcher) drop(job delivery, attempts int, err error) {
	observability.Events().RecordDrop("webhook")
	d.logger.Error("webhook delivery failed", "type", job.eventType, "attempts", attempts, "error", err)
}

func (d *Dispatcher) process(job delivery) {
	backoff := d.minBackoff
	for attempt := 1; ; attempt++ {
		err := d.attempt(job)
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.drop(job, attempt, err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.closing:
			d.drop(job, attempt, err)
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, job.eventType)
	req.Header.Set(SignatureHeader, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
