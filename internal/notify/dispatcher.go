package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/easyhotel/easyhotel/internal/events"
)

const (
	// MaxConnectAttempts bounds Start.
	MaxConnectAttempts = 5
	// DefaultConnectDelay separates connection attempts.
	DefaultConnectDelay = 5 * time.Second
)

var (
	ErrConnectionExhausted = errors.New("notify: connection attempts exhausted")
	ErrNotConnected        = errors.New("notify: dispatcher not connected")
	errMissingField        = errors.New("missing required field")
)

// Outcomes of handling one message.
const (
	OutcomeHandled   = "handled"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// State of the dispatcher's subscription.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Subscriber opens an event subscription; *events.KafkaSubscriber satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context) (events.Subscription, error)
}

// Recorder counts handled events.
type Recorder interface {
	ObserveEvent(eventType, outcome string)
}

// Config wires a Dispatcher.
type Config struct {
	Subscriber         Subscriber
	Notifier           Notifier
	Logger             *slog.Logger
	Recorder           Recorder
	HotelName          string
	MaxConnectAttempts int
	ConnectDelay       time.Duration
	// Wait overrides the delay between connection attempts.
	Wait func(ctx context.Context, d time.Duration) error
}

type handlerFunc func(ctx context.Context, evt events.DomainEvent, fields map[string]any) error

// Dispatcher consumes domain events one at a time and sends the matching notifications.
type Dispatcher struct {
	subscriber   Subscriber
	notifier     Notifier
	logger       *slog.Logger
	recorder     Recorder
	hotelName    string
	maxAttempts  int
	connectDelay time.Duration
	wait         func(ctx context.Context, d time.Duration) error
	handlers     map[string]handlerFunc

	mu    sync.Mutex
	state State
	sub   events.Subscription
}

// NewDispatcher validates cfg and builds a disconnected Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Subscriber == nil {
		return nil, errors.New("notify: subscriber required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notify: notifier required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = MaxConnectAttempts
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = DefaultConnectDelay
	}
	if cfg.Wait == nil {
		cfg.Wait = sleep
	}
	if cfg.HotelName == "" {
		cfg.HotelName = "Easy Hotel"
	}
	d := &Dispatcher{
		subscriber:   cfg.Subscriber,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger,
		recorder:     cfg.Recorder,
		hotelName:    cfg.HotelName,
		maxAttempts:  cfg.MaxConnectAttempts,
		connectDelay: cfg.ConnectDelay,
		wait:         cfg.Wait,
	}
	d.handlers = map[string]handlerFunc{
		events.TypeReservationCreated:    d.reservationCreated,
		events.TypeReservationCheckedIn:  d.checkedIn,
		events.TypeReservationCheckedOut: d.checkedOut,
		events.TypePaymentProcessed:      d.paymentProcessed,
	}
	return d, nil
}

// State reports whether the dispatcher holds a subscription.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start opens the subscription, retrying with a fixed delay. After the last failed
// attempt it returns ErrConnectionExhausted wrapping the final error.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.State() == StateConnected {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		sub, err := d.subscriber.Subscribe(ctx)
		if err == nil {
			d.mu.Lock()
			d.sub = sub
			d.state = StateConnected
			d.mu.Unlock()
			d.logger.Info("event consumer connected", slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		d.logger.Error("event consumer connect failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", d.maxAttempts),
			slog.Any("error", err),
		)
		if attempt == d.maxAttempts {
			break
		}
		if werr := d.wait(ctx, d.connectDelay); werr != nil {
			return werr
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConnectionExhausted, d.maxAttempts, lastErr)
}

// Run fetches and handles messages in delivery order until ctx is done or the
// subscription is closed. Each message is committed after it has been handled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	sub := d.sub
	connected := d.state == StateConnected
	d.mu.Unlock()
	if !connected || sub == nil {
		return ErrNotConnected
	}

	for {
		msg, err := sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || d.State() == StateDisconnected {
				return nil
			}
			return fmt.Errorf("fetch event: %w", err)
		}
		d.Handle(ctx, msg)
		if err := sub.Commit(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Warn("commit event failed",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err),
			)
		}
	}
}

// Handle processes a single message and reports the outcome. It never panics.
func (d *Dispatcher) Handle(ctx context.Context, msg events.Message) (outcome string) {
	eventType := ""
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				slog.String("topic", msg.Topic),
				slog.String("type", eventType),
				slog.Any("panic", r),
			)
			outcome = OutcomeFailed
		}
		if d.recorder != nil {
			d.recorder.ObserveEvent(eventType, outcome)
		}
	}()

	evt, err := events.Decode(msg.Value)
	if err != nil {
		d.logger.Warn("malformed event", slog.String("topic", msg.Topic), slog.Any("error", err))
		return OutcomeMalformed
	}
	eventType = evt.Type
	log := d.logger.With(
		slog.String("topic", msg.Topic),
		slog.String("event_id", evt.ID),
		slog.String("type", evt.Type),
	)

	handler, ok := d.handlers[evt.Type]
	if !ok {
		log.Info("unhandled event type dropped")
		return OutcomeIgnored
	}
	fields, err := evt.Fields()
	if err != nil {
		log.Warn("malformed event", slog.Any("error", err))
		return OutcomeMalformed
	}
	if err := handler(ctx, evt, fields); err != nil {
		if errors.Is(err, errMissingField) {
			log.Warn("malformed event", slog.Any("error", err))
			return OutcomeMalformed
		}
		log.Error("notification failed", slog.Any("error", err))
		return OutcomeFailed
	}
	log.Info("notifications processed", slog.Any("reservation_id", fields["reservationId"]))
	return OutcomeHandled
}

// Stop closes the subscription. Close failures are logged only.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.state = StateDisconnected
	d.mu.Unlock()
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		d.logger.Error("event consumer close failed", slog.Any("error", err))
		return
	}
	d.logger.Info("event consumer stopped")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
