package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one delivered record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64

	raw kafka.Message
}

// Subscription yields messages in delivery order and acknowledges them.
type Subscription interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// SubscriberConfig configures a consumer group subscription.
type SubscriberConfig struct {
	Brokers     []string
	GroupID     string
	Topics      []string
	DialTimeout time.Duration
}

// KafkaSubscriber opens consumer group subscriptions.
type KafkaSubscriber struct {
	cfg  SubscriberConfig
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewKafkaSubscriber validates cfg.
func NewKafkaSubscriber(cfg SubscriberConfig) (*KafkaSubscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka subscriber requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka subscriber requires group id")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka subscriber requires at least one topic")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	dialer := &kafka.Dialer{Timeout: cfg.DialTimeout}
	return &KafkaSubscriber{
		cfg: cfg,
		dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, address)
		},
	}, nil
}

// Subscribe checks that a broker is reachable and joins the consumer group.
// New groups start at the latest offset.
func (s *KafkaSubscriber) Subscribe(ctx context.Context) (Subscription, error) {
	var lastErr error
	reachable := false
	for _, broker := range s.cfg.Brokers {
		conn, err := s.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		reachable = true
		break
	}
	if !reachable {
		return nil, fmt.Errorf("connect kafka: %w", lastErr)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		GroupID:     s.cfg.GroupID,
		GroupTopics: s.cfg.Topics,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &kafkaSubscription{reader: reader}, nil
}

type kafkaSubscription struct {
	reader *kafka.Reader
}

func (s *kafkaSubscription) Fetch(ctx context.Context) (Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:     m.Topic,
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
		raw:       m,
	}, nil
}

func (s *kafkaSubscription) Commit(ctx context.Context, msg Message) error {
	return s.reader.CommitMessages(ctx, msg.raw)
}

func (s *kafkaSubscription) Close() error {
	return s.reader.Close()
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes envelopes keyed by event id to the topic of their type.
type KafkaPublisher struct {
	writer messageWriter
	source string
	now    func() time.Time
}

// NewKafkaPublisher builds a publisher that stamps events with source.
func NewKafkaPublisher(brokers []string, source string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		source: source,
		now:    time.Now,
	}, nil
}

// Publish wraps data in a new envelope and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, data any) (DomainEvent, error) {
	evt, err := NewEvent(eventType, p.source, data, p.now())
	if err != nil {
		return DomainEvent{}, err
	}
	if err := p.PublishEvent(ctx, evt); err != nil {
		return DomainEvent{}, err
	}
	return evt, nil
}

// PublishEvent writes an existing envelope.
func (p *KafkaPublisher) PublishEvent(ctx context.Context, evt DomainEvent) error {
	if evt.Type == "" || evt.ID == "" {
		return errors.New("publish event: id and type required")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicFor(evt.Type),
		Key:   []byte(evt.ID),
		Value: payload,
		Time:  evt.Timestamp,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
