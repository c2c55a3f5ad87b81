package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Publisher sends domain events.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Config selects and configures the publisher backend.
type Config struct {
	KafkaBrokers []string
	Topic        string
	Logger       *slog.Logger
}

// WatermillPublisher publishes JSON events on a watermill publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	topic     string
}

// NewPublisher returns a Kafka publisher when brokers are configured and an
// in-process channel publisher otherwise. The channel publisher is returned
// too so callers can subscribe to it.
func NewPublisher(cfg Config) (*WatermillPublisher, *gochannel.GoChannel, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	wmLogger := watermill.NewSlogLogger(cfg.Logger)

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		return &WatermillPublisher{publisher: pub, logger: cfg.Logger, topic: cfg.Topic}, nil, nil
	}

	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	return &WatermillPublisher{publisher: ch, logger: cfg.Logger, topic: cfg.Topic}, ch, nil
}

func (p *WatermillPublisher) Publish(ctx context.Context, event *Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := message.NewMessage(event.ID, b)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("failed to publish event", "event_id", event.ID, "event_type", event.Type, "error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("published event", "event_id", event.ID, "event_type", event.Type, "topic", p.topic)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// MockPublisher records events in memory.
type MockPublisher struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Events returns the recorded events.
func (m *MockPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
