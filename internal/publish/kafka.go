package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the record published for every analyzed report.
type Event struct {
	ReportID    string      `json:"report_id"`
	ReportName  string      `json:"report_name,omitempty"`
	AnalyzedAt  time.Time   `json:"analyzed_at"`
	Parameters  interface{} `json:"parameters"`
	Query       string      `json:"query,omitempty"`
	Loaded      bool        `json:"loaded"`
	FailedCount int         `json:"failed_categories"`
}

// Publisher emits analysis events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish call, including writer retries.
const DefaultPublishTimeout = 5 * time.Second

type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	Timeout time.Duration
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	log.Printf("Publishing analysis events to Kafka topic %s at %s", topic, broker)
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: DefaultPublishTimeout,
		},
		topic:   topic,
		Timeout: DefaultPublishTimeout,
	}
}

// Message encodes an event keyed by report ID, so one report always lands on one partition.
func Message(ev Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event for report %s: %w", ev.ReportID, err)
	}
	return kafka.Message{Key: []byte(ev.ReportID), Value: data}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish report %s to %s: %w", ev.ReportID, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }
func (Nop) Close() error                                { return nil }
