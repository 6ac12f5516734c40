package repository

import (
	"context"
	"fmt"

	"MarketBrief/internal/domain/models"
	pkgkafka "MarketBrief/pkg/kafka"
	applogger "MarketBrief/pkg/logger"
)

// MessagePublisher is the part of *pkgkafka.Producer the publishers need. The producer is closed by its owner.
type MessagePublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

const (
	outcomeEventType = "run.outcome"
	logEventType     = "log.aggregate"
)

// OutcomeEvent is the message written for every finished run.
type OutcomeEvent struct {
	Status  string                  `json:"status"`
	Outcome *models.PipelineOutcome `json:"outcome"`
}

// KafkaOutcomePublisher streams outcomes keyed by run ID.
type KafkaOutcomePublisher struct {
	producer MessagePublisher
	topic    string
}

func NewKafkaOutcomePublisher(p MessagePublisher, topic string) *KafkaOutcomePublisher {
	return &KafkaOutcomePublisher{producer: p, topic: topic}
}

func (p *KafkaOutcomePublisher) PublishOutcome(ctx context.Context, o *models.PipelineOutcome) error {
	msg := pkgkafka.Message{
		Key:   []byte(o.RunID),
		Value: OutcomeEvent{Status: o.Status(), Outcome: o},
		Headers: map[string]string{
			"event":   outcomeEventType,
			"status":  o.Status(),
			"trigger": o.Trigger,
		},
	}
	if err := p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{msg}); err != nil {
		return fmt.Errorf("publish outcome %s: %w", o.RunID, err)
	}
	return nil
}

// NoopOutcomePublisher is used when Kafka is disabled.
type NoopOutcomePublisher struct{}

func (NoopOutcomePublisher) PublishOutcome(context.Context, *models.PipelineOutcome) error {
	return nil
}

// KafkaLogPublisher ships aggregated log entries for the logger's collector.
type KafkaLogPublisher struct {
	producer MessagePublisher
	topic    string
}

func NewKafkaLogPublisher(p MessagePublisher, topic string) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: p, topic: topic}
}

func (p *KafkaLogPublisher) PublishLogs(ctx context.Context, entries []applogger.AggregatedLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(entries))
	for i, e := range entries {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(e.Level),
			Value:   e,
			Headers: map[string]string{"event": logEventType},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}
