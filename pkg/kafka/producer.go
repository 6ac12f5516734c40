package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one event to publish. Values other than []byte and string are JSON encoded.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer publishes events through a single kafka-go writer shared by every topic.
type Producer struct {
	writer *kafka.Writer
	codec  string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.KeyHashing {
		balancer = &kafka.Hash{}
	}

	initProducerMetrics()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               balancer,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:            cfg.Retries,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.Linger,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: cfg.AutoCreateTopics,
	}
	if codec, ok := compressionCodec(cfg.Compression); ok {
		w.Compression = codec
	}
	if cfg.Async {
		onError := cfg.OnAsyncError
		w.Completion = func(msgs []kafka.Message, err error) {
			if len(msgs) == 0 {
				return
			}
			topic := msgs[0].Topic
			producerMsgsTotal.WithLabelValues(topic, outcome(err)).Add(float64(len(msgs)))
			if err != nil && onError != nil {
				onError(topic, len(msgs), err)
			}
		}
	}

	return &Producer{writer: w, codec: cfg.Compression}, nil
}

// PublishBatch writes messages to topic in one call. In async mode it returns once they are queued.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	out := make([]kafka.Message, len(messages))
	var size int
	for i, m := range messages {
		value, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", topic, err)
		}
		out[i] = kafka.Message{
			Topic:   topic,
			Key:     m.Key,
			Value:   value,
			Headers: toHeaders(m.Headers),
			Time:    now,
		}
		size += len(value)
	}

	err := p.writer.WriteMessages(ctx, out...)
	producerLatency.WithLabelValues(topic).Observe(time.Since(now).Seconds())
	producerBytesTotal.WithLabelValues(topic, p.codec).Add(float64(size))
	if !p.writer.Async {
		producerMsgsTotal.WithLabelValues(topic, outcome(err)).Add(float64(len(messages)))
	}
	if err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(messages), topic, err)
	}
	return nil
}

// Close flushes pending async writes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func compressionCodec(name string) (kafka.Compression, bool) {
	switch name {
	case "gzip":
		return kafka.Gzip, true
	case "snappy":
		return kafka.Snappy, true
	case "lz4":
		return kafka.Lz4, true
	case "zstd":
		return kafka.Zstd, true
	}
	return 0, false
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	producerMsgsTotal  *prometheus.CounterVec
	producerBytesTotal *prometheus.CounterVec
	producerLatency    *prometheus.HistogramVec
	producerOnce       sync.Once
)

func initProducerMetrics() {
	producerOnce.Do(func() {
		producerMsgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_kafka_messages_total",
			Help: "Events handed to Kafka by topic and result",
		}, []string{"topic", "result"})
		producerBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_kafka_bytes_total",
			Help: "Encoded event bytes by topic and compression codec",
		}, []string{"topic", "compression"})
		producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketbrief_kafka_write_seconds",
			Help:    "WriteMessages latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
