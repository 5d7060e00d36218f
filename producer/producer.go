package producer

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"newswire/models"
)

// Producer publishes records to Kafka. It wraps a synchronous producer so
// that every record is acknowledged before the next one goes out; the
// volumes here are a few thousand messages per run, not a firehose.
type Producer struct {
	sp sarama.SyncProducer
}

func New(brokers []string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to kafka %v: %w", brokers, err)
	}
	return &Producer{sp: sp}, nil
}

// NewWithProducer wraps an existing sarama producer, used in tests
func NewWithProducer(sp sarama.SyncProducer) *Producer {
	return &Producer{sp: sp}
}

// Publish sends one record to the topic with a fresh UUID as message key
func (p *Producer) Publish(topic string, record models.Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.ID, err)
	}

	key := uuid.NewString()
	partition, offset, err := p.sp.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	log.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("Published record")

	return nil
}

func (p *Producer) Close() error {
	return p.sp.Close()
}
