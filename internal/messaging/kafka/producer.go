package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer публикует события checkout в Kafka синхронно: вызывающий
// код узнаёт об ошибке доставки сразу.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам и возвращает готовый producer.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}

	sync, err := sarama.NewSyncProducer(brokers, saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka sync producer: %w", err)
	}

	return &Producer{sync: sync, logger: logger}, nil
}

// saramaConfig настраивает идемпотентную публикацию: подтверждение от
// всех реплик и одно in-flight соединение, как того требует sarama.
func saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Publish сериализует событие в JSON и отправляет его в topic. Непустой
// key закрепляет партицию: события одного заказа сохраняют порядок.
// Пустой key оставляет выбор партиции за балансировщиком sarama.
func (p *Producer) Publish(topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for topic %s: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(payload),
		Timestamp: time.Now().UTC(),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("kafka publish failed")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("event published")

	return nil
}

// Close останавливает producer. Безопасен для nil.
func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
