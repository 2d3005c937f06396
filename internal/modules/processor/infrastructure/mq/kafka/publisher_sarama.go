package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"MarketFlow/internal/modules/processor/infrastructure/mq"

	"github.com/IBM/sarama"
)

type PublisherConfig struct {
	Brokers      []string
	ClientID     string
	Version      sarama.KafkaVersion
	RequiredAcks sarama.RequiredAcks
	RetryMax     int
}

type saramaPublisher struct {
	p sarama.SyncProducer
}

func NewSaramaPublisher(cfg PublisherConfig) (mq.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}

	p, err := sarama.NewSyncProducer(cfg.Brokers, newPublisherSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return newPublisherFromProducer(p), nil
}

func newPublisherSaramaConfig(cfg PublisherConfig) *sarama.Config {
	sc := newBaseSaramaConfig(cfg.Version, cfg.ClientID)
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	if cfg.RequiredAcks != 0 {
		sc.Producer.RequiredAcks = cfg.RequiredAcks
	}
	sc.Producer.Retry.Max = 10
	if cfg.RetryMax > 0 {
		sc.Producer.Retry.Max = cfg.RetryMax
	}
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	// idempotence needs acks from all in-sync replicas
	sc.Producer.Idempotent = sc.Producer.RequiredAcks == sarama.WaitForAll
	if sc.Producer.Idempotent {
		sc.Net.MaxOpenRequests = 1
	}
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	return sc
}

func newPublisherFromProducer(p sarama.SyncProducer) *saramaPublisher {
	return &saramaPublisher{p: p}
}

// Publish blocks until the broker acknowledged the message or the producer
// gave up on it.
func (s *saramaPublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return mq.PublishResult{}, ctx.Err()
		default:
		}
	}
	if strings.TrimSpace(msg.Topic) == "" {
		return mq.PublishResult{}, errors.New("kafka topic is empty")
	}

	m := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Value),
	}
	if len(msg.Key) > 0 {
		m.Key = sarama.ByteEncoder(msg.Key)
	}

	if len(msg.Headers) > 0 {
		m.Headers = make([]sarama.RecordHeader, 0, len(msg.Headers))
		for k, v := range msg.Headers {
			kk := strings.TrimSpace(k)
			if kk == "" {
				continue
			}
			m.Headers = append(m.Headers, sarama.RecordHeader{
				Key:   []byte(kk),
				Value: []byte(v),
			})
		}
	}

	partition, offset, err := s.p.SendMessage(m)
	if err != nil {
		return mq.PublishResult{}, err
	}
	return mq.PublishResult{Partition: partition, Offset: offset}, nil
}

func (s *saramaPublisher) Close() error {
	if s == nil || s.p == nil {
		return nil
	}
	return s.p.Close()
}
