package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketFlow/internal/modules/processor/infrastructure/mq"

	"github.com/IBM/sarama"
)

type MetadataConfig struct {
	Brokers  []string
	ClientID string
	Version  sarama.KafkaVersion
	Timeout  time.Duration
}

type saramaMetadataClient struct {
	client sarama.Client
}

func NewMetadataClient(cfg MetadataConfig) (mq.MetadataClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}

	sc := newBaseSaramaConfig(cfg.Version, cfg.ClientID)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sc.Metadata.Timeout = timeout
	sc.Metadata.AllowAutoTopicCreation = false
	// retries belong to the caller's fetch policy
	sc.Metadata.Retry.Max = 0

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return &saramaMetadataClient{client: client}, nil
}

func (m *saramaMetadataClient) Partitions(topic string) ([]int32, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka topic is empty")
	}

	if err := m.client.RefreshMetadata(topic); err != nil {
		return nil, mapMetadataErr(topic, err)
	}
	partitions, err := m.client.Partitions(topic)
	if err != nil {
		return nil, mapMetadataErr(topic, err)
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("%w: %s", mq.ErrTopicNotFound, topic)
	}
	return partitions, nil
}

func mapMetadataErr(topic string, err error) error {
	if errors.Is(err, sarama.ErrUnknownTopicOrPartition) {
		return fmt.Errorf("%w: %s", mq.ErrTopicNotFound, topic)
	}
	return fmt.Errorf("fetch metadata for %s: %w", topic, err)
}

func (m *saramaMetadataClient) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
