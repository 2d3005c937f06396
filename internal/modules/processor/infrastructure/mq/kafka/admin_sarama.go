package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type TopicAdminConfig struct {
	Brokers  []string
	ClientID string
	Version  sarama.KafkaVersion
}

// EnsureTopics creates every missing topic with the given layout. Topics that
// already exist are left untouched.
func EnsureTopics(cfg TopicAdminConfig, topics []string, partitions int32, replicationFactor int16) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka brokers is empty")
	}
	if partitions <= 0 {
		partitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	admin, err := sarama.NewClusterAdmin(cfg.Brokers, newBaseSaramaConfig(cfg.Version, cfg.ClientID))
	if err != nil {
		return err
	}
	defer admin.Close()

	return ensureTopics(admin, topics, partitions, replicationFactor)
}

func ensureTopics(admin sarama.ClusterAdmin, topics []string, partitions int32, replicationFactor int16) error {
	existing, err := admin.ListTopics()
	if err != nil {
		return err
	}

	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return errors.New("kafka topic is empty")
		}
		if _, ok := existing[topic]; ok {
			continue
		}
		td := &sarama.TopicDetail{
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
			ConfigEntries: map[string]*string{
				"retention.ms": strPtr(strconv.FormatInt((7*24*time.Hour).Milliseconds(), 10)),
			},
		}
		if err := admin.CreateTopic(topic, td, false); err != nil {
			if errors.Is(err, sarama.ErrTopicAlreadyExists) {
				continue
			}
			return err
		}
	}
	return nil
}

func strPtr(v string) *string {
	s := v
	return &s
}
