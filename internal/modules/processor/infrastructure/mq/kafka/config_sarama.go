package kafka

import (
	"fmt"
	"strings"

	"github.com/IBM/sarama"
)

var DefaultVersion = sarama.V2_8_0_0

func newBaseSaramaConfig(version sarama.KafkaVersion, clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = DefaultVersion
	if version != (sarama.KafkaVersion{}) {
		sc.Version = version
	}
	if id := strings.TrimSpace(clientID); id != "" {
		sc.ClientID = id
	}
	return sc
}

// ParseVersion accepts an empty string (DefaultVersion) or a dotted Kafka
// version such as "3.6.0".
func ParseVersion(v string) (sarama.KafkaVersion, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultVersion, nil
	}
	version, err := sarama.ParseKafkaVersion(v)
	if err != nil {
		return sarama.KafkaVersion{}, fmt.Errorf("kafka version %q: %w", v, err)
	}
	return version, nil
}

// ParseInitialOffset maps "newest"/"oldest" to the sarama offset constants.
func ParseInitialOffset(v string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "newest", "latest":
		return sarama.OffsetNewest, nil
	case "oldest", "earliest":
		return sarama.OffsetOldest, nil
	default:
		return 0, fmt.Errorf("kafka initial offset %q: want newest or oldest", v)
	}
}

// ParseRequiredAcks maps "all"/"leader" to sarama.RequiredAcks. Publishing is
// synchronous, so an unacknowledged mode is rejected.
func ParseRequiredAcks(v string) (sarama.RequiredAcks, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "all", "-1":
		return sarama.WaitForAll, nil
	case "leader", "local", "1":
		return sarama.WaitForLocal, nil
	default:
		return 0, fmt.Errorf("kafka required acks %q: want all or leader", v)
	}
}
