package kafka

import (
	"MarketFlow/internal/modules/processor/infrastructure/mq"
	"MarketFlow/pkg/util"
)

// Factory builds the dedicated consumer and producer handles of a partition
// worker. Every handle gets its own client id so broker-side logs can tell
// the workers apart.
type Factory struct {
	Consumer  ConsumerConfig
	Publisher PublisherConfig
}

func NewFactory(consumer ConsumerConfig, publisher PublisherConfig) *Factory {
	return &Factory{Consumer: consumer, Publisher: publisher}
}

func (f *Factory) NewPartitionConsumer(topic string, partition int32) (mq.PartitionConsumer, error) {
	cfg := f.Consumer
	cfg.ClientID = util.ClientID(cfg.ClientID, "consumer")
	return NewPartitionConsumer(cfg, topic, partition)
}

func (f *Factory) NewPublisher() (mq.Publisher, error) {
	cfg := f.Publisher
	cfg.ClientID = util.ClientID(cfg.ClientID, "producer")
	return NewSaramaPublisher(cfg)
}
