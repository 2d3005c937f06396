package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"MarketFlow/internal/modules/processor/infrastructure/mq"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers  []string
	ClientID string
	Version  sarama.KafkaVersion
	// InitialOffset is sarama.OffsetNewest or sarama.OffsetOldest.
	InitialOffset int64
}

// saramaPartitionConsumer owns one sarama.Consumer and exactly one
// PartitionConsumer on it. There is no group membership; the assignment is
// fixed for the lifetime of the handle.
type saramaPartitionConsumer struct {
	consumer  sarama.Consumer
	pc        sarama.PartitionConsumer
	topic     string
	partition int32

	next        int64
	eofReported bool

	closeOnce sync.Once
	closeErr  error
}

func NewPartitionConsumer(cfg ConsumerConfig, topic string, partition int32) (mq.PartitionConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka topic is empty")
	}

	c, err := sarama.NewConsumer(cfg.Brokers, newConsumerSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return newPartitionConsumer(c, topic, partition, initialOffset(cfg))
}

func newConsumerSaramaConfig(cfg ConsumerConfig) *sarama.Config {
	sc := newBaseSaramaConfig(cfg.Version, cfg.ClientID)
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = initialOffset(cfg)
	return sc
}

func initialOffset(cfg ConsumerConfig) int64 {
	if cfg.InitialOffset == sarama.OffsetOldest {
		return sarama.OffsetOldest
	}
	return sarama.OffsetNewest
}

func newPartitionConsumer(c sarama.Consumer, topic string, partition int32, offset int64) (*saramaPartitionConsumer, error) {
	pc, err := c.ConsumePartition(topic, partition, offset)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("consume %s[%d]: %w", topic, partition, err)
	}
	return &saramaPartitionConsumer{
		consumer:  c,
		pc:        pc,
		topic:     topic,
		partition: partition,
	}, nil
}

func (c *saramaPartitionConsumer) Poll(ctx context.Context, timeout time.Duration) (*mq.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m, ok := <-c.pc.Messages():
		if !ok {
			return nil, mq.ErrClosed
		}
		c.next = m.Offset + 1
		c.eofReported = false
		return toMessage(m), nil

	case cerr, ok := <-c.pc.Errors():
		if !ok {
			return nil, mq.ErrClosed
		}
		return nil, cerr

	case <-timer.C:
		// Caught up with the high-water mark: report it once, like a
		// partition EOF event, until new data arrives.
		hwm := c.pc.HighWaterMarkOffset()
		if !c.eofReported && c.next > 0 && c.next >= hwm {
			c.eofReported = true
			return nil, mq.ErrPartitionEOF
		}
		return nil, nil

	case <-ctx.Done():
		return nil, nil
	}
}

func toMessage(m *sarama.ConsumerMessage) *mq.Message {
	msg := &mq.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr == nil || len(hdr.Key) == 0 {
				continue
			}
			msg.Headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	return msg
}

// Close releases the partition consumer and its parent client. Safe to call
// more than once; only the first call does any work.
func (c *saramaPartitionConsumer) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		var errs []error
		if c.pc != nil {
			if err := c.pc.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.consumer != nil {
			if err := c.consumer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
