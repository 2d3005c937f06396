package mq

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTopicNotFound is returned by MetadataClient when the broker does not
	// (yet) know the requested topic.
	ErrTopicNotFound = errors.New("mq: topic not found in metadata")
	// ErrPartitionEOF signals that the consumer reached the current end of its
	// partition. It is informational, not a failure.
	ErrPartitionEOF = errors.New("mq: reached end of partition")
	// ErrClosed is returned by handles used after Close, or after the broker
	// client shut the handle down on its own. It is permanent.
	ErrClosed = errors.New("mq: handle is closed")
)

type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

type PublishResult struct {
	Partition int32
	Offset    int64
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) (PublishResult, error)
	Close() error
}

// PartitionConsumer reads a single, statically assigned topic partition.
// Poll returns (nil, nil) when no message arrived within timeout.
type PartitionConsumer interface {
	Poll(ctx context.Context, timeout time.Duration) (*Message, error)
	Close() error
}

type MetadataClient interface {
	Partitions(topic string) ([]int32, error)
	Close() error
}

// ClientFactory hands out dedicated handles; every call returns a new,
// unshared client.
type ClientFactory interface {
	NewPartitionConsumer(topic string, partition int32) (PartitionConsumer, error)
	NewPublisher() (Publisher, error)
}
