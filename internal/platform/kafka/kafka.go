// Package kafka wraps the franz-go client with the small producer surface the
// outbox worker needs, plus startup topic provisioning.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"vaultcore/internal/platform/logger"
)

type Config struct {
	Brokers  []string
	ClientID string

	// TopicPartitions and TopicReplication apply when EnsureTopics creates a
	// missing topic.
	TopicPartitions  int32
	TopicReplication int16
}

type Producer struct {
	client *kgo.Client
	cfg    Config
	log    *logger.Logger
}

// NewProducer connects to the brokers and verifies reachability with a ping.
func NewProducer(ctx context.Context, cfg Config, log *logger.Logger) (*Producer, error) {
	if log == nil {
		log = logger.Nop()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka brokers: %w", err)
	}
	return &Producer{client: client, cfg: cfg, log: log}, nil
}

// Publish produces one record synchronously. Records with the same key land
// on the same partition, preserving per-aggregate ordering.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopics creates any missing topics with the configured partition and
// replication counts. Existing topics are left untouched.
func (p *Producer) EnsureTopics(ctx context.Context, topics ...string) error {
	adm := kadm.NewClient(p.client)

	resps, err := adm.CreateTopics(ctx, p.cfg.TopicPartitions, p.cfg.TopicReplication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
		if resp.Err == nil {
			p.log.Info().Str("topic", resp.Topic).Msg("kafka topic created")
		}
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
