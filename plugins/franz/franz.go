// Package franz provides a broker client for Kafka-compatible brokers
// (Kafka, Redpanda) built on franz-go.
package franz

import (
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core"
)

func init() {
	broker.Register("franz", func(cfg broker.Config) (core.Client, error) {
		return New(optsFromConfig(cfg)...), nil
	})
}

// Client implements core.Client using franz-go.
type Client struct {
	opts options
}

// New creates a franz-go Client.
func New(fns ...Option) *Client {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Client{opts: opts}
}

// NewProducer returns a producer seeded with cfg.ConnectionString.
func (c *Client) NewProducer(cfg core.ConnectionConfig) (core.Producer, error) {
	seeds, err := seedBrokers(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	opts := []kgo.Opt{kgo.SeedBrokers(seeds...)}
	if c.opts.autoCreateTopics {
		opts = append(opts, kgo.AllowAutoTopicCreation())
	}
	opts = append(opts, c.opts.extra...)
	return &producer{seeds: seeds, kopts: opts, logger: c.opts.logger}, nil
}

// NewGroupConsumer returns a consumer-group member seeded with
// cfg.ConnectionString.
func (c *Client) NewGroupConsumer(cfg core.GroupConsumerConfig) (core.GroupConsumer, error) {
	seeds, err := seedBrokers(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("eventbus/franz: group id is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeResetOffset(resetOffset(cfg.StartingOffset)),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}
	opts = append(opts, c.opts.extra...)
	return newConsumer(cfg.GroupID, opts, c.opts.logger), nil
}

func seedBrokers(conn string) ([]string, error) {
	var seeds []string
	for _, s := range strings.Split(conn, ",") {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("eventbus/franz: at least one seed broker is required")
	}
	return seeds, nil
}

// resetOffset maps a core starting offset to where the group starts when it
// has no committed offset.
func resetOffset(off int64) kgo.Offset {
	switch {
	case off == core.EarliestOffset:
		return kgo.NewOffset().AtStart()
	case off == core.LatestOffset:
		return kgo.NewOffset().AtEnd()
	case off >= 0:
		return kgo.NewOffset().At(off)
	}
	return kgo.NewOffset().AtStart()
}

func optsFromConfig(cfg broker.Config) []Option {
	opts := []Option{WithLogger(cfg.Logger)}
	if v, ok := cfg.Extra["auto_create_topics"].(bool); ok {
		opts = append(opts, WithAutoTopicCreation(v))
	}
	return opts
}
