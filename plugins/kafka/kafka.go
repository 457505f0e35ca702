package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core"
)

func init() {
	broker.Register("kafka", func(cfg broker.Config) (core.Client, error) {
		opts := optsFromConfig(cfg)
		return New(opts...), nil
	})
}

// Client implements core.Client for Apache Kafka using segmentio/kafka-go.
//
// Design decisions:
//   - Producers send through a kafka.Client so every send reports the
//     partition and offset it was written to.
//   - One kafka.Reader per subscribed topic, each fetching in its own goroutine
//     and delivering one message at a time.
//   - Manual offset commit via CommitOffset; not committing causes redelivery
//     after rebalance or restart.
type Client struct {
	opts options
}

// New creates a Kafka Client.
func New(fns ...Option) *Client {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Client{opts: opts}
}

// NewProducer returns a producer for the brokers in cfg.ConnectionString.
func (c *Client) NewProducer(cfg core.ConnectionConfig) (core.Producer, error) {
	addrs, err := brokerAddrs(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	return &producer{addrs: addrs, opts: c.opts}, nil
}

// NewGroupConsumer returns a consumer-group member for the brokers in
// cfg.ConnectionString.
func (c *Client) NewGroupConsumer(cfg core.GroupConsumerConfig) (core.GroupConsumer, error) {
	addrs, err := brokerAddrs(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("eventbus/kafka: group id is required")
	}
	start, err := startOffset(cfg.StartingOffset)
	if err != nil {
		return nil, err
	}
	return &consumer{
		addrs:   addrs,
		group:   cfg.GroupID,
		start:   start,
		opts:    c.opts,
		logger:  c.opts.logger.With(zap.String("group", cfg.GroupID)),
		readers: make(map[string]*kafka.Reader),
	}, nil
}

// brokerAddrs splits a comma-separated connection string.
func brokerAddrs(conn string) ([]string, error) {
	var addrs []string
	for _, a := range strings.Split(conn, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("eventbus/kafka: at least one broker address is required")
	}
	return addrs, nil
}

// startOffset maps a core starting offset to a kafka-go reader offset.
// Consumer groups only support the earliest or latest policy.
func startOffset(off int64) (int64, error) {
	switch off {
	case core.EarliestOffset:
		return kafka.FirstOffset, nil
	case core.LatestOffset:
		return kafka.LastOffset, nil
	}
	return 0, fmt.Errorf("eventbus/kafka: starting offset %d not supported for consumer groups", off)
}

// optsFromConfig extracts options from the broker.Config.
func optsFromConfig(cfg broker.Config) []Option {
	opts := []Option{WithLogger(cfg.Logger)}
	if cfg.Extra == nil {
		return opts
	}
	if v, ok := cfg.Extra["max_bytes"].(int); ok {
		opts = append(opts, WithMaxBytes(v))
	}
	if v, ok := cfg.Extra["timeout"].(time.Duration); ok {
		opts = append(opts, WithTimeout(v))
	}
	if v, ok := cfg.Extra["balancer"].(string); ok {
		switch v {
		case "hash":
			opts = append(opts, WithBalancer(&kafka.Hash{}))
		case "round_robin":
			opts = append(opts, WithBalancer(&kafka.RoundRobin{}))
		}
	}
	return opts
}
