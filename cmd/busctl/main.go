// Package main provides busctl, a command line tool for publishing to and
// subscribing on any registered broker.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus"
	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core/middleware"

	// Import plugins to trigger self-registration via init()
	_ "github.com/miladsoleymani/eventbus/plugins/franz"
	_ "github.com/miladsoleymani/eventbus/plugins/kafka"
	_ "github.com/miladsoleymani/eventbus/plugins/nats"
	_ "github.com/miladsoleymani/eventbus/plugins/rabbitmq"
)

var (
	brokerName string
	connString string
	verbose    bool

	logger *zap.Logger
	client eventbus.Client
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "busctl",
	Short: "busctl - publish and subscribe to events on a message broker",
	Long: `busctl talks to Kafka, NATS JetStream or RabbitMQ through the same
publish/subscribe API.

Flags fall back to the EVENTBUS_BROKER and EVENTBUS_CONNECTION
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if brokerName == "" {
			brokerName = os.Getenv("EVENTBUS_BROKER")
		}
		if connString == "" {
			connString = os.Getenv("EVENTBUS_CONNECTION")
		}
		if brokerName == "" {
			return fmt.Errorf("broker is required (one of %s)", strings.Join(broker.Names(), ", "))
		}

		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		client, err = broker.Create(brokerName, broker.Config{Logger: logger})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <event> [payload]",
	Short: "Publish one event; the payload is read from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload []byte
		if len(args) == 2 {
			payload = []byte(args[1])
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			payload = b
		}

		pub := eventbus.NewPublisher(client, eventbus.WithLogger(logger))
		defer pub.Close()

		results, err := pub.Publish(cmd.Context(), eventbus.PublishRequest{
			EventName: args[0],
			Buffer:    payload,
			Config:    eventbus.ConnectionConfig{ConnectionString: connString},
		})
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\n", r.Topic, r.Partition, r.Offset)
		}
		return nil
	},
}

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <event>",
	Short: "Print every event delivered to the consumer group named after the event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		sub := eventbus.NewSubscriber(client,
			eventbus.WithLogger(logger),
			eventbus.WithMiddleware(middleware.Recovery(logger), middleware.Logging(logger)),
		)

		err := sub.Subscribe(ctx, eventbus.SubscribeRequest{
			EventName: args[0],
			Config:    eventbus.ConnectionConfig{ConnectionString: connString},
			Handler: func(_ context.Context, value []byte) error {
				_, err := fmt.Fprintln(out, string(value))
				return err
			},
		})
		if err != nil {
			return err
		}

		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&brokerName, "broker", "b", "", "broker name (env EVENTBUS_BROKER)")
	rootCmd.PersistentFlags().StringVarP(&connString, "connection", "c", "", "broker connection string (env EVENTBUS_CONNECTION)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(subscribeCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
