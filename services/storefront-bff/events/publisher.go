package events

import (
	"context"
	"fmt"
	"strings"

	awspkg "github.com/jewelrybyluna/storefront/pkg/aws"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"go.uber.org/zap"
)

// Publisher sends checkout events to a sink.
type Publisher interface {
	PublishCheckout(ctx context.Context, event models.CheckoutEvent) error
	Close() error
}

// Sink names accepted by New.
const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkSNS   = "sns"
)

// Options configures the sink chosen by New.
type Options struct {
	Sink         string
	KafkaBrokers []string
	KafkaTopic   string
	TopicARN     string
}

// New builds the publisher for opts.Sink.
func New(ctx context.Context, opts Options, logger *zap.Logger) (Publisher, error) {
	switch strings.ToLower(opts.Sink) {
	case "", SinkNone:
		return NoopPublisher{}, nil
	case SinkKafka:
		if len(opts.KafkaBrokers) == 0 || opts.KafkaTopic == "" {
			return nil, fmt.Errorf("kafka sink needs brokers and topic")
		}
		logger.Info("checkout events go to kafka",
			zap.Strings("brokers", opts.KafkaBrokers),
			zap.String("topic", opts.KafkaTopic),
		)
		return NewKafkaPublisher(opts.KafkaBrokers, opts.KafkaTopic), nil
	case SinkSNS:
		if opts.TopicARN == "" {
			return nil, fmt.Errorf("sns sink needs a topic arn")
		}
		cfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("checkout events go to sns", zap.String("topic_arn", opts.TopicARN))
		return NewSNSPublisher(awspkg.NewSNSClient(cfg), opts.TopicARN), nil
	default:
		return nil, fmt.Errorf("unknown event sink %q", opts.Sink)
	}
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) PublishCheckout(context.Context, models.CheckoutEvent) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }
