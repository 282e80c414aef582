package events

import (
	"context"
	"encoding/json"

	awspkg "github.com/jewelrybyluna/storefront/pkg/aws"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
)

// SNSPublisher fans checkout events out through an SNS topic.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicARN string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) PublishCheckout(ctx context.Context, event models.CheckoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topicARN, data)
}

func (p *SNSPublisher) Close() error { return nil }
