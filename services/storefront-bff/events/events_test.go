package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeSNS struct {
	topic   string
	message []byte
	err     error
}

func (f *fakeSNS) Publish(ctx context.Context, topicArn string, message []byte) error {
	f.topic, f.message = topicArn, message
	return f.err
}

func sampleEvent() models.CheckoutEvent {
	return models.CheckoutEvent{
		Event:         "checkout.redirected",
		EventID:       "evt-1",
		UserID:        "u1",
		OrderID:       "ord-1",
		PaymentMethod: models.PaymentUPI,
		Items:         []models.CartLineItem{{ProductID: "p1", UnitPrice: decimal.NewFromInt(100), Quantity: 1}},
		Summary:       models.PriceSummary{Total: decimal.NewFromInt(160)},
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKafkaPublisher_KeysByUser(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "checkout.redirected"}

	require.NoError(t, p.PublishCheckout(context.Background(), sampleEvent()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("u1"), w.msgs[0].Key)
	assert.Equal(t, "event", w.msgs[0].Headers[0].Key)

	var decoded models.CheckoutEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "ord-1", decoded.OrderID)
	assert.True(t, decoded.Summary.Total.Equal(decimal.NewFromInt(160)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, topic: "t"}
	assert.ErrorIs(t, p.PublishCheckout(context.Background(), sampleEvent()), boom)
}

func TestSNSPublisher(t *testing.T) {
	client := &fakeSNS{}
	p := NewSNSPublisher(client, "arn:aws:sns:ap-south-1:000000000000:checkout")

	require.NoError(t, p.PublishCheckout(context.Background(), sampleEvent()))
	assert.Equal(t, "arn:aws:sns:ap-south-1:000000000000:checkout", client.topic)
	assert.Contains(t, string(client.message), `"event_id":"evt-1"`)

	client.err = errors.New("throttled")
	assert.Error(t, p.PublishCheckout(context.Background(), sampleEvent()))
}

func TestNew_SelectsSink(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	p, err := New(ctx, Options{Sink: "none"}, logger)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, p)

	p, err = New(ctx, Options{Sink: "KAFKA", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	_ = p.Close()

	_, err = New(ctx, Options{Sink: "kafka"}, logger)
	assert.Error(t, err)
	_, err = New(ctx, Options{Sink: "sns"}, logger)
	assert.Error(t, err)
	_, err = New(ctx, Options{Sink: "carrier-pigeon"}, logger)
	assert.Error(t, err)
}
