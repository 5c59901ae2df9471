package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yashrajoria/tomeshelf/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingSNS struct{}

func (failingSNS) Publish(context.Context, string, []byte) error {
	return errors.New("sns: throttled")
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            primitive.NewObjectID(),
		OwnerID:       primitive.NewObjectID(),
		Status:        models.OrderProcessing,
		PaymentStatus: models.PaymentPaid,
		PaymentMethod: models.PaymentCard,
		TotalAmount:   models.MoneyFromFloat(42),
	}
}

func TestOrderEventPublisher_Payload(t *testing.T) {
	sns := &fakeSNS{}
	p := NewOrderEventPublisher(sns, "arn:topic", nil)
	order := sampleOrder()

	p.Publish(context.Background(), EventOrderCreated, order)

	require.Equal(t, 1, sns.count())
	var got map[string]any
	require.NoError(t, json.Unmarshal(sns.messages[0], &got))
	assert.Equal(t, "order_created", got["type"])
	assert.Equal(t, order.ID.Hex(), got["orderId"])
	assert.Equal(t, order.OwnerID.Hex(), got["ownerId"])
	assert.Equal(t, "processing", got["status"])
	assert.Equal(t, "paid", got["paymentStatus"])
	assert.Equal(t, "card", got["paymentMethod"])
	assert.EqualValues(t, 42, got["totalAmount"])
}

func TestOrderEventPublisher_Disabled(t *testing.T) {
	sns := &fakeSNS{}
	NewOrderEventPublisher(sns, "", nil).Publish(context.Background(), EventOrderCreated, sampleOrder())
	assert.Zero(t, sns.count())

	var nilPublisher *OrderEventPublisher
	assert.NotPanics(t, func() {
		nilPublisher.Publish(context.Background(), EventOrderCreated, sampleOrder())
	})
}

func TestOrderEventPublisher_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewOrderEventPublisher(failingSNS{}, "arn:topic", zap.New(core))

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), EventOrderStatusUpdated, sampleOrder())
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Order event publish failed", logs.All()[0].Message)
}
