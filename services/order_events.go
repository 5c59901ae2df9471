package services

import (
	"context"
	"time"

	"github.com/yashrajoria/tomeshelf/models"
	awspkg "github.com/yashrajoria/tomeshelf/pkg/aws"

	"go.uber.org/zap"
)

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusUpdated = "order_status_updated"
)

type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OwnerID       string               `json:"ownerId"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	TotalAmount   models.Money         `json:"totalAmount"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// OrderEventPublisher fans order lifecycle events out on SNS. Publishing is best-effort:
// failures are logged and never fail the request.
type OrderEventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
	logger   *zap.Logger
}

func NewOrderEventPublisher(sns awspkg.SNSPublisher, topicArn string, logger *zap.Logger) *OrderEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderEventPublisher{sns: sns, topicArn: topicArn, logger: logger}
}

func (p *OrderEventPublisher) Publish(ctx context.Context, eventType string, order *models.Order) {
	if p == nil || p.sns == nil || p.topicArn == "" {
		return
	}
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID.Hex(),
		OwnerID:       order.OwnerID.Hex(),
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    time.Now().UTC(),
	}
	if err := awspkg.PublishJSON(ctx, p.sns, p.topicArn, event); err != nil {
		p.logger.Warn("Order event publish failed",
			zap.String("event", eventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
