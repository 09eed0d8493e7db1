package services

import (
	"context"
	"time"

	"github.com/vastrakart/vastrakart-backend-go/gateway"
	"github.com/vastrakart/vastrakart-backend-go/models"
)

// PaymentGateway is the slice of the gateway client the order engine needs.
// *gateway.Client satisfies it; tests substitute a stub.
type PaymentGateway interface {
	VerifySignature(orderID, paymentID, signature string) bool
	FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
	FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	ListPayments(ctx context.Context, from, to time.Time) ([]gateway.Payment, error)
}

// EventPublisher fans completed and recovered orders out to the notification
// service. Implementations must never block the order path on failure.
type EventPublisher interface {
	OrderCompleted(ctx context.Context, userID string, order models.Order)
	OrderRecovered(ctx context.Context, userID string, order models.Order)
}
