package services

import (
	"context"
	"time"

	"github.com/vastrakart/vastrakart-backend-go/gateway"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// validSignature is what stubGateway accepts for any order/payment pair.
const validSignature = "valid-signature"

type stubGateway struct {
	payments map[string]*gateway.Payment
	orders   map[string]*gateway.Order
	listed   []gateway.Payment
	listErr  error
	fetchErr error
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		payments: map[string]*gateway.Payment{},
		orders:   map[string]*gateway.Order{},
	}
}

func (s *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == validSignature
}

func (s *stubGateway) FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, &gateway.RejectedError{StatusCode: 404, Code: "BAD_REQUEST_ERROR", Description: "payment not found"}
	}
	return p, nil
}

func (s *stubGateway) FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, &gateway.RejectedError{StatusCode: 404, Code: "BAD_REQUEST_ERROR", Description: "order not found"}
	}
	return o, nil
}

func (s *stubGateway) ListPayments(ctx context.Context, from, to time.Time) ([]gateway.Payment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listed, nil
}

// recordingPublisher captures emitted events for assertions.
type recordingPublisher struct {
	completed []string
	recovered []string
}

func (r *recordingPublisher) OrderCompleted(ctx context.Context, userID string, order models.Order) {
	r.completed = append(r.completed, order.OrderID)
}

func (r *recordingPublisher) OrderRecovered(ctx context.Context, userID string, order models.Order) {
	r.recovered = append(r.recovered, order.OrderID)
}

func newTestUser(email string) models.User {
	return models.User{
		ID:             primitive.NewObjectID(),
		Name:           "Test User",
		Email:          email,
		Orders:         []models.Order{},
		Cart:           []string{},
		CartQuantities: map[string]int{},
		CartSizes:      map[string]string{},
		CreatedAt:      time.Now(),
	}
}

func newTestProduct(perSize int) models.Product {
	return models.Product{
		ID:        primitive.NewObjectID(),
		Name:      "Linen Kurta",
		Price:     1499,
		Inventory: models.DefaultInventory(perSize),
		CreatedAt: time.Now(),
	}
}

func seedStores() (*storage.MemoryUserStore, *storage.MemoryProductStore) {
	return storage.NewMemoryUserStore(), storage.NewMemoryProductStore()
}
