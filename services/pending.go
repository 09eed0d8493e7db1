package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultDraftTTL is how long an unpaid checkout draft survives.
const DefaultDraftTTL = 30 * time.Minute

// DraftInput is the checkout payload a draft is created from. OrderID is the
// gateway-issued order identifier.
type DraftInput struct {
	OrderID         string
	Amount          float64
	Currency        string
	Items           []string
	ItemDetails     []models.ItemDetail
	ShippingAddress models.ShippingAddress
	CouponCode      string
	Discount        float64
}

// PendingOrders creates and looks up short-lived checkout drafts embedded in
// the user document.
type PendingOrders struct {
	users storage.UserStore
	ttl   time.Duration
	log   *logrus.Entry
}

func NewPendingOrders(users storage.UserStore, ttl time.Duration) *PendingOrders {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &PendingOrders{
		users: users,
		ttl:   ttl,
		log:   logrus.WithField("component", "pending_orders"),
	}
}

// Create appends a pending draft to the user's order list. A checkout retry
// with an orderId that already exists returns the existing draft instead of
// duplicating it.
func (s *PendingOrders) Create(ctx context.Context, userID primitive.ObjectID, in DraftInput) (*models.Order, error) {
	if in.OrderID == "" {
		return nil, validationf("orderId is required")
	}
	if in.Amount <= 0 {
		return nil, validationf("amount must be positive")
	}

	now := time.Now()
	order := models.Order{
		OrderID:         in.OrderID,
		Status:          models.OrderStatusPending,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Items:           in.Items,
		ItemDetails:     in.ItemDetails,
		ShippingAddress: in.ShippingAddress,
		CouponCode:      in.CouponCode,
		Discount:        in.Discount,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}

	appended, err := s.users.AppendOrderIfAbsent(ctx, userID, order)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !appended {
		return s.Get(ctx, userID, in.OrderID)
	}

	s.log.WithFields(logrus.Fields{
		"user":  userID.Hex(),
		"order": in.OrderID,
	}).Info("pending order created")
	return &order, nil
}

// Get returns the user's order with the given gateway order id.
func (s *PendingOrders) Get(ctx context.Context, userID primitive.ObjectID, orderID string) (*models.Order, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	order := user.FindOrder(orderID, "")
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
