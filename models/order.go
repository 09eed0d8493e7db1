package models

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusExpired   OrderStatus = "expired"
)

// legalTransitions is the single authority on status changes. Completed
// orders never move again; expired drafts are deleted, not resurrected.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusCompleted, OrderStatusExpired},
}

// Transition moves an order to the target status or rejects the change.
func Transition(o *Order, to OrderStatus) error {
	for _, allowed := range legalTransitions[o.Status] {
		if allowed == to {
			o.Status = to
			return nil
		}
	}
	return fmt.Errorf("illegal order status transition %q -> %q", o.Status, to)
}

// ItemDetail is one purchased line: product, size and quantity.
type ItemDetail struct {
	ProductID string `bson:"productId" json:"productId"`
	Size      string `bson:"size" json:"size"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

type ShippingAddress struct {
	Name       string `bson:"name,omitempty" json:"name,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}

// RecoveryMetadata marks orders that were rebuilt from the payment gateway
// rather than created by a live checkout, plus any manual admin repairs.
type RecoveryMetadata struct {
	RecoveredFromGateway bool              `bson:"recoveredFromGateway" json:"recoveredFromGateway"`
	RecoveredAt          time.Time         `bson:"recoveredAt,omitempty" json:"recoveredAt,omitempty"`
	GatewayNotes         map[string]string `bson:"gatewayNotes,omitempty" json:"gatewayNotes,omitempty"`
	ManualProductUpdate  bool              `bson:"manualProductUpdate,omitempty" json:"manualProductUpdate,omitempty"`
	ManualAddressUpdate  bool              `bson:"manualAddressUpdate,omitempty" json:"manualAddressUpdate,omitempty"`
	ManualUpdatedAt      time.Time         `bson:"manualUpdatedAt,omitempty" json:"manualUpdatedAt,omitempty"`
}

// Order lives embedded in the user document. OrderID and PaymentID are
// gateway-issued and each unique within one user's order list; a second
// occurrence of either is a duplicate to be removed, never an update.
type Order struct {
	OrderID         string            `bson:"orderId" json:"orderId"`
	PaymentID       string            `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Status          OrderStatus       `bson:"status" json:"status"`
	Amount          float64           `bson:"amount" json:"amount"`
	Currency        string            `bson:"currency" json:"currency"`
	Items           []string          `bson:"items" json:"items"`
	ItemDetails     []ItemDetail      `bson:"itemDetails" json:"itemDetails"`
	ShippingAddress ShippingAddress   `bson:"shippingAddress,omitempty" json:"shippingAddress,omitempty"`
	CouponCode      string            `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	Discount        float64           `bson:"discount,omitempty" json:"discount,omitempty"`
	Tracking        string            `bson:"tracking,omitempty" json:"tracking,omitempty"`
	Recovery        *RecoveryMetadata `bson:"recovery,omitempty" json:"recovery,omitempty"`
	CreatedAt       time.Time         `bson:"createdAt" json:"createdAt"`
	ExpiresAt       time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

// Expired reports whether a pending draft's TTL has passed.
func (o Order) Expired(now time.Time) bool {
	return o.Status == OrderStatusPending && !o.ExpiresAt.IsZero() && o.ExpiresAt.Before(now)
}

// Matches reports whether either gateway identifier collides with the given
// pair. Empty identifiers never match.
func (o Order) Matches(orderID, paymentID string) bool {
	if orderID != "" && o.OrderID == orderID {
		return true
	}
	if paymentID != "" && o.PaymentID == paymentID {
		return true
	}
	return false
}
