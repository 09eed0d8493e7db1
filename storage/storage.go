// Package storage holds the persistence interfaces the order engine runs on,
// with a MongoDB implementation for production and an in-memory one for tests.
// Every method is a single-document operation; there are no cross-document
// transactions anywhere in this layer.
package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("storage: not found")

// InventoryCounts is the snapshot a CompareAndSwapInventory call must match
// for the swap to apply.
type InventoryCounts struct {
	TotalQuantity int
	Sizes         map[string]int
}

// Snapshot captures the current counters of an inventory document.
func Snapshot(inv models.Inventory) InventoryCounts {
	sizes := make(map[string]int, len(inv.Sizes))
	for k, v := range inv.Sizes {
		sizes[k] = v
	}
	return InventoryCounts{TotalQuantity: inv.TotalQuantity, Sizes: sizes}
}

type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UserIDs(ctx context.Context) ([]primitive.ObjectID, error)

	// AppendOrderIfAbsent pushes the order onto the user's order list unless
	// an order with the same orderId (or, when set, paymentId) is already
	// there. Returns false without mutating when a duplicate exists.
	AppendOrderIfAbsent(ctx context.Context, userID primitive.ObjectID, order models.Order) (bool, error)

	// UpdateOrder replaces the embedded order matching order.OrderID in
	// place, conditional on the stored order still holding expectStatus.
	// Returns ErrNotFound when no order matches both, so a concurrent
	// status change makes the write a no-op instead of a lost update.
	UpdateOrder(ctx context.Context, userID primitive.ObjectID, order models.Order, expectStatus models.OrderStatus) error

	// ReplaceOrders overwrites the user's whole order list in one write.
	ReplaceOrders(ctx context.Context, userID primitive.ObjectID, orders []models.Order) error

	// ClearCart empties the cart arrays and the cart-side quantity/size maps.
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
}

type ProductStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	ProductIDs(ctx context.Context) ([]primitive.ObjectID, error)

	// SetInventory unconditionally overwrites the product's inventory document.
	SetInventory(ctx context.Context, id primitive.ObjectID, inv models.Inventory) error

	// CompareAndSwapInventory writes the updated inventory only when the
	// stored counters still equal the expected snapshot. Returns false when
	// a concurrent writer got there first.
	CompareAndSwapInventory(ctx context.Context, id primitive.ObjectID, expected InventoryCounts, updated models.Inventory) (bool, error)
}

type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)

	// RecordUsage appends a usage entry and bumps the counter, conditional on
	// the usage cap not being exhausted. Returns false when the cap is hit.
	RecordUsage(ctx context.Context, code string, maxUses int, usage models.CouponUsage) (bool, error)

	// ReleaseUsage removes the usage entry recorded for the order and gives
	// the use back to the cap. A no-op when no such usage exists.
	ReleaseUsage(ctx context.Context, code, orderID string) error
}
