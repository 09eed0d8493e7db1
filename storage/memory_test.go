package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAppendOrderIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()

	user := models.User{ID: primitive.NewObjectID(), Email: "ada@example.com"}
	store.Put(user)

	order := models.Order{OrderID: "order_a", PaymentID: "pay_1", Status: models.OrderStatusPending, CreatedAt: time.Now()}
	appended, err := store.AppendOrderIfAbsent(ctx, user.ID, order)
	require.NoError(t, err)
	assert.True(t, appended)

	// Same orderId: refused.
	appended, err = store.AppendOrderIfAbsent(ctx, user.ID, models.Order{OrderID: "order_a"})
	require.NoError(t, err)
	assert.False(t, appended)

	// Same paymentId under a new orderId: also refused.
	appended, err = store.AppendOrderIfAbsent(ctx, user.ID, models.Order{OrderID: "order_b", PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.False(t, appended)

	// Fresh identifiers go through.
	appended, err = store.AppendOrderIfAbsent(ctx, user.ID, models.Order{OrderID: "order_c", PaymentID: "pay_2"})
	require.NoError(t, err)
	assert.True(t, appended)

	stored, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Orders, 2)

	_, err = store.AppendOrderIfAbsent(ctx, primitive.NewObjectID(), order)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderPinsStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()

	user := models.User{ID: primitive.NewObjectID(), Email: "ada@example.com"}
	user.Orders = []models.Order{
		{OrderID: "order_a", Status: models.OrderStatusPending, CreatedAt: time.Now()},
	}
	store.Put(user)

	promoted := user.Orders[0]
	promoted.Status = models.OrderStatusCompleted
	promoted.PaymentID = "pay_1"
	require.NoError(t, store.UpdateOrder(ctx, user.ID, promoted, models.OrderStatusPending))

	// A second promotion of the same draft finds no pending order left.
	err := store.UpdateOrder(ctx, user.ID, promoted, models.OrderStatusPending)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Orders[0].Status)
	assert.Equal(t, "pay_1", stored.Orders[0].PaymentID)
}

func TestReleaseCouponUsage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCouponStore()
	store.Put(models.Coupon{Code: "ONCE", MaxUses: 1, Active: true})

	recorded, err := store.RecordUsage(ctx, "ONCE", 1, models.CouponUsage{OrderID: "order_a"})
	require.NoError(t, err)
	require.True(t, recorded)

	require.NoError(t, store.ReleaseUsage(ctx, "ONCE", "order_a"))

	coupon, err := store.GetByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, coupon.UsedCount)
	assert.Empty(t, coupon.Uses)

	// Releasing the use reopens the cap.
	recorded, err = store.RecordUsage(ctx, "ONCE", 1, models.CouponUsage{OrderID: "order_b"})
	require.NoError(t, err)
	assert.True(t, recorded)

	// Unknown usages are a no-op.
	require.NoError(t, store.ReleaseUsage(ctx, "ONCE", "order_zzz"))
	require.NoError(t, store.ReleaseUsage(ctx, "NOPE", "order_a"))
}

func TestCompareAndSwapInventory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProductStore()

	product := models.Product{ID: primitive.NewObjectID(), Inventory: models.DefaultInventory(5)}
	store.Put(product)

	loaded, err := store.GetByID(ctx, product.ID)
	require.NoError(t, err)

	expected := Snapshot(loaded.Inventory)
	updated := loaded.Inventory
	updated.Sizes["M"] = 3
	updated.TotalQuantity = 18

	swapped, err := store.CompareAndSwapInventory(ctx, product.ID, expected, updated)
	require.NoError(t, err)
	assert.True(t, swapped)

	// The snapshot is now stale; a second swap with it must fail.
	swapped, err = store.CompareAndSwapInventory(ctx, product.ID, expected, updated)
	require.NoError(t, err)
	assert.False(t, swapped)

	stored, err := store.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Inventory.Sizes["M"])
	assert.Equal(t, 18, stored.Inventory.TotalQuantity)
}

func TestStoresReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProductStore()

	product := models.Product{ID: primitive.NewObjectID(), Inventory: models.DefaultInventory(5)}
	store.Put(product)

	loaded, err := store.GetByID(ctx, product.ID)
	require.NoError(t, err)
	loaded.Inventory.Sizes["M"] = 0

	reloaded, err := store.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Inventory.Sizes["M"])
}
