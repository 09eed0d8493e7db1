package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFinalizePromotesDraftAndClearsCart(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	events := &recordingPublisher{}
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), events)

	product := newTestProduct(5)
	products.Put(product)

	user := newTestUser("ada@example.com")
	user.Cart = []string{product.ID.Hex()}
	user.CartQuantities = map[string]int{product.ID.Hex(): 2}
	user.CartSizes = map[string]string{product.ID.Hex(): "M"}
	user.Orders = []models.Order{{
		OrderID: "order_abc",
		Status:  models.OrderStatusPending,
		Amount:  2998,
		Items:   []string{product.ID.Hex()},
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 2},
		},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}}
	users.Put(user)

	result, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, models.OrderStatusCompleted, result.Order.Status)
	assert.Equal(t, "pay_xyz", result.Order.PaymentID)
	assert.True(t, result.Order.ExpiresAt.IsZero())

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Orders, 1)
	assert.Equal(t, models.OrderStatusCompleted, stored.Orders[0].Status)
	assert.Empty(t, stored.Cart)
	assert.Empty(t, stored.CartQuantities)

	invProduct, err := products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, invProduct.Inventory.Sizes["M"])
	assert.Equal(t, 18, invProduct.Inventory.TotalQuantity)

	assert.Equal(t, []string{"order_abc"}, events.completed)
}

func TestFinalizeInsufficientStockLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	product := newTestProduct(1)
	products.Put(product)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID: "order_abc",
		Status:  models.OrderStatusPending,
		Amount:  2998,
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 2},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	_, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Orders[0].Status)

	invProduct, err := products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, invProduct.Inventory.Sizes["M"])
}

func TestFinalizeMultiLineRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	first := newTestProduct(5)
	second := newTestProduct(0) // nothing in stock
	products.Put(first)
	products.Put(second)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID: "order_multi",
		Status:  models.OrderStatusPending,
		Amount:  4497,
		ItemDetails: []models.ItemDetail{
			{ProductID: first.ID.Hex(), Size: "L", Quantity: 3},
			{ProductID: second.ID.Hex(), Size: "S", Quantity: 1},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	_, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_multi",
		PaymentID: "pay_multi",
		Signature: validSignature,
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// The first line's deduction was compensated.
	stored, err := products.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Inventory.Sizes["L"])
	assert.Equal(t, 20, stored.Inventory.TotalQuantity)

	history := stored.Inventory.History
	require.Len(t, history, 4)
	assert.Equal(t, "order_reduce", history[0].Action)
	assert.Equal(t, "finalize_rollback", history[2].Action)
	assert.Equal(t, "system", history[2].Actor)
}

func TestFinalizeRetryIsNoOp(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	product := newTestProduct(5)
	products.Put(product)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID: "order_abc",
		Status:  models.OrderStatusPending,
		Amount:  1499,
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 1},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	in := FinalizeInput{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: validSignature}
	first, err := fin.Finalize(ctx, user.ID, in)
	require.NoError(t, err)
	assert.False(t, first.AlreadyCompleted)

	second, err := fin.Finalize(ctx, user.ID, in)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, first.Order.OrderID, second.Order.OrderID)

	// The retry must not deduct again.
	stored, err := products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Inventory.Sizes["M"])
}

func TestFinalizeRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	user := newTestUser("ada@example.com")
	users.Put(user)

	_, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: "forged",
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFinalizeRequiresIdentifiers(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	var vErr *ValidationError
	_, err := fin.Finalize(ctx, primitive.NewObjectID(), FinalizeInput{
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	assert.ErrorAs(t, err, &vErr)
}

func TestFinalizeUnknownUser(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	_, err := fin.Finalize(ctx, primitive.NewObjectID(), FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFinalizeSynthesizesOrderWithoutDraft(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	fin := NewFinalizer(users, NewLedger(products), nil, newStubGateway(), nil)

	product := newTestProduct(5)
	products.Put(product)

	user := newTestUser("ada@example.com")
	users.Put(user)

	result, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_new",
		PaymentID: "pay_new",
		Signature: validSignature,
		Amount:    1499,
		Currency:  "INR",
		Items:     []string{product.ID.Hex()},
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "S", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, result.Order.Status)
	assert.Equal(t, 1499.0, result.Order.Amount)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Orders, 1)
	assert.Equal(t, "order_new", stored.Orders[0].OrderID)
}

func TestFinalizeRedeemsCouponCarriedByCheckoutDraft(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	store := couponStoreWith(models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountFlat,
		DiscountValue: 100,
		MaxUses:       1,
		Active:        true,
	})
	fin := NewFinalizer(users, NewLedger(products), NewCoupons(store), newStubGateway(), nil)

	product := newTestProduct(5)
	products.Put(product)

	// The draft exactly as checkout writes it: net amount, discount recorded.
	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID:    "order_abc",
		Status:     models.OrderStatusPending,
		Amount:     900,
		CouponCode: "ONCE",
		Discount:   100,
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 1},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	in := FinalizeInput{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: validSignature}
	result, err := fin.Finalize(ctx, user.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 900.0, result.Order.Amount)
	assert.Equal(t, 100.0, result.Order.Discount)

	coupon, err := store.GetByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)
	require.Len(t, coupon.Uses, 1)
	assert.Equal(t, "order_abc", coupon.Uses[0].OrderID)

	// A retried finalize is a no-op and must not record a second usage.
	retry, err := fin.Finalize(ctx, user.ID, in)
	require.NoError(t, err)
	assert.True(t, retry.AlreadyCompleted)

	coupon, err = store.GetByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)
	assert.Len(t, coupon.Uses, 1)
}

func TestFinalizeCouponCapRefusalRestoresStock(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	store := couponStoreWith(models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountFlat,
		DiscountValue: 100,
		MaxUses:       1,
		UsedCount:     1,
		Active:        true,
	})
	fin := NewFinalizer(users, NewLedger(products), NewCoupons(store), newStubGateway(), nil)

	product := newTestProduct(5)
	products.Put(product)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID:    "order_abc",
		Status:     models.OrderStatusPending,
		Amount:     900,
		CouponCode: "ONCE",
		Discount:   100,
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 2},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	_, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	var rejected *CouponRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "usage limit reached", rejected.Reason)

	// The staged deduction was compensated and the draft is untouched.
	stored, err := products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Inventory.Sizes["M"])

	storedUser, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, storedUser.Orders[0].Status)
}

func TestFinalizeStockRefusalDoesNotConsumeCoupon(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	store := couponStoreWith(models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountFlat,
		DiscountValue: 100,
		MaxUses:       1,
		Active:        true,
	})
	fin := NewFinalizer(users, NewLedger(products), NewCoupons(store), newStubGateway(), nil)

	product := newTestProduct(1)
	products.Put(product)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID:    "order_abc",
		Status:     models.OrderStatusPending,
		Amount:     900,
		CouponCode: "ONCE",
		Discount:   100,
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 2},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	_, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	coupon, err := store.GetByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, coupon.UsedCount)
	assert.Empty(t, coupon.Uses)
}

func TestFinalizeAppliesCouponFromDraft(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	coupons := NewCoupons(couponStoreWith(models.Coupon{
		Code:          "WELCOME10",
		DiscountType:  models.DiscountPercent,
		DiscountValue: 10,
		Active:        true,
	}))
	fin := NewFinalizer(users, NewLedger(products), coupons, newStubGateway(), nil)

	product := newTestProduct(5)
	products.Put(product)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{{
		OrderID:    "order_abc",
		Status:     models.OrderStatusPending,
		Amount:     1000,
		CouponCode: "WELCOME10",
		ItemDetails: []models.ItemDetail{
			{ProductID: product.ID.Hex(), Size: "M", Quantity: 1},
		},
		CreatedAt: time.Now(),
	}}
	users.Put(user)

	result, err := fin.Finalize(ctx, user.ID, FinalizeInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: validSignature,
	})
	require.NoError(t, err)
	assert.Equal(t, 900.0, result.Order.Amount)
	assert.Equal(t, 100.0, result.Order.Discount)
	assert.Equal(t, "WELCOME10", result.Order.CouponCode)
}
