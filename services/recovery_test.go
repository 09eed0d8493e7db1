package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vastrakart/vastrakart-backend-go/gateway"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
)

func capturedPayment(id, orderID, email string, amountMinor int64, created time.Time) gateway.Payment {
	return gateway.Payment{
		ID:        id,
		OrderID:   orderID,
		Amount:    amountMinor,
		Currency:  "INR",
		Status:    gateway.PaymentCaptured,
		Email:     email,
		CreatedAt: created.Unix(),
	}
}

func TestTraceFindsMissingOrders(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	now := time.Now()
	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{
		{OrderID: "order_known", PaymentID: "pay_known", Status: models.OrderStatusCompleted, CreatedAt: now},
	}
	users.Put(user)

	gw.listed = []gateway.Payment{
		capturedPayment("pay_known", "order_known", "ada@example.com", 149900, now),
		capturedPayment("pay_lost", "order_lost", "ada@example.com", 299800, now),
		// Failed payments are not recoverable sales.
		{ID: "pay_failed", OrderID: "order_failed", Status: "failed", CreatedAt: now.Unix()},
	}

	report, err := rec.Trace(ctx, now.Add(-time.Hour), now.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.GatewayPayments)
	assert.Equal(t, 1, report.LocalOrders)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "pay_lost", report.Missing[0].PaymentID)
	assert.Equal(t, 2998.0, report.Missing[0].Amount)
}

func TestTraceRejectsInvertedWindow(t *testing.T) {
	ctx := context.Background()
	rec := NewRecovery(storage.NewMemoryUserStore(), newStubGateway(), nil)

	now := time.Now()
	var vErr *ValidationError
	_, err := rec.Trace(ctx, now, now.Add(-time.Hour), nil)
	assert.ErrorAs(t, err, &vErr)
}

func TestRecoverOneRebuildsOrder(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	events := &recordingPublisher{}
	rec := NewRecovery(users, gw, events)

	user := newTestUser("ada@example.com")
	users.Put(user)

	created := time.Now().Add(-48 * time.Hour)
	payment := capturedPayment("pay_lost", "order_lost", "ada@example.com", 299800, created)
	payment.Notes = map[string]string{
		"items": "prod1:M:2|prod2:L:1",
		"name":  "Ada",
		"phone": "9999999999",
		"city":  "Pune",
	}
	gw.payments["pay_lost"] = &payment

	order, existed, err := rec.RecoverOne(ctx, "pay_lost", "", "")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "order_lost", order.OrderID)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, 2998.0, order.Amount)
	assert.WithinDuration(t, created, order.CreatedAt, time.Second)

	require.Len(t, order.ItemDetails, 2)
	assert.Equal(t, models.ItemDetail{ProductID: "prod1", Size: "M", Quantity: 2}, order.ItemDetails[0])
	assert.Equal(t, models.ItemDetail{ProductID: "prod2", Size: "L", Quantity: 1}, order.ItemDetails[1])
	assert.Equal(t, "Ada", order.ShippingAddress.Name)
	assert.Equal(t, "Pune", order.ShippingAddress.City)

	require.NotNil(t, order.Recovery)
	assert.True(t, order.Recovery.RecoveredFromGateway)
	assert.False(t, order.Recovery.RecoveredAt.IsZero())

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Orders, 1)
	assert.Equal(t, []string{"order_lost"}, events.recovered)
}

func TestRecoverOneExistingIsNoOp(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{
		{OrderID: "order_lost", PaymentID: "pay_lost", Status: models.OrderStatusCompleted, CreatedAt: time.Now()},
	}
	users.Put(user)

	payment := capturedPayment("pay_lost", "order_lost", "ada@example.com", 299800, time.Now())
	gw.payments["pay_lost"] = &payment

	_, existed, err := rec.RecoverOne(ctx, "pay_lost", "", "")
	require.NoError(t, err)
	assert.True(t, existed)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Orders, 1)
}

func TestRecoverOneWithoutNotesLeavesItemsEmpty(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	user := newTestUser("ada@example.com")
	users.Put(user)

	payment := capturedPayment("pay_bare", "order_bare", "ada@example.com", 149900, time.Now())
	gw.payments["pay_bare"] = &payment

	order, existed, err := rec.RecoverOne(ctx, "pay_bare", "", "")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Empty(t, order.Items)
	assert.Empty(t, order.ItemDetails)
	assert.NotEmpty(t, order.Tracking)
}

func TestRecoverOneResolvesUserByParamOverGateway(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	target := newTestUser("real-buyer@example.com")
	users.Put(target)

	// Gateway recorded a different (stale) email.
	payment := capturedPayment("pay_lost", "order_lost", "old-address@example.com", 149900, time.Now())
	gw.payments["pay_lost"] = &payment

	_, _, err := rec.RecoverOne(ctx, "pay_lost", "", "real-buyer@example.com")
	require.NoError(t, err)

	stored, err := users.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Orders, 1)
}

func TestRecoverOneCannotResolveUser(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	payment := capturedPayment("pay_anon", "order_anon", "", 149900, time.Now())
	gw.payments["pay_anon"] = &payment

	_, _, err := rec.RecoverOne(ctx, "pay_anon", "", "")
	assert.ErrorIs(t, err, ErrCannotResolveUser)
}

func TestRecoveryNeverDeductsInventory(t *testing.T) {
	ctx := context.Background()
	users, products := seedStores()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	product := newTestProduct(5)
	products.Put(product)

	user := newTestUser("ada@example.com")
	users.Put(user)

	payment := capturedPayment("pay_lost", "order_lost", "ada@example.com", 149900, time.Now())
	payment.Notes = map[string]string{"items": product.ID.Hex() + ":M:2"}
	gw.payments["pay_lost"] = &payment

	_, _, err := rec.RecoverOne(ctx, "pay_lost", "", "")
	require.NoError(t, err)

	// The sale already happened; stock was shipped long ago.
	stored, err := products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Inventory.Sizes["M"])
}

func TestRepairManualFieldsWin(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{
		{OrderID: "order_lost", PaymentID: "pay_lost", Status: models.OrderStatusCompleted, CreatedAt: time.Now()},
	}
	users.Put(user)

	payment := capturedPayment("pay_lost", "order_lost", "ada@example.com", 149900, time.Now())
	payment.Notes = map[string]string{"items": "gwprod:S:1", "city": "Pune"}
	gw.payments["pay_lost"] = &payment

	manualAddr := &models.ShippingAddress{Name: "Ada", City: "Mumbai"}
	order, err := rec.Repair(ctx, "ada@example.com", "order_lost", RepairInput{
		ReprocessFromGateway: true,
		ManualProducts: []models.ItemDetail{
			{ProductID: "manualprod", Size: "L", Quantity: 3},
		},
		ManualAddress: manualAddr,
	})
	require.NoError(t, err)

	// Manual corrections override whatever the gateway notes yielded.
	require.Len(t, order.ItemDetails, 1)
	assert.Equal(t, "manualprod", order.ItemDetails[0].ProductID)
	assert.Equal(t, []string{"manualprod"}, order.Items)
	assert.Equal(t, "Mumbai", order.ShippingAddress.City)

	require.NotNil(t, order.Recovery)
	assert.True(t, order.Recovery.ManualProductUpdate)
	assert.True(t, order.Recovery.ManualAddressUpdate)
	assert.False(t, order.Recovery.ManualUpdatedAt.IsZero())

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "manualprod", stored.Orders[0].ItemDetails[0].ProductID)
}

func TestRepairReprocessesFromGatewayNotes(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	gw := newStubGateway()
	rec := NewRecovery(users, gw, nil)

	user := newTestUser("ada@example.com")
	user.Orders = []models.Order{
		{OrderID: "order_lost", PaymentID: "pay_lost", Status: models.OrderStatusCompleted, CreatedAt: time.Now()},
	}
	users.Put(user)

	gw.orders["order_lost"] = &gateway.Order{
		ID:    "order_lost",
		Notes: map[string]string{"items": "prod1:M:2"},
	}
	payment := capturedPayment("pay_lost", "order_lost", "ada@example.com", 149900, time.Now())
	payment.Notes = map[string]string{"city": "Pune", "pincode": "411001"}
	gw.payments["pay_lost"] = &payment

	order, err := rec.Repair(ctx, "ada@example.com", "pay_lost", RepairInput{ReprocessFromGateway: true})
	require.NoError(t, err)

	require.Len(t, order.ItemDetails, 1)
	assert.Equal(t, "prod1", order.ItemDetails[0].ProductID)
	assert.Equal(t, "Pune", order.ShippingAddress.City)
	assert.Equal(t, "411001", order.ShippingAddress.PostalCode)
}

func TestRepairUnknownOrder(t *testing.T) {
	ctx := context.Background()
	users := storage.NewMemoryUserStore()
	rec := NewRecovery(users, newStubGateway(), nil)

	user := newTestUser("ada@example.com")
	users.Put(user)

	_, err := rec.Repair(ctx, "ada@example.com", "order_nope", RepairInput{})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestParseGatewayNotes(t *testing.T) {
	items, details, address := parseGatewayNotes(map[string]string{
		"items":   "p1:M:2, p2:L , p3 , :S:1 , p4:XXL:3",
		"name":    "Ada",
		"contact": "9999999999",
		"street":  "1 Compute Lane",
		"country": "IN",
	})

	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, items)
	require.Len(t, details, 4)
	assert.Equal(t, models.ItemDetail{ProductID: "p1", Size: "M", Quantity: 2}, details[0])
	// Missing quantity defaults to one.
	assert.Equal(t, models.ItemDetail{ProductID: "p2", Size: "L", Quantity: 1}, details[1])
	assert.Equal(t, models.ItemDetail{ProductID: "p3", Quantity: 1}, details[2])
	// Unknown sizes are dropped, the line itself survives.
	assert.Equal(t, models.ItemDetail{ProductID: "p4", Quantity: 3}, details[3])

	assert.Equal(t, "Ada", address.Name)
	assert.Equal(t, "9999999999", address.Phone)
	assert.Equal(t, "1 Compute Lane", address.Street)
	assert.Equal(t, "IN", address.Country)

	items, details, _ = parseGatewayNotes(map[string]string{})
	assert.Empty(t, items)
	assert.Empty(t, details)
}
