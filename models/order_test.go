package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusExpired, true},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusExpired, false},
		{OrderStatusExpired, OrderStatusPending, false},
		{OrderStatusExpired, OrderStatusCompleted, false},
		{OrderStatusPending, OrderStatusPending, false},
	}
	for _, tc := range cases {
		order := Order{Status: tc.from}
		err := Transition(&order, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, order.Status)
		} else {
			require.Error(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.from, order.Status)
		}
	}
}

func TestOrderExpired(t *testing.T) {
	now := time.Now()

	pendingPast := Order{Status: OrderStatusPending, ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, pendingPast.Expired(now))

	pendingFuture := Order{Status: OrderStatusPending, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, pendingFuture.Expired(now))

	// No deadline means no expiry.
	pendingNoDeadline := Order{Status: OrderStatusPending}
	assert.False(t, pendingNoDeadline.Expired(now))

	completedPast := Order{Status: OrderStatusCompleted, ExpiresAt: now.Add(-time.Minute)}
	assert.False(t, completedPast.Expired(now))

	exactlyNow := Order{Status: OrderStatusPending, ExpiresAt: now}
	assert.False(t, exactlyNow.Expired(now))
}

func TestOrderMatches(t *testing.T) {
	order := Order{OrderID: "order_a", PaymentID: "pay_1"}

	assert.True(t, order.Matches("order_a", ""))
	assert.True(t, order.Matches("", "pay_1"))
	assert.True(t, order.Matches("order_a", "pay_other"))
	assert.False(t, order.Matches("order_b", "pay_2"))
	assert.False(t, order.Matches("", ""))

	// Empty stored identifiers never collide with empty probes.
	draft := Order{OrderID: "order_b"}
	assert.False(t, draft.Matches("", ""))
	assert.False(t, draft.Matches("order_a", ""))
}
