package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
)

// Coupons validates codes against their rules and records usage atomically
// against the usage cap.
type Coupons struct {
	store storage.CouponStore
}

func NewCoupons(store storage.CouponStore) *Coupons {
	return &Coupons{store: store}
}

// CalculateDiscount returns the validated discount for the amount, or a
// *CouponRejectedError naming the rule that refused it.
func (c *Coupons) CalculateDiscount(ctx context.Context, code string, amount float64) (float64, error) {
	coupon, err := c.store.GetByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, &CouponRejectedError{Code: code, Reason: "coupon not found"}
	}
	if err != nil {
		return 0, err
	}

	switch {
	case !coupon.Active:
		return 0, &CouponRejectedError{Code: code, Reason: "coupon inactive"}
	case !coupon.ExpiresAt.IsZero() && coupon.ExpiresAt.Before(time.Now()):
		return 0, &CouponRejectedError{Code: code, Reason: "coupon expired"}
	case coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses:
		return 0, &CouponRejectedError{Code: code, Reason: "usage limit reached"}
	case amount < coupon.MinOrderAmount:
		return 0, &CouponRejectedError{Code: code, Reason: "order amount below minimum"}
	}

	var discount float64
	switch coupon.DiscountType {
	case models.DiscountPercent:
		discount = amount * coupon.DiscountValue / 100
	case models.DiscountFlat:
		discount = coupon.DiscountValue
	default:
		return 0, &CouponRejectedError{Code: code, Reason: "unknown discount type"}
	}
	if discount > amount {
		discount = amount
	}
	return discount, nil
}

// Redeem records one usage, conditional on the cap still having room.
func (c *Coupons) Redeem(ctx context.Context, code string, usage models.CouponUsage) error {
	coupon, err := c.store.GetByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return &CouponRejectedError{Code: code, Reason: "coupon not found"}
	}
	if err != nil {
		return err
	}

	usage.UsedAt = time.Now()
	recorded, err := c.store.RecordUsage(ctx, code, coupon.MaxUses, usage)
	if err != nil {
		return err
	}
	if !recorded {
		return &CouponRejectedError{Code: code, Reason: "usage limit reached"}
	}
	return nil
}

// Release gives back the usage recorded for an order whose finalize did not
// commit.
func (c *Coupons) Release(ctx context.Context, code, orderID string) error {
	return c.store.ReleaseUsage(ctx, code, orderID)
}
