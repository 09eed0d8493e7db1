package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFlat    DiscountType = "flat"
)

type CouponUsage struct {
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	OrderID  string             `bson:"orderId" json:"orderId"`
	Amount   float64            `bson:"amount" json:"amount"`
	Discount float64            `bson:"discount" json:"discount"`
	UsedAt   time.Time          `bson:"usedAt" json:"usedAt"`
}

type Coupon struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code           string             `bson:"code" json:"code"`
	DiscountType   DiscountType       `bson:"discountType" json:"discountType"`
	DiscountValue  float64            `bson:"discountValue" json:"discountValue"`
	MinOrderAmount float64            `bson:"minOrderAmount" json:"minOrderAmount"`
	MaxUses        int                `bson:"maxUses" json:"maxUses"` // 0 means unlimited
	UsedCount      int                `bson:"usedCount" json:"usedCount"`
	Uses           []CouponUsage      `bson:"uses" json:"uses"`
	Active         bool               `bson:"active" json:"active"`
	ExpiresAt      time.Time          `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}
