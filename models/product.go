package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductSize string

const (
	SizeS  ProductSize = "S"
	SizeM  ProductSize = "M"
	SizeL  ProductSize = "L"
	SizeXL ProductSize = "XL"
)

// SizeLabels is the fixed size chart, in display order.
var SizeLabels = []string{"S", "M", "L", "XL"}

// ValidSize reports whether the label belongs to the size chart.
func ValidSize(size string) bool {
	for _, s := range SizeLabels {
		if s == size {
			return true
		}
	}
	return false
}

// InventoryMutation is one append-only history entry. Every stock change
// writes one entry for the size counter and one for the total.
type InventoryMutation struct {
	Action           string    `bson:"action" json:"action"`
	Size             string    `bson:"size,omitempty" json:"size,omitempty"`
	Quantity         int       `bson:"quantity" json:"quantity"`
	PreviousQuantity int       `bson:"previousQuantity" json:"previousQuantity"`
	NewQuantity      int       `bson:"newQuantity" json:"newQuantity"`
	Timestamp        time.Time `bson:"timestamp" json:"timestamp"`
	OrderID          string    `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Actor            string    `bson:"actor,omitempty" json:"actor,omitempty"`
}

// Inventory holds the per-size counters and the derived sold-out flags.
// TotalQuantity must equal the sum of the size counters whenever tracking
// is enabled; SoldOut and SoldOutSizes are recomputed on every mutation.
type Inventory struct {
	TrackInventory    bool                `bson:"trackInventory" json:"trackInventory"`
	TotalQuantity     int                 `bson:"totalQuantity" json:"totalQuantity"`
	Sizes             map[string]int      `bson:"sizes" json:"sizes"`
	SoldOut           bool                `bson:"soldOut" json:"soldOut"`
	SoldOutSizes      []string            `bson:"soldOutSizes" json:"soldOutSizes"`
	LowStockThreshold int                 `bson:"lowStockThreshold" json:"lowStockThreshold"`
	History           []InventoryMutation `bson:"history" json:"history"`
}

// RecomputeDerived refreshes SoldOut and SoldOutSizes from the counters so
// availability checks never rescan the size map.
func (inv *Inventory) RecomputeDerived() {
	soldOutSizes := []string{}
	for _, size := range SizeLabels {
		if inv.Sizes[size] <= 0 {
			soldOutSizes = append(soldOutSizes, size)
		}
	}
	inv.SoldOutSizes = soldOutSizes
	inv.SoldOut = inv.TotalQuantity <= 0 || len(soldOutSizes) == len(SizeLabels)
}

// SizeSoldOut checks the precomputed per-size flag.
func (inv Inventory) SizeSoldOut(size string) bool {
	for _, s := range inv.SoldOutSizes {
		if s == size {
			return true
		}
	}
	return false
}

// DefaultInventory returns a tracked inventory with perSize units in every size.
func DefaultInventory(perSize int) Inventory {
	sizes := make(map[string]int, len(SizeLabels))
	for _, s := range SizeLabels {
		sizes[s] = perSize
	}
	inv := Inventory{
		TrackInventory:    true,
		TotalQuantity:     perSize * len(SizeLabels),
		Sizes:             sizes,
		LowStockThreshold: 5,
		History:           []InventoryMutation{},
	}
	inv.RecomputeDerived()
	return inv
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Sizes       []ProductSize      `bson:"sizes" json:"sizes"`
	Colors      []string           `bson:"colors" json:"colors"`
	Images      []string           `bson:"images" json:"images"`
	Inventory   Inventory          `bson:"inventory" json:"inventory"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
