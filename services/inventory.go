package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/metrics"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// casAttempts bounds the optimistic retry loop on inventory swaps.
const casAttempts = 3

// Ledger is the authority on per-product, per-size stock. Every mutation is
// one compare-and-swap against the product document: the decrement, both
// history entries and the recomputed sold-out flags land in a single write,
// so two checkouts racing for the last unit cannot both win.
type Ledger struct {
	products storage.ProductStore
	log      *logrus.Entry
}

func NewLedger(products storage.ProductStore) *Ledger {
	return &Ledger{
		products: products,
		log:      logrus.WithField("component", "inventory"),
	}
}

// Availability is the answer to "can I buy N units of size S".
type Availability struct {
	Available         bool   `json:"available"`
	Reason            string `json:"reason,omitempty"`
	AvailableQuantity *int   `json:"availableQuantity,omitempty"`
}

func unavailable(reason string, left int) *Availability {
	return &Availability{Reason: reason, AvailableQuantity: &left}
}

// CheckAvailability reads only precomputed flags and counters; it never
// rescans the size map.
func (l *Ledger) CheckAvailability(ctx context.Context, productID primitive.ObjectID, size string, quantity int) (*Availability, error) {
	if !models.ValidSize(size) {
		return nil, validationf("unknown size %q", size)
	}
	if quantity <= 0 {
		return nil, validationf("quantity must be positive")
	}

	product, err := l.products.GetByID(ctx, productID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	inv := product.Inventory
	if !inv.TrackInventory {
		return &Availability{Available: true}, nil
	}
	if inv.SoldOut {
		return unavailable("product sold out", 0), nil
	}
	if inv.SizeSoldOut(size) {
		return unavailable("size sold out", 0), nil
	}
	if left := inv.Sizes[size]; left < quantity {
		return unavailable("insufficient stock", left), nil
	}
	return &Availability{Available: true}, nil
}

// Reduce decrements the size and total counters for one order line. The
// whole mutation either applies or the counters are untouched; callers get
// *InsufficientStockError with the shortfall on refusal.
func (l *Ledger) Reduce(ctx context.Context, productID primitive.ObjectID, size string, quantity int, orderID string) error {
	if !models.ValidSize(size) {
		return validationf("unknown size %q", size)
	}
	if quantity <= 0 {
		return validationf("quantity must be positive")
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		product, err := l.products.GetByID(ctx, productID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		inv := product.Inventory
		if !inv.TrackInventory {
			return nil
		}
		if inv.Sizes[size] < quantity || inv.TotalQuantity < quantity {
			metrics.StockRejections.Inc()
			return &InsufficientStockError{
				ProductID: productID.Hex(),
				Size:      size,
				Requested: quantity,
				Available: inv.Sizes[size],
			}
		}

		expected := storage.Snapshot(inv)
		now := time.Now()
		prevSize := inv.Sizes[size]
		prevTotal := inv.TotalQuantity
		inv.Sizes[size] = prevSize - quantity
		inv.TotalQuantity = prevTotal - quantity
		inv.History = append(inv.History,
			models.InventoryMutation{
				Action:           "order_reduce",
				Size:             size,
				Quantity:         quantity,
				PreviousQuantity: prevSize,
				NewQuantity:      prevSize - quantity,
				Timestamp:        now,
				OrderID:          orderID,
			},
			models.InventoryMutation{
				Action:           "order_reduce_total",
				Quantity:         quantity,
				PreviousQuantity: prevTotal,
				NewQuantity:      prevTotal - quantity,
				Timestamp:        now,
				OrderID:          orderID,
			},
		)
		inv.RecomputeDerived()

		swapped, err := l.products.CompareAndSwapInventory(ctx, productID, expected, inv)
		if err != nil {
			return err
		}
		if swapped {
			if inv.TotalQuantity <= inv.LowStockThreshold {
				l.log.WithFields(logrus.Fields{
					"product": productID.Hex(),
					"total":   inv.TotalQuantity,
				}).Warn("product stock below threshold")
			}
			return nil
		}
		// Lost the swap to a concurrent writer; re-read and try again.
	}
	return ErrInventoryContention
}

// Increase adds stock back: restocks, admin corrections and finalize
// rollbacks. No upper bound.
func (l *Ledger) Increase(ctx context.Context, productID primitive.ObjectID, size string, quantity int, reason, actor, orderID string) error {
	if !models.ValidSize(size) {
		return validationf("unknown size %q", size)
	}
	if quantity <= 0 {
		return validationf("quantity must be positive")
	}
	if reason == "" {
		reason = "restock"
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		product, err := l.products.GetByID(ctx, productID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		inv := product.Inventory
		expected := storage.Snapshot(inv)
		now := time.Now()
		prevSize := inv.Sizes[size]
		prevTotal := inv.TotalQuantity
		if inv.Sizes == nil {
			inv.Sizes = map[string]int{}
		}
		inv.Sizes[size] = prevSize + quantity
		inv.TotalQuantity = prevTotal + quantity
		inv.History = append(inv.History,
			models.InventoryMutation{
				Action:           reason,
				Size:             size,
				Quantity:         quantity,
				PreviousQuantity: prevSize,
				NewQuantity:      prevSize + quantity,
				Timestamp:        now,
				OrderID:          orderID,
				Actor:            actor,
			},
			models.InventoryMutation{
				Action:           reason + "_total",
				Quantity:         quantity,
				PreviousQuantity: prevTotal,
				NewQuantity:      prevTotal + quantity,
				Timestamp:        now,
				OrderID:          orderID,
				Actor:            actor,
			},
		)
		inv.RecomputeDerived()

		swapped, err := l.products.CompareAndSwapInventory(ctx, productID, expected, inv)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return ErrInventoryContention
}

// InitializeAll default-fills inventory for every product that is not yet
// tracked. Returns how many products were initialized.
func (l *Ledger) InitializeAll(ctx context.Context, perSize int, actor string) (int, error) {
	if perSize <= 0 {
		return 0, validationf("per-size quantity must be positive")
	}

	ids, err := l.products.ProductIDs(ctx)
	if err != nil {
		return 0, err
	}

	initialized := 0
	for _, id := range ids {
		product, err := l.products.GetByID(ctx, id)
		if err != nil {
			return initialized, errors.Wrapf(err, "load product %s", id.Hex())
		}
		if product.Inventory.TrackInventory {
			continue
		}

		inv := models.DefaultInventory(perSize)
		inv.History = append(inv.History, models.InventoryMutation{
			Action:      "initialize",
			Quantity:    inv.TotalQuantity,
			NewQuantity: inv.TotalQuantity,
			Timestamp:   time.Now(),
			Actor:       actor,
		})
		if err := l.products.SetInventory(ctx, id, inv); err != nil {
			return initialized, errors.Wrapf(err, "initialize product %s", id.Hex())
		}
		initialized++
	}
	l.log.WithField("initialized", initialized).Info("inventory initialize pass finished")
	return initialized, nil
}

// ResetAll zeroes every counter while keeping tracking enabled. Returns how
// many products were reset.
func (l *Ledger) ResetAll(ctx context.Context, actor string) (int, error) {
	ids, err := l.products.ProductIDs(ctx)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, id := range ids {
		product, err := l.products.GetByID(ctx, id)
		if err != nil {
			return reset, errors.Wrapf(err, "load product %s", id.Hex())
		}

		inv := product.Inventory
		prevTotal := inv.TotalQuantity
		inv.TrackInventory = true
		inv.TotalQuantity = 0
		inv.Sizes = map[string]int{}
		for _, size := range models.SizeLabels {
			inv.Sizes[size] = 0
		}
		inv.History = append(inv.History, models.InventoryMutation{
			Action:           "reset",
			PreviousQuantity: prevTotal,
			Timestamp:        time.Now(),
			Actor:            actor,
		})
		inv.RecomputeDerived()

		if err := l.products.SetInventory(ctx, id, inv); err != nil {
			return reset, errors.Wrapf(err, "reset product %s", id.Hex())
		}
		reset++
	}
	l.log.WithField("reset", reset).Info("inventory reset pass finished")
	return reset, nil
}
