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

// FinalizeInput is the payload the gateway checkout hands back to the client
// once payment is captured.
type FinalizeInput struct {
	OrderID         string
	PaymentID       string
	Signature       string
	Amount          float64
	Currency        string
	Items           []string
	ItemDetails     []models.ItemDetail
	ShippingAddress models.ShippingAddress
	CouponCode      string
}

type FinalizeResult struct {
	Order models.Order
	// AlreadyCompleted is set when a retried finalize found the order done:
	// callers treat it as success, not as a conflict.
	AlreadyCompleted bool
}

// Finalizer promotes a pending draft (or synthesizes a record) into a
// completed order once the gateway signature checks out, deducting inventory
// all-or-nothing across line items.
type Finalizer struct {
	users   storage.UserStore
	ledger  *Ledger
	coupons *Coupons
	gw      PaymentGateway
	events  EventPublisher
	log     *logrus.Entry
}

func NewFinalizer(users storage.UserStore, ledger *Ledger, coupons *Coupons, gw PaymentGateway, events EventPublisher) *Finalizer {
	return &Finalizer{
		users:   users,
		ledger:  ledger,
		coupons: coupons,
		gw:      gw,
		events:  events,
		log:     logrus.WithField("component", "finalizer"),
	}
}

// Finalize runs the full commit: signature gate, duplicate no-op, staged
// inventory deduction with rollback, order write, cart clear.
func (f *Finalizer) Finalize(ctx context.Context, userID primitive.ObjectID, in FinalizeInput) (*FinalizeResult, error) {
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, validationf("orderId, paymentId and signature are required")
	}

	// The sole authenticity gate. Nothing below runs without it.
	if !f.gw.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		f.log.WithField("order", in.OrderID).Warn("signature verification failed")
		return nil, ErrInvalidSignature
	}

	user, err := f.users.GetByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	// Retried finalize is a no-op, not a duplicate.
	var draft *models.Order
	if existing := user.FindOrder(in.OrderID, in.PaymentID); existing != nil {
		if existing.Status == models.OrderStatusCompleted {
			return &FinalizeResult{Order: *existing, AlreadyCompleted: true}, nil
		}
		draft = existing
	}

	// The draft captured at checkout is authoritative for what was bought.
	amount := in.Amount
	items := in.Items
	details := in.ItemDetails
	address := in.ShippingAddress
	couponCode := in.CouponCode
	discount := 0.0
	if draft != nil {
		amount = draft.Amount
		items = draft.Items
		details = draft.ItemDetails
		address = draft.ShippingAddress
		discount = draft.Discount
		if couponCode == "" {
			couponCode = draft.CouponCode
		}
	}

	if couponCode != "" && f.coupons != nil && discount == 0 {
		discount, err = f.coupons.CalculateDiscount(ctx, couponCode, amount)
		if err != nil {
			return nil, err
		}
		amount -= discount
	}

	if err := f.deductAll(ctx, details, in.OrderID); err != nil {
		return nil, err
	}

	// Usage is recorded only after the stock deduction held, so a refused
	// finalize never burns a coupon use. A cap refusal here fails the order
	// and the deduction is compensated.
	redeemed := false
	if couponCode != "" && f.coupons != nil {
		err = f.coupons.Redeem(ctx, couponCode, models.CouponUsage{
			UserID:   userID,
			OrderID:  in.OrderID,
			Amount:   amount,
			Discount: discount,
		})
		if err != nil {
			f.rollback(ctx, details, in.OrderID)
			return nil, err
		}
		redeemed = true
	}

	order, alreadyExists, err := f.writeOrder(ctx, userID, draft, in, amount, items, details, address, couponCode, discount)
	if err != nil {
		// The inventory is already deducted; putting it back keeps the
		// ledger consistent with the absent order record.
		f.rollback(ctx, details, in.OrderID)
		if redeemed {
			f.releaseCoupon(ctx, couponCode, in.OrderID)
		}
		return nil, err
	}
	if alreadyExists {
		// A concurrent finalize for the same payment committed first. Its
		// deduction and coupon usage stand; ours must not count twice.
		f.rollback(ctx, details, in.OrderID)
		if redeemed {
			f.releaseCoupon(ctx, couponCode, in.OrderID)
		}
		return &FinalizeResult{Order: *order, AlreadyCompleted: true}, nil
	}

	if err := f.users.ClearCart(ctx, userID); err != nil {
		f.log.WithError(err).WithField("user", userID.Hex()).Error("failed to clear cart after finalize")
	}

	metrics.OrdersFinalized.Inc()
	if f.events != nil {
		f.events.OrderCompleted(ctx, userID.Hex(), *order)
	}
	f.log.WithFields(logrus.Fields{
		"user":    userID.Hex(),
		"order":   order.OrderID,
		"payment": order.PaymentID,
	}).Info("order finalized")
	return &FinalizeResult{Order: *order}, nil
}

// deductAll stages per-line decrements and rolls back every completed one on
// the first failure, so callers see finalize as all-or-nothing across items.
func (f *Finalizer) deductAll(ctx context.Context, details []models.ItemDetail, orderID string) error {
	done := make([]models.ItemDetail, 0, len(details))
	for _, line := range details {
		productID, err := primitive.ObjectIDFromHex(line.ProductID)
		if err != nil {
			f.rollback(ctx, done, orderID)
			return validationf("invalid product id %q", line.ProductID)
		}
		if err := f.ledger.Reduce(ctx, productID, line.Size, line.Quantity, orderID); err != nil {
			f.rollback(ctx, done, orderID)
			return err
		}
		done = append(done, line)
	}
	return nil
}

func (f *Finalizer) rollback(ctx context.Context, done []models.ItemDetail, orderID string) {
	for _, line := range done {
		productID, err := primitive.ObjectIDFromHex(line.ProductID)
		if err != nil {
			continue
		}
		if err := f.ledger.Increase(ctx, productID, line.Size, line.Quantity, "finalize_rollback", "system", orderID); err != nil {
			// A failed compensation leaves the ledger short; the admin
			// restock endpoint is the repair path.
			f.log.WithError(err).WithFields(logrus.Fields{
				"order":   orderID,
				"product": line.ProductID,
				"size":    line.Size,
			}).Error("inventory rollback failed")
		}
	}
}

// releaseCoupon compensates a recorded usage when the finalize did not
// commit. Failure leaves a stray usage entry; logged for manual correction.
func (f *Finalizer) releaseCoupon(ctx context.Context, code, orderID string) {
	if err := f.coupons.Release(ctx, code, orderID); err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{
			"coupon": code,
			"order":  orderID,
		}).Error("coupon usage release failed")
	}
}

func (f *Finalizer) writeOrder(ctx context.Context, userID primitive.ObjectID, draft *models.Order, in FinalizeInput, amount float64, items []string, details []models.ItemDetail, address models.ShippingAddress, couponCode string, discount float64) (*models.Order, bool, error) {
	if draft != nil {
		order := *draft
		if err := models.Transition(&order, models.OrderStatusCompleted); err != nil {
			return nil, false, err
		}
		order.PaymentID = in.PaymentID
		order.Amount = amount
		order.CouponCode = couponCode
		order.Discount = discount
		order.ExpiresAt = time.Time{}
		err := f.users.UpdateOrder(ctx, userID, order, models.OrderStatusPending)
		if errors.Is(err, storage.ErrNotFound) {
			// The draft is no longer pending: a concurrent finalize won the
			// promotion between our read and this write.
			user, gerr := f.users.GetByID(ctx, userID)
			if gerr != nil {
				return nil, false, gerr
			}
			if existing := user.FindOrder(in.OrderID, in.PaymentID); existing != nil && existing.Status == models.OrderStatusCompleted {
				return existing, true, nil
			}
			return nil, false, ErrOrderNotFound
		}
		if err != nil {
			return nil, false, err
		}
		return &order, false, nil
	}

	// No draft survived locally (expired and swept, or the checkout write
	// was lost): synthesize the completed record from the verified payload.
	order := models.Order{
		OrderID:         in.OrderID,
		PaymentID:       in.PaymentID,
		Status:          models.OrderStatusCompleted,
		Amount:          amount,
		Currency:        in.Currency,
		Items:           items,
		ItemDetails:     details,
		ShippingAddress: address,
		CouponCode:      couponCode,
		Discount:        discount,
		CreatedAt:       time.Now(),
	}
	appended, err := f.users.AppendOrderIfAbsent(ctx, userID, order)
	if err != nil {
		return nil, false, err
	}
	if !appended {
		// A concurrent finalize for the same payment won the append.
		user, err := f.users.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		if existing := user.FindOrder(in.OrderID, in.PaymentID); existing != nil {
			return existing, true, nil
		}
		return nil, false, ErrOrderNotFound
	}
	return &order, false, nil
}
