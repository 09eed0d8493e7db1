package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/gateway"
	"github.com/vastrakart/vastrakart-backend-go/metrics"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// minorUnitsPerUnit converts gateway amounts (paise-style minor units) to
// the local currency amount.
const minorUnitsPerUnit = 100

// MissingPayment is a captured gateway payment with no local order record.
type MissingPayment struct {
	PaymentID string            `json:"paymentId"`
	OrderID   string            `json:"orderId"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Email     string            `json:"email,omitempty"`
	Contact   string            `json:"contact,omitempty"`
	Notes     map[string]string `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type TraceReport struct {
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	GatewayPayments int              `json:"gatewayPayments"`
	LocalOrders     int              `json:"localOrders"`
	Missing         []MissingPayment `json:"missingOrders"`
	Errors          []string         `json:"errors,omitempty"`
}

// RepairInput carries admin-supplied corrections for a recovered order.
// Manual fields always win over anything re-derived from the gateway.
type RepairInput struct {
	ManualProducts       []models.ItemDetail
	ManualAddress        *models.ShippingAddress
	ReprocessFromGateway bool
}

// Recovery cross-references the gateway's record of captured payments
// against local orders, and re-creates or repairs what is missing. The
// gateway is authoritative: recovered amounts, currency and timestamps come
// from its records, and inventory is never retroactively deducted for a sale
// that already happened outside the tracked flow.
type Recovery struct {
	users  storage.UserStore
	gw     PaymentGateway
	events EventPublisher
	log    *logrus.Entry
}

func NewRecovery(users storage.UserStore, gw PaymentGateway, events EventPublisher) *Recovery {
	return &Recovery{
		users:  users,
		gw:     gw,
		events: events,
		log:    logrus.WithField("component", "gateway_recovery"),
	}
}

// Trace diffs captured gateway payments in the window against the local
// order index. Read-only. A nil userID scopes the index to all users.
func (r *Recovery) Trace(ctx context.Context, from, to time.Time, userID *primitive.ObjectID) (*TraceReport, error) {
	if !to.After(from) {
		return nil, validationf("trace window end must be after start")
	}

	payments, err := r.gw.ListPayments(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &TraceReport{From: from, To: to, GatewayPayments: len(payments)}

	// Local index of every known orderId and paymentId in scope.
	index := map[string]bool{}
	var ids []primitive.ObjectID
	if userID != nil {
		ids = []primitive.ObjectID{*userID}
	} else {
		ids, err = r.users.UserIDs(ctx)
		if err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		user, err := r.users.GetByID(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", id.Hex(), err))
			continue
		}
		for _, o := range user.Orders {
			if o.OrderID != "" {
				index[o.OrderID] = true
			}
			if o.PaymentID != "" {
				index[o.PaymentID] = true
			}
			report.LocalOrders++
		}
	}

	for _, p := range payments {
		if !p.Captured() {
			continue
		}
		if index[p.ID] || (p.OrderID != "" && index[p.OrderID]) {
			continue
		}
		report.Missing = append(report.Missing, MissingPayment{
			PaymentID: p.ID,
			OrderID:   p.OrderID,
			Amount:    float64(p.Amount) / minorUnitsPerUnit,
			Currency:  p.Currency,
			Email:     p.Email,
			Contact:   p.Contact,
			Notes:     p.Notes,
			CreatedAt: time.Unix(p.CreatedAt, 0),
		})
	}
	return report, nil
}

// RecoverOne rebuilds a single order from the gateway's payment record. The
// returned bool is true when the order already existed locally, in which
// case nothing was written. Items stay empty when the gateway notes do not
// encode them: a deliberately incomplete record flagged for follow-up.
func (r *Recovery) RecoverOne(ctx context.Context, paymentID, orderID, userEmail string) (*models.Order, bool, error) {
	if paymentID == "" {
		return nil, false, validationf("paymentId is required")
	}

	payment, err := r.gw.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if orderID == "" {
		orderID = payment.OrderID
	}

	email := userEmail
	if email == "" {
		email = payment.Email
	}
	if email == "" {
		return nil, false, ErrCannotResolveUser
	}

	user, err := r.users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if existing := user.FindOrder(orderID, paymentID); existing != nil {
		return existing, true, nil
	}

	items, details, address := parseGatewayNotes(payment.Notes)
	order := models.Order{
		OrderID:         orderID,
		PaymentID:       payment.ID,
		Status:          models.OrderStatusCompleted,
		Amount:          float64(payment.Amount) / minorUnitsPerUnit,
		Currency:        payment.Currency,
		Items:           items,
		ItemDetails:     details,
		ShippingAddress: address,
		Tracking:        "Order recovered from payment gateway records; contact support for shipping status.",
		Recovery: &models.RecoveryMetadata{
			RecoveredFromGateway: true,
			RecoveredAt:          time.Now(),
			GatewayNotes:         payment.Notes,
		},
		CreatedAt: time.Unix(payment.CreatedAt, 0),
	}

	appended, err := r.users.AppendOrderIfAbsent(ctx, user.ID, order)
	if err != nil {
		return nil, false, err
	}
	if !appended {
		return &order, true, nil
	}

	metrics.OrdersRecovered.Inc()
	if r.events != nil {
		r.events.OrderRecovered(ctx, user.ID.Hex(), order)
	}
	r.log.WithFields(logrus.Fields{
		"user":    user.ID.Hex(),
		"order":   orderID,
		"payment": payment.ID,
		"items":   len(details),
	}).Info("order recovered from gateway")
	return &order, false, nil
}

// Repair fills in missing product lines or the shipping address on an
// already-identified order. It never invents identifiers. With
// ReprocessFromGateway set it re-fetches the gateway records and applies
// whatever structured data the free-form notes yield; manual fields are
// applied last and therefore always win.
func (r *Recovery) Repair(ctx context.Context, userEmail, orderOrPaymentID string, in RepairInput) (*models.Order, error) {
	if userEmail == "" || orderOrPaymentID == "" {
		return nil, validationf("email and order or payment id are required")
	}

	user, err := r.users.GetByEmail(ctx, userEmail)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	found := user.FindOrder(orderOrPaymentID, orderOrPaymentID)
	if found == nil {
		return nil, ErrOrderNotFound
	}
	order := *found

	if in.ReprocessFromGateway {
		notes := map[string]string{}
		if order.OrderID != "" {
			if gwOrder, err := r.gw.FetchOrder(ctx, order.OrderID); err == nil {
				mergeNotes(notes, gwOrder.Notes)
			} else if errors.Is(err, gateway.ErrUnavailable) {
				return nil, err
			}
		}
		if order.PaymentID != "" {
			payment, err := r.gw.FetchPayment(ctx, order.PaymentID)
			if err != nil {
				return nil, err
			}
			mergeNotes(notes, payment.Notes)
		}

		items, details, address := parseGatewayNotes(notes)
		if len(details) > 0 {
			order.Items = items
			order.ItemDetails = details
		}
		if address != (models.ShippingAddress{}) {
			order.ShippingAddress = address
		}
		if order.Recovery == nil {
			order.Recovery = &models.RecoveryMetadata{}
		}
		mergeNotes(order.Recovery.GatewayNotes, notes)
		if order.Recovery.GatewayNotes == nil {
			order.Recovery.GatewayNotes = notes
		}
	}

	manual := false
	if len(in.ManualProducts) > 0 {
		order.ItemDetails = in.ManualProducts
		order.Items = nil
		for _, d := range in.ManualProducts {
			order.Items = append(order.Items, d.ProductID)
		}
		if order.Recovery == nil {
			order.Recovery = &models.RecoveryMetadata{}
		}
		order.Recovery.ManualProductUpdate = true
		manual = true
	}
	if in.ManualAddress != nil {
		order.ShippingAddress = *in.ManualAddress
		if order.Recovery == nil {
			order.Recovery = &models.RecoveryMetadata{}
		}
		order.Recovery.ManualAddressUpdate = true
		manual = true
	}
	if manual {
		order.Recovery.ManualUpdatedAt = time.Now()
	}

	if err := r.users.UpdateOrder(ctx, user.ID, order, found.Status); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"user":  user.ID.Hex(),
		"order": order.OrderID,
	}).Info("order repaired")
	return &order, nil
}

func mergeNotes(dst, src map[string]string) {
	if dst == nil {
		return
	}
	for k, v := range src {
		dst[k] = v
	}
}

// parseGatewayNotes extracts structured order data from the gateway's
// free-form notes. Item lists are pipe- or comma-separated entries of
// "productId:size:quantity"; size and quantity are optional. Address fields
// come from conventional note keys. Anything that fails to parse is simply
// skipped.
func parseGatewayNotes(notes map[string]string) (items []string, details []models.ItemDetail, address models.ShippingAddress) {
	raw := notes["items"]
	if raw == "" {
		raw = notes["products"]
	}

	for _, entry := range strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' }) {
		fields := strings.Split(strings.TrimSpace(entry), ":")
		productID := strings.TrimSpace(fields[0])
		if productID == "" {
			continue
		}
		detail := models.ItemDetail{ProductID: productID, Quantity: 1}
		if len(fields) > 1 {
			if size := strings.TrimSpace(fields[1]); models.ValidSize(size) {
				detail.Size = size
			}
		}
		if len(fields) > 2 {
			if qty, err := strconv.Atoi(strings.TrimSpace(fields[2])); err == nil && qty > 0 {
				detail.Quantity = qty
			}
		}
		items = append(items, productID)
		details = append(details, detail)
	}

	address = models.ShippingAddress{
		Name:       notes["name"],
		Phone:      firstNonEmpty(notes["phone"], notes["contact"]),
		Street:     firstNonEmpty(notes["address"], notes["street"]),
		City:       notes["city"],
		State:      notes["state"],
		Country:    notes["country"],
		PostalCode: firstNonEmpty(notes["pincode"], notes["postalCode"]),
	}
	return items, details, address
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
