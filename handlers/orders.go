package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vastrakart/vastrakart-backend-go/config"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ItemDetailRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required,oneof=S M L XL"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type CheckoutRequest struct {
	Amount          float64                `json:"amount" validate:"required,gt=0"`
	Currency        string                 `json:"currency"`
	Items           []string               `json:"items" validate:"required,min=1"`
	ItemDetails     []ItemDetailRequest    `json:"itemDetails" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	CouponCode      string                 `json:"couponCode"`
}

// Checkout opens a payment with the gateway and stores the matching pending
// draft. Retrying with an already-known gateway order returns the existing
// draft.
func Checkout(c echo.Context) error {
	userID, ok := c.Get("userID").(primitive.ObjectID)
	if !ok {
		return fail(c, http.StatusUnauthorized, "User not authenticated")
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if req.Currency == "" {
		req.Currency = config.GetEnv("CURRENCY", "INR")
	}

	details := make([]models.ItemDetail, 0, len(req.ItemDetails))
	for _, d := range req.ItemDetails {
		productID, err := primitive.ObjectIDFromHex(d.ProductID)
		if err != nil {
			return fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid product id %q", d.ProductID))
		}
		availability, err := ledger.CheckAvailability(c.Request().Context(), productID, d.Size, d.Quantity)
		if err != nil {
			return failErr(c, err)
		}
		if !availability.Available {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"success":           false,
				"message":           fmt.Sprintf("Product %s size %s unavailable: %s", d.ProductID, d.Size, availability.Reason),
				"productId":         d.ProductID,
				"size":              d.Size,
				"availableQuantity": availability.AvailableQuantity,
			})
		}
		details = append(details, models.ItemDetail{ProductID: d.ProductID, Size: d.Size, Quantity: d.Quantity})
	}

	amount := req.Amount
	discount := 0.0
	if req.CouponCode != "" {
		var err error
		discount, err = coupons.CalculateDiscount(c.Request().Context(), req.CouponCode, amount)
		if err != nil {
			return failErr(c, err)
		}
		amount -= discount
	}

	// The item list is mirrored into the gateway notes so a lost local draft
	// can later be rebuilt by the recovery tooling.
	gwOrder, err := gatewayClient.CreateOrder(
		c.Request().Context(),
		toMinorUnits(amount),
		req.Currency,
		"rcpt_"+uuid.NewString(),
		map[string]string{"items": encodeItemNotes(details)},
	)
	if err != nil {
		return failErr(c, err)
	}

	draft, err := pendingOrders.Create(c.Request().Context(), userID, services.DraftInput{
		OrderID:         gwOrder.ID,
		Amount:          amount,
		Currency:        req.Currency,
		Items:           req.Items,
		ItemDetails:     details,
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
		Discount:        discount,
	})
	if err != nil {
		return failErr(c, err)
	}

	return respond(c, http.StatusCreated, "Checkout created", echo.Map{"order": draft})
}

// toMinorUnits converts a currency amount to the gateway's integer minor
// units. Rounded, not truncated: 19.99 must become 1999, not 1998.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func encodeItemNotes(details []models.ItemDetail) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, fmt.Sprintf("%s:%s:%d", d.ProductID, d.Size, d.Quantity))
	}
	return strings.Join(parts, "|")
}

type VerifyRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// VerifyPayment finalizes an order after the client completed payment at the
// gateway.
func VerifyPayment(c echo.Context) error {
	userID, ok := c.Get("userID").(primitive.ObjectID)
	if !ok {
		return fail(c, http.StatusUnauthorized, "User not authenticated")
	}

	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	result, err := finalizer.Finalize(c.Request().Context(), userID, services.FinalizeInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		return failErr(c, err)
	}

	message := "Order placed successfully"
	if result.AlreadyCompleted {
		message = "Order already verified"
	}
	return respond(c, http.StatusOK, message, echo.Map{"order": result.Order})
}

// GetOrders returns the caller's full order history.
func GetOrders(c echo.Context) error {
	userID, ok := c.Get("userID").(primitive.ObjectID)
	if !ok {
		return fail(c, http.StatusUnauthorized, "User not authenticated")
	}

	user, err := users.GetByID(c.Request().Context(), userID)
	if err != nil {
		return failErr(c, services.ErrUserNotFound)
	}
	orders := user.Orders
	if orders == nil {
		orders = []models.Order{}
	}
	return respond(c, http.StatusOK, "Orders fetched", echo.Map{"orders": orders})
}

// GetOrder returns a single order by its gateway order id.
func GetOrder(c echo.Context) error {
	userID, ok := c.Get("userID").(primitive.ObjectID)
	if !ok {
		return fail(c, http.StatusUnauthorized, "User not authenticated")
	}

	order, err := pendingOrders.Get(c.Request().Context(), userID, c.Param("orderId"))
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Order fetched", echo.Map{"order": order})
}
