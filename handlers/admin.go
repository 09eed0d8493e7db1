package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vastrakart/vastrakart-backend-go/config"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// scopeFromQuery reads an optional userId query parameter; nil means all
// users.
func scopeFromQuery(c echo.Context) (*primitive.ObjectID, error) {
	raw := c.QueryParam("userId")
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ScanDuplicateOrders reports duplicate orders without removing anything.
func ScanDuplicateOrders(c echo.Context) error {
	scope, err := scopeFromQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid userId")
	}
	report, err := reconciler.Scan(c.Request().Context(), scope)
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Duplicate scan complete", echo.Map{"report": report})
}

// CleanDuplicateOrders removes duplicates, keeping the earliest occurrence.
func CleanDuplicateOrders(c echo.Context) error {
	scope, err := scopeFromQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid userId")
	}
	report, err := reconciler.Clean(c.Request().Context(), scope)
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Duplicate cleanup complete", echo.Map{"report": report})
}

// ExpirePendingOrders runs the TTL sweep over every user.
func ExpirePendingOrders(c echo.Context) error {
	report, err := sweeper.Sweep(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Expiration sweep complete", echo.Map{
		"totalCleaned":   report.TotalCleaned,
		"usersProcessed": report.UsersProcessed,
		"errors":         report.Errors,
	})
}

// TraceOrders diffs gateway payments against local orders inside a date
// window. Read-only.
func TraceOrders(c echo.Context) error {
	scope, err := scopeFromQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid userId")
	}

	to := time.Now()
	from := to.AddDate(0, 0, -7)
	if raw := c.QueryParam("from"); raw != "" {
		from, err = parseDate(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "Invalid from date")
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err = parseDate(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "Invalid to date")
		}
	}

	report, err := recovery.Trace(c.Request().Context(), from, to, scope)
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Order trace complete", echo.Map{"report": report})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

type RecoverOrderRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
	OrderID   string `json:"orderId"`
	UserEmail string `json:"userEmail"`
}

// RecoverOrder rebuilds one order from the gateway's payment record.
func RecoverOrder(c echo.Context) error {
	var req RecoverOrderRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	order, exists, err := recovery.RecoverOne(c.Request().Context(), req.PaymentID, req.OrderID, req.UserEmail)
	if err != nil {
		return failErr(c, err)
	}
	if exists {
		return respond(c, http.StatusOK, "Order already exists locally", echo.Map{
			"exists": true,
			"order":  order,
		})
	}
	return respond(c, http.StatusCreated, "Order recovered from gateway", echo.Map{
		"exists": false,
		"order":  order,
	})
}

type RepairOrderRequest struct {
	UserEmail            string                  `json:"userEmail" validate:"required,email"`
	OrderOrPaymentID     string                  `json:"orderOrPaymentId" validate:"required"`
	ProductDetails       []ItemDetailRequest     `json:"productDetails"`
	ShippingAddress      *models.ShippingAddress `json:"shippingAddress"`
	ReprocessFromGateway bool                    `json:"reprocessFromGateway"`
}

// RepairOrder fills in missing fields on an already-identified order.
func RepairOrder(c echo.Context) error {
	var req RepairOrderRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	in := services.RepairInput{
		ManualAddress:        req.ShippingAddress,
		ReprocessFromGateway: req.ReprocessFromGateway,
	}
	for _, d := range req.ProductDetails {
		in.ManualProducts = append(in.ManualProducts, models.ItemDetail{
			ProductID: d.ProductID,
			Size:      d.Size,
			Quantity:  d.Quantity,
		})
	}

	order, err := recovery.Repair(c.Request().Context(), req.UserEmail, req.OrderOrPaymentID, in)
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Order repaired", echo.Map{"order": order})
}

type InitializeInventoryRequest struct {
	PerSize int `json:"perSize"`
}

// InitializeInventory default-fills stock for every untracked product.
func InitializeInventory(c echo.Context) error {
	var req InitializeInventoryRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if req.PerSize == 0 {
		req.PerSize = config.GetEnvInt("DEFAULT_STOCK_PER_SIZE", 10)
	}

	count, err := ledger.InitializeAll(c.Request().Context(), req.PerSize, adminActor(c))
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Inventory initialized", echo.Map{"productsInitialized": count})
}

// ResetInventory zeroes every product's counters.
func ResetInventory(c echo.Context) error {
	count, err := ledger.ResetAll(c.Request().Context(), adminActor(c))
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Inventory reset", echo.Map{"productsReset": count})
}

type RestockRequest struct {
	Size     string `json:"size" validate:"required,oneof=S M L XL"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason"`
}

// RestockProduct adds stock for one product size.
func RestockProduct(c echo.Context) error {
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid product ID")
	}

	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if req.Reason == "" {
		req.Reason = "restock"
	}

	if err := ledger.Increase(c.Request().Context(), productID, req.Size, req.Quantity, req.Reason, adminActor(c), ""); err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Stock increased", nil)
}

func adminActor(c echo.Context) string {
	if id, ok := c.Get("userID").(primitive.ObjectID); ok {
		return id.Hex()
	}
	return "admin"
}
