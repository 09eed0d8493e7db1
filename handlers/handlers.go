package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/vastrakart/vastrakart-backend-go/gateway"
	"github.com/vastrakart/vastrakart-backend-go/services"
	"github.com/vastrakart/vastrakart-backend-go/storage"
)

// Package-level services, wired once at startup.
var (
	pendingOrders *services.PendingOrders
	finalizer     *services.Finalizer
	ledger        *services.Ledger
	reconciler    *services.Reconciler
	sweeper       *services.Sweeper
	recovery      *services.Recovery
	coupons       *services.Coupons
	gatewayClient *gateway.Client
	users         storage.UserStore
)

type Deps struct {
	PendingOrders *services.PendingOrders
	Finalizer     *services.Finalizer
	Ledger        *services.Ledger
	Reconciler    *services.Reconciler
	Sweeper       *services.Sweeper
	Recovery      *services.Recovery
	Coupons       *services.Coupons
	Gateway       *gateway.Client
	Users         storage.UserStore
}

func Init(d Deps) {
	pendingOrders = d.PendingOrders
	finalizer = d.Finalizer
	ledger = d.Ledger
	reconciler = d.Reconciler
	sweeper = d.Sweeper
	recovery = d.Recovery
	coupons = d.Coupons
	gatewayClient = d.Gateway
	users = d.Users
}

func respond(c echo.Context, status int, message string, data echo.Map) error {
	payload := echo.Map{"success": true, "message": message}
	for k, v := range data {
		payload[k] = v
	}
	return c.JSON(status, payload)
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

// failErr maps the service error taxonomy onto HTTP statuses.
func failErr(c echo.Context, err error) error {
	var validation *services.ValidationError
	var stock *services.InsufficientStockError
	var coupon *services.CouponRejectedError
	var rejected *gateway.RejectedError

	switch {
	case errors.As(err, &validation):
		return fail(c, http.StatusBadRequest, validation.Reason)
	case errors.As(err, &stock):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success":   false,
			"message":   stock.Error(),
			"productId": stock.ProductID,
			"size":      stock.Size,
			"requested": stock.Requested,
			"available": stock.Available,
		})
	case errors.As(err, &coupon):
		return fail(c, http.StatusBadRequest, coupon.Error())
	case errors.Is(err, services.ErrInvalidSignature):
		return fail(c, http.StatusUnauthorized, "Payment signature verification failed")
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrProductNotFound):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCannotResolveUser):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInventoryContention):
		return fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrUnavailable):
		return fail(c, http.StatusBadGateway, "Payment gateway unavailable, retry later")
	case errors.As(err, &rejected):
		return fail(c, http.StatusBadGateway, rejected.Error())
	default:
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
}
