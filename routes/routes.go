package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vastrakart/vastrakart-backend-go/handlers"
	customMiddleware "github.com/vastrakart/vastrakart-backend-go/middleware"
)

func SetupRoutes(e *echo.Echo) {
	// Public routes
	e.POST("/register", handlers.RegisterUser)
	e.POST("/login", handlers.LoginUser)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Authenticated API routes
	api := e.Group("/api")
	api.Use(customMiddleware.AuthMiddleware)

	// User routes
	api.GET("/users/me", handlers.GetUserProfile)
	api.PUT("/users/me", handlers.UpdateUserProfile)
	api.GET("/users/me/addresses", handlers.GetUserAddresses)
	api.POST("/users/me/addresses", handlers.AddUserAddress)
	api.DELETE("/users/me/addresses/:id", handlers.DeleteUserAddress)

	// Product routes
	api.GET("/products", handlers.GetProducts)
	api.GET("/products/:id", handlers.GetProduct)
	api.GET("/products/:id/availability", handlers.CheckAvailability)

	// Cart and wishlist routes
	api.GET("/cart", handlers.GetCart)
	api.POST("/cart", handlers.AddToCart)
	api.DELETE("/cart/:productId", handlers.RemoveFromCart)
	api.POST("/wishlist", handlers.AddToWishlist)
	api.DELETE("/wishlist/:productId", handlers.RemoveFromWishlist)

	// Checkout and order routes
	api.POST("/checkout", handlers.Checkout)
	api.POST("/checkout/verify", handlers.VerifyPayment)
	api.GET("/orders", handlers.GetOrders)
	api.GET("/orders/:orderId", handlers.GetOrder)

	// Operator tooling
	admin := api.Group("/admin")
	admin.Use(customMiddleware.AdminMiddleware)
	admin.POST("/products", handlers.CreateProduct)
	admin.POST("/coupons", handlers.CreateCoupon)
	admin.POST("/inventory/initialize", handlers.InitializeInventory)
	admin.POST("/inventory/reset", handlers.ResetInventory)
	admin.POST("/inventory/:productId/restock", handlers.RestockProduct)
	admin.GET("/orders/duplicates", handlers.ScanDuplicateOrders)
	admin.POST("/orders/duplicates/clean", handlers.CleanDuplicateOrders)
	admin.POST("/orders/expire", handlers.ExpirePendingOrders)
	admin.GET("/orders/trace", handlers.TraceOrders)
	admin.POST("/orders/recover", handlers.RecoverOrder)
	admin.PUT("/orders/repair", handlers.RepairOrder)
}
