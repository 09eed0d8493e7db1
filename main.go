package main

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/config"
	"github.com/vastrakart/vastrakart-backend-go/database"
	"github.com/vastrakart/vastrakart-backend-go/events"
	"github.com/vastrakart/vastrakart-backend-go/gateway"
	"github.com/vastrakart/vastrakart-backend-go/handlers"
	customMiddleware "github.com/vastrakart/vastrakart-backend-go/middleware"
	"github.com/vastrakart/vastrakart-backend-go/routes"
	"github.com/vastrakart/vastrakart-backend-go/services"
	"github.com/vastrakart/vastrakart-backend-go/storage"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func main() {
	config.LoadEnv()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(config.GetEnv("LOG_LEVEL", "info")); err == nil {
		logrus.SetLevel(level)
	}

	e := echo.New()
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(customMiddleware.MetricsMiddleware)

	if err := database.ConnectDB(); err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}

	gatewayClient := gateway.NewClient(
		config.GetEnv("GATEWAY_URL", "https://api.gateway.example.com"),
		config.GetEnv("GATEWAY_KEY_ID", ""),
		config.GetEnv("GATEWAY_KEY_SECRET", ""),
		config.GetEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
	)

	var publisher services.EventPublisher
	if amqpURL := config.GetEnv("AMQP_URL", ""); amqpURL != "" {
		p, err := events.NewPublisher(amqpURL)
		if err != nil {
			logrus.WithError(err).Warn("event publisher disabled: broker unreachable")
		} else {
			defer p.Close()
			publisher = p
		}
	}

	userStore := storage.NewMongoUserStore(database.DB)
	productStore := storage.NewMongoProductStore(database.DB)
	couponStore := storage.NewMongoCouponStore(database.DB)

	ledger := services.NewLedger(productStore)
	coupons := services.NewCoupons(couponStore)
	handlers.Init(handlers.Deps{
		PendingOrders: services.NewPendingOrders(userStore, config.GetEnvDuration("PENDING_ORDER_TTL", services.DefaultDraftTTL)),
		Finalizer:     services.NewFinalizer(userStore, ledger, coupons, gatewayClient, publisher),
		Ledger:        ledger,
		Reconciler:    services.NewReconciler(userStore),
		Sweeper:       services.NewSweeper(userStore),
		Recovery:      services.NewRecovery(userStore, gatewayClient, publisher),
		Coupons:       coupons,
		Gateway:       gatewayClient,
		Users:         userStore,
	})

	routes.SetupRoutes(e)

	port := config.GetEnv("PORT", "3000")
	logrus.WithField("port", port).Info("server starting")
	e.Logger.Fatal(e.Start(":" + port))
}
