package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vastrakart/vastrakart-backend-go/config"
	"github.com/vastrakart/vastrakart-backend-go/database"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func GetProduct(c echo.Context) error {
	objID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid product ID")
	}

	var product models.Product
	err = database.DB.Collection("products").FindOne(c.Request().Context(), bson.M{"_id": objID}).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return fail(c, http.StatusNotFound, "Product not found")
		}
		return fail(c, http.StatusInternalServerError, "Failed to fetch product")
	}

	return respond(c, http.StatusOK, "Product fetched", echo.Map{"product": product})
}

func GetProducts(c echo.Context) error {
	var products []models.Product
	collection := database.DB.Collection("products")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to fetch products")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var product models.Product
		if err := cursor.Decode(&product); err != nil {
			continue
		}
		products = append(products, product)
	}

	return respond(c, http.StatusOK, "Products fetched", echo.Map{"products": products})
}

func CreateProduct(c echo.Context) error {
	var product models.Product
	if err := c.Bind(&product); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if product.Name == "" {
		return fail(c, http.StatusBadRequest, "Product name is required")
	}

	if product.Inventory.TrackInventory && product.Inventory.Sizes == nil {
		product.Inventory = models.DefaultInventory(config.GetEnvInt("DEFAULT_STOCK_PER_SIZE", 10))
	}
	product.Inventory.RecomputeDerived()
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	collection := database.DB.Collection("products")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := collection.InsertOne(ctx, product)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to create product")
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		product.ID = id
	}

	return respond(c, http.StatusCreated, "Product created", echo.Map{"product": product})
}

// CheckAvailability answers "can I buy N units of size S" for one product.
func CheckAvailability(c echo.Context) error {
	productID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid product ID")
	}

	size := c.QueryParam("size")
	quantity := 1
	if raw := c.QueryParam("quantity"); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "Invalid quantity")
		}
	}

	availability, err := ledger.CheckAvailability(c.Request().Context(), productID, size, quantity)
	if err != nil {
		return failErr(c, err)
	}
	return respond(c, http.StatusOK, "Availability checked", echo.Map{"availability": availability})
}

// CreateCoupon registers a new coupon code (admin only).
func CreateCoupon(c echo.Context) error {
	var coupon models.Coupon
	if err := c.Bind(&coupon); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if coupon.Code == "" {
		return fail(c, http.StatusBadRequest, "Coupon code is required")
	}
	if coupon.DiscountType != models.DiscountPercent && coupon.DiscountType != models.DiscountFlat {
		return fail(c, http.StatusBadRequest, "Unknown discount type")
	}

	coupon.ID = primitive.NewObjectID()
	coupon.Active = true
	coupon.UsedCount = 0
	coupon.Uses = []models.CouponUsage{}
	coupon.CreatedAt = time.Now()

	collection := database.DB.Collection("coupons")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing := collection.FindOne(ctx, bson.M{"code": coupon.Code})
	if existing.Err() == nil {
		return fail(c, http.StatusConflict, "Coupon code already exists")
	}

	if _, err := collection.InsertOne(ctx, coupon); err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to create coupon")
	}

	return respond(c, http.StatusCreated, "Coupon created", echo.Map{"coupon": coupon})
}
