package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vastrakart/vastrakart-backend-go/database"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required,oneof=S M L XL"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// AddToCart records a product in the user's cart arrays along with its
// chosen size and quantity.
func AddToCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid product ID")
	}

	availability, err := ledger.CheckAvailability(c.Request().Context(), productID, req.Size, req.Quantity)
	if err != nil {
		return failErr(c, err)
	}
	if !availability.Available {
		return fail(c, http.StatusBadRequest, "Product unavailable: "+availability.Reason)
	}

	update := bson.M{
		"$addToSet": bson.M{"cart": req.ProductID},
		"$set": bson.M{
			"cartQuantities." + req.ProductID: req.Quantity,
			"cartSizes." + req.ProductID:      req.Size,
			"updatedAt":                       time.Now(),
		},
	}
	result, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		update,
	)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update cart")
	}
	if result.MatchedCount == 0 {
		return fail(c, http.StatusNotFound, "User not found")
	}

	return respond(c, http.StatusOK, "Item added to cart", nil)
}

// GetCart returns the cart joined with product data.
func GetCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var user models.User
	err := database.DB.Collection("users").FindOne(
		c.Request().Context(),
		bson.M{"_id": userID},
	).Decode(&user)
	if err != nil {
		return fail(c, http.StatusNotFound, "User not found")
	}

	type cartItem struct {
		Product  models.Product `json:"product"`
		Size     string         `json:"size"`
		Quantity int            `json:"quantity"`
	}
	items := []cartItem{}
	for _, raw := range user.Cart {
		productID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			continue
		}
		var product models.Product
		if err := database.DB.Collection("products").FindOne(
			c.Request().Context(),
			bson.M{"_id": productID},
		).Decode(&product); err != nil {
			continue
		}
		quantity := user.CartQuantities[raw]
		if quantity == 0 {
			quantity = 1
		}
		items = append(items, cartItem{
			Product:  product,
			Size:     user.CartSizes[raw],
			Quantity: quantity,
		})
	}

	return respond(c, http.StatusOK, "Cart fetched", echo.Map{"items": items})
}

// RemoveFromCart removes an item and its side-state from the cart
func RemoveFromCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	productID := c.Param("productId")

	update := bson.M{
		"$pull": bson.M{"cart": productID},
		"$unset": bson.M{
			"cartQuantities." + productID: "",
			"cartSizes." + productID:      "",
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	result, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		update,
	)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update cart")
	}
	if result.ModifiedCount == 0 {
		return fail(c, http.StatusNotFound, "Item not found in cart")
	}

	return respond(c, http.StatusOK, "Item removed from cart", nil)
}

// AddToWishlist saves a product id on the user's wishlist
func AddToWishlist(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req struct {
		ProductID string `json:"productId"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == "" {
		return fail(c, http.StatusBadRequest, "productId is required")
	}

	_, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"wishlist": req.ProductID},
			"$set":      bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update wishlist")
	}

	return respond(c, http.StatusOK, "Added to wishlist", nil)
}

// RemoveFromWishlist drops a product id from the wishlist
func RemoveFromWishlist(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	productID := c.Param("productId")

	result, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		bson.M{
			"$pull": bson.M{"wishlist": productID},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update wishlist")
	}
	if result.ModifiedCount == 0 {
		return fail(c, http.StatusNotFound, "Item not found in wishlist")
	}

	return respond(c, http.StatusOK, "Removed from wishlist", nil)
}
