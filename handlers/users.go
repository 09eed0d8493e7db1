package handlers

import (
	"context"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vastrakart/vastrakart-backend-go/database"
	"github.com/vastrakart/vastrakart-backend-go/middleware"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func RegisterUser(c echo.Context) error {
	var user models.User
	if err := c.Bind(&user); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}

	if _, err := mail.ParseAddress(user.Email); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid email format")
	}
	if len(user.Password) < 8 {
		return fail(c, http.StatusBadRequest, "Password must be at least 8 characters")
	}

	collection := database.DB.Collection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing := collection.FindOne(ctx, bson.M{"email": user.Email})
	if existing.Err() == nil {
		return fail(c, http.StatusConflict, "Email already registered")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to process password")
	}
	user.Password = string(hashedPassword)
	user.ID = primitive.NewObjectID()
	user.IsAdmin = false
	user.Addresses = []models.Address{}
	user.Orders = []models.Order{}
	user.Cart = []string{}
	user.CartQuantities = map[string]int{}
	user.CartSizes = map[string]string{}
	user.Wishlist = []string{}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	if _, err := collection.InsertOne(ctx, user); err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to create user")
	}

	user.Password = ""
	return respond(c, http.StatusCreated, "User registered", echo.Map{"user": user})
}

func LoginUser(c echo.Context) error {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&loginRequest); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}

	collection := database.DB.Collection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	err := collection.FindOne(ctx, bson.M{"email": loginRequest.Email}).Decode(&user)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginRequest.Password)); err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid email or password")
	}

	token, err := middleware.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to generate token")
	}

	return respond(c, http.StatusOK, "Login successful", echo.Map{"token": token})
}

// GetUserProfile retrieves the user's profile
func GetUserProfile(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var user models.User
	err := database.DB.Collection("users").FindOne(
		c.Request().Context(),
		bson.M{"_id": userID},
	).Decode(&user)
	if err != nil {
		return fail(c, http.StatusNotFound, "User not found")
	}

	return respond(c, http.StatusOK, "Profile fetched", echo.Map{"user": user})
}

// UpdateUserProfile updates the user's profile information
func UpdateUserProfile(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var updateData struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.Bind(&updateData); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}

	update := bson.M{
		"$set": bson.M{
			"name":        updateData.Name,
			"phoneNumber": updateData.PhoneNumber,
			"updatedAt":   time.Now(),
		},
	}
	_, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		update,
	)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update profile")
	}

	return respond(c, http.StatusOK, "Profile updated successfully", nil)
}

// AddUserAddress adds an address to the user's address book
func AddUserAddress(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var address models.Address
	if err := c.Bind(&address); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid address data")
	}
	if address.ID.IsZero() {
		address.ID = primitive.NewObjectID()
	}
	if address.Type == "" {
		address.Type = "shipping"
	}

	// A new default unsets every other default first.
	if address.IsDefault {
		_, err := database.DB.Collection("users").UpdateOne(
			c.Request().Context(),
			bson.M{"_id": userID},
			bson.M{"$set": bson.M{"addresses.$[].isDefault": false}},
		)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "Failed to update default status")
		}
	}

	result, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		bson.M{
			"$push": bson.M{"addresses": address},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil || result.ModifiedCount == 0 {
		return fail(c, http.StatusInternalServerError, "Failed to add address")
	}

	return respond(c, http.StatusOK, "Address added", echo.Map{"address": address})
}

func GetUserAddresses(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var user models.User
	err := database.DB.Collection("users").FindOne(
		c.Request().Context(),
		bson.M{"_id": userID},
	).Decode(&user)
	if err != nil {
		return fail(c, http.StatusNotFound, "User not found")
	}

	return respond(c, http.StatusOK, "Addresses fetched", echo.Map{"addresses": user.Addresses})
}

// DeleteUserAddress deletes an address
func DeleteUserAddress(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	addressID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid address ID")
	}

	result, err := database.DB.Collection("users").UpdateOne(
		c.Request().Context(),
		bson.M{"_id": userID},
		bson.M{
			"$pull": bson.M{"addresses": bson.M{"_id": addressID}},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to delete address")
	}
	if result.ModifiedCount == 0 {
		return fail(c, http.StatusNotFound, "Address not found or already deleted")
	}

	return respond(c, http.StatusOK, "Address deleted successfully", nil)
}
