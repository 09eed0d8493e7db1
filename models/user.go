package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Address struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type       string             `bson:"type" json:"type"` // shipping/billing
	Street     string             `bson:"street" json:"street"`
	City       string             `bson:"city" json:"city"`
	State      string             `bson:"state" json:"state"`
	Country    string             `bson:"country" json:"country"`
	PostalCode string             `bson:"postalCode" json:"postalCode"`
	IsDefault  bool               `bson:"isDefault" json:"isDefault"`
}

// User is the unit of optimistic concurrency for the order subsystem: the
// order history and the cart-side state all live on this one document and
// every order mutation is a single-document update against it.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	Password      string             `bson:"password,omitempty" json:"-"`
	PhoneNumber   string             `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	IsAdmin       bool               `bson:"isAdmin" json:"isAdmin"`
	Addresses     []Address          `bson:"addresses" json:"addresses"`
	Orders        []Order            `bson:"orders" json:"orders"`
	Cart          []string           `bson:"cart" json:"cart"`
	CartQuantities map[string]int    `bson:"cartQuantities" json:"cartQuantities"`
	CartSizes     map[string]string  `bson:"cartSizes" json:"cartSizes"`
	Wishlist      []string           `bson:"wishlist" json:"wishlist"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FindOrder returns the first order matching either gateway identifier.
func (u *User) FindOrder(orderID, paymentID string) *Order {
	for i := range u.Orders {
		if u.Orders[i].Matches(orderID, paymentID) {
			return &u.Orders[i]
		}
	}
	return nil
}
