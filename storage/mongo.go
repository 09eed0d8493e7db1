package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserStore struct {
	users *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{users: db.Collection("users")}
}

func (s *MongoUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user by email")
	}
	return &user, nil
}

func (s *MongoUserStore) UserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "list user ids")
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode user id")
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (s *MongoUserStore) AppendOrderIfAbsent(ctx context.Context, userID primitive.ObjectID, order models.Order) (bool, error) {
	// Push-if-absent: the filter refuses to match when any embedded order
	// already carries either gateway identifier. Empty payment ids (pending
	// drafts) are excluded from the collision check.
	dup := []bson.M{{"orderId": order.OrderID}}
	if order.PaymentID != "" {
		dup = append(dup, bson.M{"paymentId": order.PaymentID})
	}
	filter := bson.M{
		"_id":    userID,
		"orders": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$or": dup}}},
	}
	update := bson.M{
		"$push": bson.M{"orders": order},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Wrap(err, "append order")
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	// No match: either the user is gone or a duplicate blocked the push.
	count, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, errors.Wrap(err, "check user exists")
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *MongoUserStore) UpdateOrder(ctx context.Context, userID primitive.ObjectID, order models.Order, expectStatus models.OrderStatus) error {
	// Pinning the status makes the replace conditional: a concurrent writer
	// that already moved the order on leaves this update unmatched.
	filter := bson.M{
		"_id": userID,
		"orders": bson.M{"$elemMatch": bson.M{
			"orderId": order.OrderID,
			"status":  expectStatus,
		}},
	}
	result, err := s.users.UpdateOne(
		ctx,
		filter,
		bson.M{"$set": bson.M{"orders.$": order, "updatedAt": time.Now()}},
	)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) ReplaceOrders(ctx context.Context, userID primitive.ObjectID, orders []models.Order) error {
	if orders == nil {
		orders = []models.Order{}
	}
	result, err := s.users.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"orders": orders, "updatedAt": time.Now()}},
	)
	if err != nil {
		return errors.Wrap(err, "replace orders")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	result, err := s.users.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"cart":           []string{},
			"cartQuantities": bson.M{},
			"cartSizes":      bson.M{},
			"updatedAt":      time.Now(),
		}},
	)
	if err != nil {
		return errors.Wrap(err, "clear cart")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type MongoProductStore struct {
	products *mongo.Collection
}

func NewMongoProductStore(db *mongo.Database) *MongoProductStore {
	return &MongoProductStore{products: db.Collection("products")}
}

func (s *MongoProductStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find product")
	}
	return &product, nil
}

func (s *MongoProductStore) ProductIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cursor, err := s.products.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "list product ids")
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode product id")
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (s *MongoProductStore) SetInventory(ctx context.Context, id primitive.ObjectID, inv models.Inventory) error {
	result, err := s.products.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"inventory": inv, "updatedAt": time.Now()}},
	)
	if err != nil {
		return errors.Wrap(err, "set inventory")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoProductStore) CompareAndSwapInventory(ctx context.Context, id primitive.ObjectID, expected InventoryCounts, updated models.Inventory) (bool, error) {
	// The filter pins every counter the caller based its update on, so a
	// concurrent decrement makes this write a no-op instead of a lost update.
	filter := bson.M{
		"_id":                     id,
		"inventory.totalQuantity": expected.TotalQuantity,
	}
	for _, size := range models.SizeLabels {
		filter["inventory.sizes."+size] = expected.Sizes[size]
	}

	result, err := s.products.UpdateOne(
		ctx,
		filter,
		bson.M{"$set": bson.M{"inventory": updated, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, errors.Wrap(err, "swap inventory")
	}
	return result.MatchedCount > 0, nil
}

type MongoCouponStore struct {
	coupons *mongo.Collection
}

func NewMongoCouponStore(db *mongo.Database) *MongoCouponStore {
	return &MongoCouponStore{coupons: db.Collection("coupons")}
}

func (s *MongoCouponStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.coupons.FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find coupon")
	}
	return &coupon, nil
}

func (s *MongoCouponStore) RecordUsage(ctx context.Context, code string, maxUses int, usage models.CouponUsage) (bool, error) {
	filter := bson.M{"code": code, "active": true}
	if maxUses > 0 {
		filter["usedCount"] = bson.M{"$lt": maxUses}
	}
	update := bson.M{
		"$push": bson.M{"uses": usage},
		"$inc":  bson.M{"usedCount": 1},
	}
	result, err := s.coupons.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Wrap(err, "record coupon usage")
	}
	return result.MatchedCount > 0, nil
}

func (s *MongoCouponStore) ReleaseUsage(ctx context.Context, code, orderID string) error {
	_, err := s.coupons.UpdateOne(
		ctx,
		bson.M{"code": code, "uses.orderId": orderID},
		bson.M{
			"$pull": bson.M{"uses": bson.M{"orderId": orderID}},
			"$inc":  bson.M{"usedCount": -1},
		},
	)
	return errors.Wrap(err, "release coupon usage")
}
