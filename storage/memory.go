package storage

import (
	"context"
	"sync"

	"github.com/vastrakart/vastrakart-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-process implementations of the store interfaces with the same
// conditional-update semantics as the Mongo ones. Used by the test suite and
// for running the server without a database.

type MemoryUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

// Put inserts or replaces a user document.
func (m *MemoryUserStore) Put(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = copyUser(&u)
}

func (m *MemoryUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryUserStore) UserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryUserStore) AppendOrderIfAbsent(ctx context.Context, userID primitive.ObjectID, order models.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	for _, existing := range u.Orders {
		if existing.Matches(order.OrderID, order.PaymentID) {
			return false, nil
		}
	}
	u.Orders = append(u.Orders, order)
	return true, nil
}

func (m *MemoryUserStore) UpdateOrder(ctx context.Context, userID primitive.ObjectID, order models.Order, expectStatus models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	for i := range u.Orders {
		if u.Orders[i].OrderID == order.OrderID && u.Orders[i].Status == expectStatus {
			u.Orders[i] = order
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryUserStore) ReplaceOrders(ctx context.Context, userID primitive.ObjectID, orders []models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Orders = append([]models.Order(nil), orders...)
	return nil
}

func (m *MemoryUserStore) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Cart = []string{}
	u.CartQuantities = map[string]int{}
	u.CartSizes = map[string]string{}
	return nil
}

type MemoryProductStore struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[primitive.ObjectID]*models.Product)}
}

// Put inserts or replaces a product document.
func (m *MemoryProductStore) Put(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = copyProduct(&p)
}

func (m *MemoryProductStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyProduct(p), nil
}

func (m *MemoryProductStore) ProductIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryProductStore) SetInventory(ctx context.Context, id primitive.ObjectID, inv models.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Inventory = copyInventory(inv)
	return nil
}

func (m *MemoryProductStore) CompareAndSwapInventory(ctx context.Context, id primitive.ObjectID, expected InventoryCounts, updated models.Inventory) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Inventory.TotalQuantity != expected.TotalQuantity {
		return false, nil
	}
	for _, size := range models.SizeLabels {
		if p.Inventory.Sizes[size] != expected.Sizes[size] {
			return false, nil
		}
	}
	p.Inventory = copyInventory(updated)
	return true, nil
}

type MemoryCouponStore struct {
	mu      sync.Mutex
	coupons map[string]*models.Coupon
}

func NewMemoryCouponStore() *MemoryCouponStore {
	return &MemoryCouponStore{coupons: make(map[string]*models.Coupon)}
}

// Put inserts or replaces a coupon document.
func (m *MemoryCouponStore) Put(c models.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[c.Code] = copyCoupon(&c)
}

func (m *MemoryCouponStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCoupon(c), nil
}

func (m *MemoryCouponStore) RecordUsage(ctx context.Context, code string, maxUses int, usage models.CouponUsage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok || !c.Active {
		return false, nil
	}
	if maxUses > 0 && c.UsedCount >= maxUses {
		return false, nil
	}
	c.Uses = append(c.Uses, usage)
	c.UsedCount++
	return true, nil
}

func (m *MemoryCouponStore) ReleaseUsage(ctx context.Context, code, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil
	}
	for i := range c.Uses {
		if c.Uses[i].OrderID == orderID {
			c.Uses = append(c.Uses[:i], c.Uses[i+1:]...)
			c.UsedCount--
			return nil
		}
	}
	return nil
}

func copyUser(u *models.User) *models.User {
	clone := *u
	clone.Addresses = append([]models.Address(nil), u.Addresses...)
	clone.Orders = append([]models.Order(nil), u.Orders...)
	clone.Cart = append([]string(nil), u.Cart...)
	clone.Wishlist = append([]string(nil), u.Wishlist...)
	clone.CartQuantities = copyIntMap(u.CartQuantities)
	clone.CartSizes = copyStringMap(u.CartSizes)
	return &clone
}

func copyProduct(p *models.Product) *models.Product {
	clone := *p
	clone.Inventory = copyInventory(p.Inventory)
	return &clone
}

func copyInventory(inv models.Inventory) models.Inventory {
	clone := inv
	clone.Sizes = copyIntMap(inv.Sizes)
	clone.SoldOutSizes = append([]string(nil), inv.SoldOutSizes...)
	clone.History = append([]models.InventoryMutation(nil), inv.History...)
	return clone
}

func copyCoupon(c *models.Coupon) *models.Coupon {
	clone := *c
	clone.Uses = append([]models.CouponUsage(nil), c.Uses...)
	return &clone
}

func copyIntMap(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
