package services

import (
	"context"
	"sort"

	"commerce-backend/models"
	"commerce-backend/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repository implementations for service tests. The fake
// transaction manager snapshots state before running the function and
// restores it when the function fails, mirroring a rollback.

type memStore struct {
	products map[uuid.UUID]*models.Product
	orders   map[uuid.UUID]*models.Order
	payments map[uuid.UUID]*models.Payment
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[uuid.UUID]*models.Product),
		orders:   make(map[uuid.UUID]*models.Order),
		payments: make(map[uuid.UUID]*models.Payment),
	}
}

func (s *memStore) addProduct(p models.Product) *models.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.products[p.ID] = &p
	return &p
}

func (s *memStore) addOrder(o models.Order) *models.Order {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.orders[o.ID] = &o
	return &o
}

func (s *memStore) addPayment(p models.Payment) *models.Payment {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.payments[p.ID] = &p
	return &p
}

func (s *memStore) snapshot() *memStore {
	clone := newMemStore()
	for id, p := range s.products {
		cp := *p
		clone.products[id] = &cp
	}
	for id, o := range s.orders {
		co := *o
		co.Items = append([]models.OrderItem(nil), o.Items...)
		clone.orders[id] = &co
	}
	for id, p := range s.payments {
		cp := *p
		clone.payments[id] = &cp
	}
	return clone
}

func (s *memStore) restore(snap *memStore) {
	s.products = snap.products
	s.orders = snap.orders
	s.payments = snap.payments
}

func (s *memStore) repos() repository.Repositories {
	return repository.Repositories{
		Products: &memProductRepo{store: s},
		Orders:   &memOrderRepo{store: s},
		Payments: &memPaymentRepo{store: s},
	}
}

// memTxManager implements repository.TxManager.
type memTxManager struct {
	store *memStore
}

func (m *memTxManager) Transaction(_ context.Context, fn func(repos repository.Repositories) error) error {
	snap := m.store.snapshot()
	if err := fn(m.store.repos()); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// --- product repo ---

type memProductRepo struct {
	store *memStore
}

func (r *memProductRepo) Create(_ context.Context, product *models.Product) error {
	r.store.addProduct(*product)
	return nil
}

func (r *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := r.store.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) FindAll(_ context.Context, page, limit int, activeOnly bool) ([]models.Product, int64, error) {
	var out []models.Product
	for _, p := range r.store.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *memProductRepo) Update(_ context.Context, product *models.Product) error {
	cp := *product
	r.store.products[product.ID] = &cp
	return nil
}

func (r *memProductRepo) DecrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	p, ok := r.store.products[id]
	if !ok || !p.IsActive || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (r *memProductRepo) RestoreStock(_ context.Context, id uuid.UUID, quantity int) error {
	if p, ok := r.store.products[id]; ok {
		p.Stock += quantity
	}
	return nil
}

// --- order repo ---

type memOrderRepo struct {
	store *memStore
}

func (r *memOrderRepo) Create(_ context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	co := *order
	co.Items = append([]models.OrderItem(nil), order.Items...)
	r.store.orders[order.ID] = &co
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.store.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	co := *o
	co.Items = append([]models.OrderItem(nil), o.Items...)
	return &co, nil
}

func (r *memOrderRepo) FindByUserID(_ context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range r.store.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) FindAll(_ context.Context, page, limit int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range r.store.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) Update(_ context.Context, order *models.Order) error {
	co := *order
	co.Items = append([]models.OrderItem(nil), order.Items...)
	r.store.orders[order.ID] = &co
	return nil
}

// --- payment repo ---

type memPaymentRepo struct {
	store *memStore
}

func (r *memPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	cp := *payment
	r.store.payments[payment.ID] = &cp
	return nil
}

func (r *memPaymentRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var latest *models.Payment
	for _, p := range r.store.payments {
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memPaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	for _, p := range r.store.payments {
		if p.TransactionID != nil && *p.TransactionID == transactionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) Update(_ context.Context, payment *models.Payment) error {
	cp := *payment
	r.store.payments[payment.ID] = &cp
	return nil
}
