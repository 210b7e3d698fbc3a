package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles the aggregate repositories bound to one transaction.
type Repositories struct {
	Products ProductRepository
	Orders   OrderRepository
	Payments PaymentRepository
}

// TxManager runs a function against transaction-scoped repositories. The
// order/payment/stock mutations of a single operation must commit or roll
// back together.
type TxManager interface {
	Transaction(ctx context.Context, fn func(repos Repositories) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) Transaction(ctx context.Context, fn func(repos Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repositories{
			Products: NewGormProductRepository(tx),
			Orders:   NewGormOrderRepository(tx),
			Payments: NewGormPaymentRepository(tx),
		})
	})
}
