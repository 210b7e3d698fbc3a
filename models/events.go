package models

import "time"

// OrderEvent is published to Kafka/SNS after an order mutation commits.
type OrderEvent struct {
	Type        string          `json:"type"` // order_created, order_cancelled, order_status_updated
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id,omitempty"`
	TotalAmount float64         `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderEventRow `json:"items,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

type OrderEventRow struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PaymentEvent is published after a webhook or confirmation settles a payment.
type PaymentEvent struct {
	Type          string    `json:"type"` // payment_paid, payment_failed
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}
