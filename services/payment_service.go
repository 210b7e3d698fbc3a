package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-backend/models"
	"commerce-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gateway status code for a successful payment.
const gatewayStatusSuccess = "2"

// Deduper short-circuits webhook re-deliveries before they reach the
// database. A failing deduper degrades to the transaction-id uniqueness
// check only.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// WebhookNotification carries the gateway callback fields.
type WebhookNotification struct {
	MerchantID   string `form:"merchant_id" binding:"required"`
	OrderID      string `form:"order_id" binding:"required"`   // gateway-side order reference
	PaymentID    string `form:"payment_id" binding:"required"` // gateway transaction id
	Amount       string `form:"payhere_amount" binding:"required"`
	Currency     string `form:"payhere_currency" binding:"required"`
	StatusCode   string `form:"status_code" binding:"required"`
	Signature    string `form:"md5sig" binding:"required"`
	LocalOrderID string `form:"custom_1" binding:"required"` // internal order id
	LocalUserID  string `form:"custom_2"`                    // internal user id
}

type CheckoutHashRequest struct {
	OrderID  string  `json:"order_id" binding:"required"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
	Currency string  `json:"currency" binding:"required"`
}

// PaymentService verifies gateway callbacks and settles payments.
type PaymentService struct {
	tx             repository.TxManager
	paymentRepo    repository.PaymentRepository
	merchantID     string
	merchantSecret string
	deduper        Deduper
	publisher      EventPublisher
	eventTopic     string
	logger         *zap.Logger
}

func NewPaymentService(
	tx repository.TxManager,
	paymentRepo repository.PaymentRepository,
	merchantID, merchantSecret string,
	deduper Deduper,
	publisher EventPublisher,
	eventTopic string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		tx:             tx,
		paymentRepo:    paymentRepo,
		merchantID:     merchantID,
		merchantSecret: merchantSecret,
		deduper:        deduper,
		publisher:      publisher,
		eventTopic:     eventTopic,
		logger:         logger,
	}
}

// checksum returns the uppercase hex md5 digest used throughout the gateway
// protocol.
func checksum(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// signature computes the expected callback signature over the concatenated
// fields and the digested merchant secret.
func (s *PaymentService) signature(orderID, amount, currency, statusCode string) string {
	return checksum(s.merchantID + orderID + amount + currency + statusCode + checksum(s.merchantSecret))
}

// GenerateCheckoutHash produces the digest a client embeds in its checkout
// request, matching what the gateway validates later. Fails closed when
// merchant credentials are not configured.
func (s *PaymentService) GenerateCheckoutHash(req *CheckoutHashRequest) (string, *ServiceError) {
	if s.merchantID == "" || s.merchantSecret == "" {
		return "", &ServiceError{StatusCode: 503, Message: "Payment gateway is not configured"}
	}
	amount := fmt.Sprintf("%.2f", req.Amount)
	return checksum(s.merchantID + req.OrderID + amount + req.Currency + checksum(s.merchantSecret)), nil
}

// HandleWebhook authenticates a gateway notification and applies its result
// exactly once. Re-deliveries of an already-settled transaction are
// acknowledged without mutation.
func (s *PaymentService) HandleWebhook(ctx context.Context, n *WebhookNotification) *ServiceError {
	if s.merchantID == "" || s.merchantSecret == "" {
		return &ServiceError{StatusCode: 503, Message: "Payment gateway is not configured"}
	}

	if n.MerchantID != s.merchantID {
		s.logger.Warn("Webhook merchant mismatch",
			zap.String("merchant_id", n.MerchantID),
			zap.String("gateway_order_id", n.OrderID),
		)
		return &ServiceError{StatusCode: 401, Message: "Invalid signature"}
	}

	expected := s.signature(n.OrderID, n.Amount, n.Currency, n.StatusCode)
	if n.Signature != expected {
		// Potential forgery attempt; keep the log loud.
		s.logger.Warn("Webhook signature mismatch",
			zap.String("gateway_order_id", n.OrderID),
			zap.String("gateway_payment_id", n.PaymentID),
		)
		return &ServiceError{StatusCode: 401, Message: "Invalid signature"}
	}

	orderID, err := uuid.Parse(n.LocalOrderID)
	if err != nil {
		return &ServiceError{StatusCode: 404, Message: "Order not found"}
	}

	dedupKey := "dedup:webhook:" + n.PaymentID
	if s.deduper != nil {
		if seen, err := s.deduper.Seen(ctx, dedupKey); err == nil && seen {
			s.logger.Info("Skipping duplicate webhook delivery", zap.String("gateway_payment_id", n.PaymentID))
			return nil
		}
	}

	var payment *models.Payment
	var order *models.Order
	var svcErr *ServiceError

	txErr := s.tx.Transaction(ctx, func(repos repository.Repositories) error {
		var err error
		order, err = repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Order not found"}
				return svcErr
			}
			return err
		}

		// A cancelled or delivered order can no longer be moved by the
		// gateway. Acknowledge without applying, the gateway retries on
		// non-2xx.
		if order.Status.Terminal() {
			s.logger.Warn("Webhook for settled order ignored",
				zap.String("order_id", order.ID.String()),
				zap.String("gateway_payment_id", n.PaymentID),
			)
			payment = nil
			return nil
		}

		payment, err = repos.Payments.FindByOrderID(ctx, order.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Payment record not found"}
				return svcErr
			}
			return err
		}

		// Re-delivery of an already-settled transaction is a no-op.
		if payment.Status.Terminal() {
			if payment.TransactionID != nil && *payment.TransactionID == n.PaymentID {
				payment = nil
				return nil
			}
			svcErr = &ServiceError{StatusCode: 409, Message: "Payment already settled"}
			return svcErr
		}
		if existing, err := repos.Payments.FindByTransactionID(ctx, n.PaymentID); err == nil && existing != nil {
			payment = nil
			return nil
		}

		if expectedAmount := fmt.Sprintf("%.2f", payment.Amount); n.Amount != expectedAmount {
			svcErr = &ServiceError{StatusCode: 400, Message: "Amount mismatch"}
			return svcErr
		}

		now := time.Now()
		transactionID := n.PaymentID
		payment.TransactionID = &transactionID

		if n.StatusCode == gatewayStatusSuccess {
			payment.Status = models.PaymentStatusPaid
			payment.SucceededAt = &now
			order.Status = models.OrderStatusConfirmed
		} else {
			payment.Status = models.PaymentStatusFailed
			payment.FailedAt = &now
			order.Status = models.OrderStatusPaymentFailed
		}

		if err := repos.Payments.Update(ctx, payment); err != nil {
			return err
		}
		return repos.Orders.Update(ctx, order)
	})
	if txErr != nil {
		if svcErr != nil {
			return svcErr
		}
		s.logger.Error("Webhook application failed", zap.String("gateway_payment_id", n.PaymentID), zap.Error(txErr))
		return &ServiceError{StatusCode: 500, Message: "Failed to process webhook"}
	}

	if s.deduper != nil {
		if err := s.deduper.Mark(ctx, dedupKey); err != nil {
			s.logger.Warn("Webhook dedup mark failed", zap.Error(err))
		}
	}

	if payment == nil {
		// Duplicate delivery, nothing new to announce.
		return nil
	}

	eventType := "payment_failed"
	if payment.Status == models.PaymentStatusPaid {
		eventType = "payment_paid"
	}
	s.logger.Info("Webhook applied",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway_payment_id", n.PaymentID),
		zap.String("result", eventType),
	)
	s.publishPaymentEvent(payment, eventType)
	return nil
}

// GetPaymentByOrder returns the payment record for an order, visible to the
// order's owner or an admin.
func (s *PaymentService) GetPaymentByOrder(ctx context.Context, principal *Principal, order *models.Order) (*models.Payment, *ServiceError) {
	if !principal.Role.IsAdmin() {
		if order.UserID == nil || *order.UserID != principal.UserID {
			return nil, &ServiceError{StatusCode: 403, Message: "Not allowed to view this payment"}
		}
	}

	payment, err := s.paymentRepo.FindByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Payment record not found"}
		}
		s.logger.Error("Failed to fetch payment", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch payment"}
	}
	return payment, nil
}

func (s *PaymentService) publishPaymentEvent(payment *models.Payment, eventType string) {
	if s.publisher == nil {
		return
	}
	event := models.PaymentEvent{
		Type:      eventType,
		OrderID:   payment.OrderID.String(),
		PaymentID: payment.ID.String(),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Timestamp: time.Now().UTC(),
	}
	if payment.TransactionID != nil {
		event.TransactionID = *payment.TransactionID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal payment event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(s.eventTopic, payload); err != nil {
		s.logger.Warn("Payment event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
