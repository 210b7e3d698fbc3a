package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"commerce-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testMerchantID = "1211149"
	testSecret     = "MzE0Njc0NjU1MzE"
)

func newPaymentService(store *memStore) *PaymentService {
	return NewPaymentService(
		&memTxManager{store: store},
		&memPaymentRepo{store: store},
		testMerchantID, testSecret,
		nil,
		nil, "payment.events",
		zap.NewNop(),
	)
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// gatewaySignature builds the signature the way the gateway does.
func gatewaySignature(merchantID, orderID, amount, currency, statusCode, secret string) string {
	return digest(merchantID + orderID + amount + currency + statusCode + digest(secret))
}

func seedOrderWithPayment(store *memStore, amount float64) (*models.Order, *models.Payment) {
	order := store.addOrder(models.Order{Status: models.OrderStatusPending, TotalAmount: amount})
	payment := store.addPayment(models.Payment{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: "LKR",
		Method:   "gateway",
		Status:   models.PaymentStatusPending,
	})
	return order, payment
}

func notificationFor(order *models.Order, amount float64, statusCode string) *WebhookNotification {
	amountStr := fmt.Sprintf("%.2f", amount)
	gatewayOrderID := "GW-" + order.ID.String()[:8]
	return &WebhookNotification{
		MerchantID:   testMerchantID,
		OrderID:      gatewayOrderID,
		PaymentID:    "PAY-320025",
		Amount:       amountStr,
		Currency:     "LKR",
		StatusCode:   statusCode,
		Signature:    gatewaySignature(testMerchantID, gatewayOrderID, amountStr, "LKR", statusCode, testSecret),
		LocalOrderID: order.ID.String(),
	}
}

func TestHandleWebhook_SuccessConfirmsOrder(t *testing.T) {
	store := newMemStore()
	order, payment := seedOrderWithPayment(store, 750.00)
	svc := newPaymentService(store)

	svcErr := svc.HandleWebhook(context.Background(), notificationFor(order, 750.00, "2"))

	assert.Nil(t, svcErr)
	assert.Equal(t, models.OrderStatusConfirmed, store.orders[order.ID].Status)

	settled := store.payments[payment.ID]
	assert.Equal(t, models.PaymentStatusPaid, settled.Status)
	assert.Equal(t, "PAY-320025", *settled.TransactionID)
	assert.NotNil(t, settled.SucceededAt)
}

func TestHandleWebhook_FailureCodeMarksPaymentFailed(t *testing.T) {
	store := newMemStore()
	order, payment := seedOrderWithPayment(store, 300.00)
	svc := newPaymentService(store)

	svcErr := svc.HandleWebhook(context.Background(), notificationFor(order, 300.00, "1"))

	assert.Nil(t, svcErr)
	assert.Equal(t, models.OrderStatusPaymentFailed, store.orders[order.ID].Status)
	assert.Equal(t, models.PaymentStatusFailed, store.payments[payment.ID].Status)
	assert.NotNil(t, store.payments[payment.ID].FailedAt)
}

func TestHandleWebhook_SignatureMutationRejected(t *testing.T) {
	store := newMemStore()
	order, payment := seedOrderWithPayment(store, 500.00)
	svc := newPaymentService(store)

	n := notificationFor(order, 500.00, "2")

	// Flip one character of the valid signature.
	mutated := []byte(n.Signature)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	n.Signature = string(mutated)

	svcErr := svc.HandleWebhook(context.Background(), n)

	assert.NotNil(t, svcErr)
	assert.Equal(t, 401, svcErr.StatusCode)
	assert.Equal(t, models.OrderStatusPending, store.orders[order.ID].Status)
	assert.Equal(t, models.PaymentStatusPending, store.payments[payment.ID].Status)
}

func TestHandleWebhook_LowercaseSignatureRejected(t *testing.T) {
	store := newMemStore()
	order, _ := seedOrderWithPayment(store, 500.00)
	svc := newPaymentService(store)

	n := notificationFor(order, 500.00, "2")
	n.Signature = strings.ToLower(n.Signature)

	svcErr := svc.HandleWebhook(context.Background(), n)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 401, svcErr.StatusCode)
}

func TestHandleWebhook_MerchantMismatchRejected(t *testing.T) {
	store := newMemStore()
	order, _ := seedOrderWithPayment(store, 500.00)
	svc := newPaymentService(store)

	n := notificationFor(order, 500.00, "2")
	n.MerchantID = "9999999"

	svcErr := svc.HandleWebhook(context.Background(), n)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 401, svcErr.StatusCode)
}

func TestHandleWebhook_UnknownOrderNoMutation(t *testing.T) {
	store := newMemStore()
	svc := newPaymentService(store)

	phantom := &models.Order{ID: uuid.New()}
	svcErr := svc.HandleWebhook(context.Background(), notificationFor(phantom, 100.00, "2"))

	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Empty(t, store.payments)
}

func TestHandleWebhook_MalformedOrderReference(t *testing.T) {
	store := newMemStore()
	order, _ := seedOrderWithPayment(store, 100.00)
	svc := newPaymentService(store)

	n := notificationFor(order, 100.00, "2")
	n.LocalOrderID = "not-a-uuid"

	svcErr := svc.HandleWebhook(context.Background(), n)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}

func TestHandleWebhook_DuplicateDeliveryIsNoOp(t *testing.T) {
	store := newMemStore()
	order, payment := seedOrderWithPayment(store, 750.00)
	svc := newPaymentService(store)
	n := notificationFor(order, 750.00, "2")

	assert.Nil(t, svc.HandleWebhook(context.Background(), n))
	firstSettledAt := store.payments[payment.ID].SucceededAt

	// Gateway retries the same notification.
	assert.Nil(t, svc.HandleWebhook(context.Background(), n))

	assert.Equal(t, models.PaymentStatusPaid, store.payments[payment.ID].Status)
	assert.Equal(t, firstSettledAt, store.payments[payment.ID].SucceededAt)
	assert.Len(t, store.payments, 1)
}

func TestHandleWebhook_SettledOrderNotResurrected(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusDelivered} {
		store := newMemStore()
		order := store.addOrder(models.Order{Status: status, TotalAmount: 750.00})
		payment := store.addPayment(models.Payment{
			OrderID:  order.ID,
			Amount:   750.00,
			Currency: "LKR",
			Method:   "gateway",
			Status:   models.PaymentStatusPending,
		})
		svc := newPaymentService(store)

		// A late success notification must not move a settled order.
		svcErr := svc.HandleWebhook(context.Background(), notificationFor(order, 750.00, "2"))

		assert.Nil(t, svcErr, "status %s", status)
		assert.Equal(t, status, store.orders[order.ID].Status)
		assert.Equal(t, models.PaymentStatusPending, store.payments[payment.ID].Status)
		assert.Nil(t, store.payments[payment.ID].TransactionID)
	}
}

func TestHandleWebhook_AmountMismatchRejected(t *testing.T) {
	store := newMemStore()
	order, payment := seedOrderWithPayment(store, 750.00)
	svc := newPaymentService(store)

	// Signature is valid for the tampered amount, but it does not match the
	// payment record.
	svcErr := svc.HandleWebhook(context.Background(), notificationFor(order, 1.00, "2"))

	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, models.PaymentStatusPending, store.payments[payment.ID].Status)
}

func TestHandleWebhook_FailsClosedWithoutMerchantConfig(t *testing.T) {
	store := newMemStore()
	order, _ := seedOrderWithPayment(store, 100.00)
	svc := NewPaymentService(&memTxManager{store: store}, &memPaymentRepo{store: store}, "", "", nil, nil, "", zap.NewNop())

	svcErr := svc.HandleWebhook(context.Background(), notificationFor(order, 100.00, "2"))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 503, svcErr.StatusCode)
}

func TestGenerateCheckoutHash(t *testing.T) {
	svc := newPaymentService(newMemStore())

	hash, svcErr := svc.GenerateCheckoutHash(&CheckoutHashRequest{
		OrderID:  "ORD-1001",
		Amount:   1250.5,
		Currency: "LKR",
	})

	assert.Nil(t, svcErr)
	expected := digest(testMerchantID + "ORD-1001" + "1250.50" + "LKR" + digest(testSecret))
	assert.Equal(t, expected, hash)
}

func TestGenerateCheckoutHash_FailsClosedWithoutConfig(t *testing.T) {
	svc := NewPaymentService(nil, nil, "", "", nil, nil, "", zap.NewNop())

	_, svcErr := svc.GenerateCheckoutHash(&CheckoutHashRequest{OrderID: "ORD-1", Amount: 10, Currency: "LKR"})
	assert.NotNil(t, svcErr)
	assert.Equal(t, 503, svcErr.StatusCode)
}
