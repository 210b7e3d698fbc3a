package controllers_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"commerce-backend/controllers"
	"commerce-backend/models"
	"commerce-backend/repository"
	"commerce-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	merchantID = "1211149"
	secret     = "MzE0Njc0NjU1MzE"
)

// --- minimal in-memory persistence for the webhook path ---

type fakeStore struct {
	orders   map[uuid.UUID]*models.Order
	payments map[uuid.UUID]*models.Payment
}

type fakeOrderRepo struct{ s *fakeStore }

func (r *fakeOrderRepo) Create(_ context.Context, o *models.Order) error {
	r.s.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindByUserID(_ context.Context, _ uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	return nil, 0, nil
}

func (r *fakeOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	return nil, 0, nil
}

func (r *fakeOrderRepo) Update(_ context.Context, o *models.Order) error {
	cp := *o
	r.s.orders[o.ID] = &cp
	return nil
}

type fakePaymentRepo struct{ s *fakeStore }

func (r *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	r.s.payments[p.ID] = p
	return nil
}

func (r *fakePaymentRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	for _, p := range r.s.payments {
		if p.TransactionID != nil && *p.TransactionID == transactionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) Update(_ context.Context, p *models.Payment) error {
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

type fakeProductRepo struct{}

func (r *fakeProductRepo) Create(_ context.Context, _ *models.Product) error { return nil }
func (r *fakeProductRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Product, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeProductRepo) FindAll(_ context.Context, _, _ int, _ bool) ([]models.Product, int64, error) {
	return nil, 0, nil
}
func (r *fakeProductRepo) Update(_ context.Context, _ *models.Product) error          { return nil }
func (r *fakeProductRepo) DecrementStock(_ context.Context, _ uuid.UUID, _ int) error { return nil }
func (r *fakeProductRepo) RestoreStock(_ context.Context, _ uuid.UUID, _ int) error   { return nil }

type fakeTxManager struct{ s *fakeStore }

func (m *fakeTxManager) Transaction(_ context.Context, fn func(repos repository.Repositories) error) error {
	return fn(repository.Repositories{
		Products: &fakeProductRepo{},
		Orders:   &fakeOrderRepo{s: m.s},
		Payments: &fakePaymentRepo{s: m.s},
	})
}

// --- helpers ---

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func setupRouter(store *fakeStore) *gin.Engine {
	logger := zap.NewNop()
	tx := &fakeTxManager{s: store}
	paymentSvc := services.NewPaymentService(tx, &fakePaymentRepo{s: store}, merchantID, secret, nil, nil, "payment.events", logger)
	orderSvc := services.NewOrderService(tx, &fakeOrderRepo{s: store}, nil, "order.events", nil, "", "LKR", logger)
	pc := controllers.NewPaymentController(paymentSvc, orderSvc)

	r := gin.New()
	r.POST("/payments/webhook", pc.GatewayWebhook)
	r.POST("/payments/hash", pc.CheckoutHash)
	return r
}

func seedOrder(store *fakeStore, amount float64) (*models.Order, *models.Payment) {
	order := &models.Order{ID: uuid.New(), Status: models.OrderStatusPending, TotalAmount: amount}
	payment := &models.Payment{ID: uuid.New(), OrderID: order.ID, Amount: amount, Currency: "LKR", Status: models.PaymentStatusPending}
	store.orders[order.ID] = order
	store.payments[payment.ID] = payment
	return order, payment
}

func webhookForm(order *models.Order, amount, statusCode string) url.Values {
	gatewayOrderID := "GW-1001"
	sig := digest(merchantID + gatewayOrderID + amount + "LKR" + statusCode + digest(secret))
	form := url.Values{}
	form.Set("merchant_id", merchantID)
	form.Set("order_id", gatewayOrderID)
	form.Set("payment_id", "PAY-320025")
	form.Set("payhere_amount", amount)
	form.Set("payhere_currency", "LKR")
	form.Set("status_code", statusCode)
	form.Set("md5sig", sig)
	form.Set("custom_1", order.ID.String())
	return form
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestGatewayWebhook_Success(t *testing.T) {
	store := &fakeStore{orders: map[uuid.UUID]*models.Order{}, payments: map[uuid.UUID]*models.Payment{}}
	order, payment := seedOrder(store, 750.00)
	r := setupRouter(store)

	w := postForm(r, "/payments/webhook", webhookForm(order, "750.00", "2"))

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])

	assert.Equal(t, models.OrderStatusConfirmed, store.orders[order.ID].Status)
	assert.Equal(t, models.PaymentStatusPaid, store.payments[payment.ID].Status)
	assert.Equal(t, "PAY-320025", *store.payments[payment.ID].TransactionID)
}

func TestGatewayWebhook_TamperedSignature(t *testing.T) {
	store := &fakeStore{orders: map[uuid.UUID]*models.Order{}, payments: map[uuid.UUID]*models.Payment{}}
	order, payment := seedOrder(store, 750.00)
	r := setupRouter(store)

	form := webhookForm(order, "750.00", "2")
	form.Set("md5sig", strings.ToLower(form.Get("md5sig")))
	w := postForm(r, "/payments/webhook", form)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.OrderStatusPending, store.orders[order.ID].Status)
	assert.Equal(t, models.PaymentStatusPending, store.payments[payment.ID].Status)
}

func TestGatewayWebhook_MissingFields(t *testing.T) {
	store := &fakeStore{orders: map[uuid.UUID]*models.Order{}, payments: map[uuid.UUID]*models.Payment{}}
	r := setupRouter(store)

	w := postForm(r, "/payments/webhook", url.Values{"merchant_id": {merchantID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutHash(t *testing.T) {
	store := &fakeStore{orders: map[uuid.UUID]*models.Order{}, payments: map[uuid.UUID]*models.Payment{}}
	r := setupRouter(store)

	payload := `{"order_id":"ORD-1001","amount":1250.5,"currency":"LKR"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/hash", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	expected := digest(merchantID + "ORD-1001" + fmt.Sprintf("%.2f", 1250.5) + "LKR" + digest(secret))
	assert.Equal(t, expected, body["hash"])
}
