package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commerce-backend/models"
	"commerce-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher pushes serialized domain events to the event stream.
// Publishing is best-effort; order processing never fails on it.
type EventPublisher interface {
	Publish(topic string, message []byte) error
}

// SNSPublisher optionally fans events out to an SNS topic.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" binding:"required"`
	PaymentMethod   string             `json:"payment_method"`

	// Guest contact fields; required when no authenticated user is attached.
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type CreateOrderResponse struct {
	Order     *models.Order `json:"order"`
	PaymentID uuid.UUID     `json:"payment_id"`
}

type UpdateStatusRequest struct {
	Status          string  `json:"status" binding:"required"`
	TrackingCarrier *string `json:"tracking_carrier,omitempty"`
	TrackingNumber  *string `json:"tracking_number,omitempty"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

// OrderService owns order placement, cancellation, and status transitions.
type OrderService struct {
	tx          repository.TxManager
	orderRepo   repository.OrderRepository
	publisher   EventPublisher
	eventTopic  string
	snsClient   SNSPublisher
	snsTopicArn string
	currency    string
	logger      *zap.Logger
}

func NewOrderService(
	tx repository.TxManager,
	orderRepo repository.OrderRepository,
	publisher EventPublisher,
	eventTopic string,
	snsClient SNSPublisher,
	snsTopicArn string,
	currency string,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		tx:          tx,
		orderRepo:   orderRepo,
		publisher:   publisher,
		eventTopic:  eventTopic,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		currency:    currency,
		logger:      logger,
	}
}

// CreateOrder validates every line item, then creates the order (pending),
// decrements stock, and creates the pending payment record in one
// transaction. Any shortage rolls the whole operation back.
func (s *OrderService) CreateOrder(ctx context.Context, principal *Principal, req *CreateOrderRequest) (*CreateOrderResponse, *ServiceError) {
	if len(req.Items) == 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "At least one item is required"}
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &ServiceError{StatusCode: 400, Message: "Quantity must be at least 1"}
		}
	}
	if principal == nil {
		if req.CustomerName == "" || req.CustomerEmail == "" || req.CustomerPhone == "" {
			return nil, &ServiceError{StatusCode: 400, Message: "Guest orders require name, email, and phone"}
		}
	}

	method := req.PaymentMethod
	if method == "" {
		method = "gateway"
	}

	order := &models.Order{
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
	}
	if principal != nil {
		userID := principal.UserID
		order.UserID = &userID
	} else {
		order.CustomerName = req.CustomerName
		order.CustomerEmail = req.CustomerEmail
		order.CustomerPhone = req.CustomerPhone
	}

	var payment *models.Payment
	var svcErr *ServiceError

	err := s.tx.Transaction(ctx, func(repos repository.Repositories) error {
		var total float64
		items := make([]models.OrderItem, 0, len(req.Items))

		for _, line := range req.Items {
			product, err := repos.Products.FindByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					svcErr = &ServiceError{StatusCode: 400, Message: fmt.Sprintf("Product %s not found", line.ProductID)}
					return svcErr
				}
				return err
			}
			if !product.IsActive {
				svcErr = &ServiceError{StatusCode: 400, Message: fmt.Sprintf("Product %s is not available", product.Title)}
				return svcErr
			}

			if err := repos.Products.DecrementStock(ctx, product.ID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					svcErr = &ServiceError{StatusCode: 400, Message: fmt.Sprintf("Insufficient stock for %s", product.Title)}
					return svcErr
				}
				return err
			}

			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Title:     product.Title,
				Price:     product.Price,
				Quantity:  line.Quantity,
			})
			total += product.Price * float64(line.Quantity)
		}

		order.Items = items
		order.TotalAmount = total
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}

		payment = &models.Payment{
			OrderID:  order.ID,
			Amount:   total,
			Currency: s.currency,
			Method:   method,
			Status:   models.PaymentStatusPending,
		}
		return repos.Payments.Create(ctx, payment)
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Order creation failed", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create order"}
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.Float64("total", order.TotalAmount),
	)
	s.publishOrderEvent(ctx, "order_created", order)

	return &CreateOrderResponse{Order: order, PaymentID: payment.ID}, nil
}

// CancelOrder cancels an order on behalf of its owner or an admin. Orders
// already cancelled or delivered are refused without mutation. Stock is
// restored for every pre-cancel status that still holds it.
func (s *OrderService) CancelOrder(ctx context.Context, principal *Principal, orderID uuid.UUID) (*models.Order, *ServiceError) {
	var order *models.Order
	var svcErr *ServiceError

	err := s.tx.Transaction(ctx, func(repos repository.Repositories) error {
		var err error
		order, err = repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Order not found"}
				return svcErr
			}
			return err
		}

		if !principal.Role.IsAdmin() {
			if order.UserID == nil || *order.UserID != principal.UserID {
				svcErr = &ServiceError{StatusCode: 403, Message: "Not allowed to cancel this order"}
				return svcErr
			}
		}

		if !order.Status.Cancellable() {
			svcErr = &ServiceError{StatusCode: 409, Message: fmt.Sprintf("Order is already %s", order.Status)}
			return svcErr
		}

		prev := order.Status
		order.Status = models.OrderStatusCancelled
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}

		if prev.HoldsStock() {
			for _, item := range order.Items {
				if err := repos.Products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Order cancellation failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to cancel order"}
	}

	s.logger.Info("Order cancelled", zap.String("order_id", order.ID.String()))
	s.publishOrderEvent(ctx, "order_cancelled", order)
	return order, nil
}

// UpdateStatus applies an admin status override. Any value from the status
// enumeration is accepted; tracking info may be attached when shipping.
func (s *OrderService) UpdateStatus(ctx context.Context, principal *Principal, orderID uuid.UUID, req *UpdateStatusRequest) (*models.Order, *ServiceError) {
	if !principal.Role.IsAdmin() {
		return nil, &ServiceError{StatusCode: 403, Message: "Admin access required"}
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid order status"}
	}

	order, findErr := s.orderRepo.FindByID(ctx, orderID)
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.Error(findErr))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order"}
	}

	order.Status = status
	if status == models.OrderStatusShipped {
		if req.TrackingCarrier != nil {
			order.TrackingCarrier = req.TrackingCarrier
		}
		if req.TrackingNumber != nil {
			order.TrackingNumber = req.TrackingNumber
		}
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error("Failed to update order status", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order"}
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(status)),
	)
	s.publishOrderEvent(ctx, "order_status_updated", order)
	return order, nil
}

// GetOrder returns one order, visible to its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, principal *Principal, orderID uuid.UUID) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}

	if !principal.Role.IsAdmin() {
		if order.UserID == nil || *order.UserID != principal.UserID {
			return nil, &ServiceError{StatusCode: 403, Message: "Not allowed to view this order"}
		}
	}
	return order, nil
}

// ListUserOrders returns paginated orders for the authenticated user.
func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderListResponse, *ServiceError) {
	orders, total, err := s.orderRepo.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}
	return s.listResponse(orders, total, page, limit), nil
}

// ListAllOrders returns paginated orders across all users (admin only).
func (s *OrderService) ListAllOrders(ctx context.Context, principal *Principal, page, limit int) (*OrderListResponse, *ServiceError) {
	if !principal.Role.IsAdmin() {
		return nil, &ServiceError{StatusCode: 403, Message: "Admin access required"}
	}

	orders, total, err := s.orderRepo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}
	return s.listResponse(orders, total, page, limit), nil
}

func (s *OrderService) listResponse(orders []models.Order, total int64, page, limit int) *OrderListResponse {
	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}
}

func (s *OrderService) publishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	event := models.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		Timestamp:   time.Now().UTC(),
	}
	if order.UserID != nil {
		event.UserID = order.UserID.String()
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, models.OrderEventRow{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal order event", zap.Error(err))
		return
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(s.eventTopic, payload); err != nil {
			s.logger.Warn("Kafka publish failed", zap.String("type", eventType), zap.Error(err))
		}
	}
	if s.snsClient != nil && s.snsTopicArn != "" {
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload); err != nil {
			s.logger.Warn("SNS publish failed", zap.String("type", eventType), zap.Error(err))
		}
	}
}
