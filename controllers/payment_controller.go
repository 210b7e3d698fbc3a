package controllers

import (
	"net/http"

	"commerce-backend/middleware"
	"commerce-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentController struct {
	paymentService *services.PaymentService
	orderService   *services.OrderService
}

func NewPaymentController(paymentService *services.PaymentService, orderService *services.OrderService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		orderService:   orderService,
	}
}

// GatewayWebhook receives the payment gateway's signed notification.
// The gateway delivers form-encoded fields and retries on non-2xx.
func (pc *PaymentController) GatewayWebhook(c *gin.Context) {
	var n services.WebhookNotification
	if err := c.ShouldBind(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification", "details": err.Error()})
		return
	}

	if svcErr := pc.paymentService.HandleWebhook(c.Request.Context(), &n); svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckoutHash issues the digest a client embeds in its checkout request.
func (pc *PaymentController) CheckoutHash(c *gin.Context) {
	var req services.CheckoutHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	hash, svcErr := pc.paymentService.GenerateCheckoutHash(&req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": hash})
}

// GetPaymentByOrder returns the payment record for an order.
func (pc *PaymentController) GetPaymentByOrder(c *gin.Context) {
	principal, err := middleware.GetPrincipal(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, svcErr := pc.orderService.GetOrder(c.Request.Context(), principal, orderID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	payment, svcErr := pc.paymentService.GetPaymentByOrder(c.Request.Context(), principal, order)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}
