package routes

import (
	"commerce-backend/controllers"
	"commerce-backend/middleware"
	"commerce-backend/services"

	"github.com/gin-gonic/gin"
)

// Register wires all HTTP routes onto the engine.
func Register(
	r *gin.Engine,
	jwtService *services.JWTService,
	auth *controllers.AuthController,
	categories *controllers.CategoryController,
	products *controllers.ProductController,
	orders *controllers.OrderController,
	payments *controllers.PaymentController,
) {
	authRoutes := r.Group("/auth")
	authRoutes.POST("/register", auth.Register)
	authRoutes.POST("/login", auth.Login)

	categoryRoutes := r.Group("/categories")
	categoryRoutes.GET("/", categories.GetCategories)
	categoryRoutes.GET("/:id", categories.GetCategory)
	categoryAdmin := categoryRoutes.Group("")
	categoryAdmin.Use(middleware.AuthRequired(jwtService), middleware.RequireAdmin())
	categoryAdmin.POST("/", categories.CreateCategory)
	categoryAdmin.PUT("/:id", categories.UpdateCategory)
	categoryAdmin.DELETE("/:id", categories.DeleteCategory)

	productRoutes := r.Group("/products")
	productRoutes.GET("/", middleware.AuthOptional(jwtService), products.GetProducts)
	productRoutes.GET("/:id", products.GetProduct)
	productManage := productRoutes.Group("")
	productManage.Use(middleware.AuthRequired(jwtService), middleware.RequireCatalogManager())
	productManage.POST("/", products.CreateProduct)
	productManage.PUT("/:id", products.UpdateProduct)
	productManage.DELETE("/:id", products.DeactivateProduct)

	orderRoutes := r.Group("/orders")
	orderRoutes.POST("/", middleware.AuthOptional(jwtService), orders.CreateOrder) // guests allowed
	orderAuth := orderRoutes.Group("")
	orderAuth.Use(middleware.AuthRequired(jwtService))
	orderAuth.GET("/", orders.GetOrders)
	orderAuth.GET("/:id", orders.GetOrder)
	orderAuth.POST("/:id/cancel", orders.CancelOrder)
	orderAuth.GET("/:id/payment", payments.GetPaymentByOrder)

	paymentRoutes := r.Group("/payments")
	paymentRoutes.POST("/webhook", payments.GatewayWebhook)
	paymentRoutes.POST("/hash", payments.CheckoutHash)

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(middleware.AuthRequired(jwtService), middleware.RequireAdmin())
	adminRoutes.GET("/orders", orders.GetAllOrders)
	adminRoutes.PUT("/orders/:id/status", orders.UpdateStatus)
}
