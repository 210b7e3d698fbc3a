package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce-backend/awsx"
	"commerce-backend/cache"
	"commerce-backend/controllers"
	"commerce-backend/database"
	"commerce-backend/kafka"
	"commerce-backend/models"
	"commerce-backend/repository"
	"commerce-backend/routes"
	"commerce-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// --- Database ---
	dsn := database.DSN(
		cfg.PostgresHost, cfg.PostgresUser, cfg.PostgresPassword,
		cfg.PostgresDB, cfg.PostgresPort, cfg.PostgresSSLMode, cfg.PostgresTimeZone,
	)
	db, err := database.Connect(dsn, logger,
		&models.User{}, &models.Category{}, &models.Product{},
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
	)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}

	// --- Optional integrations ---
	var producer kafka.ProducerAPI
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewProducer(cfg.KafkaBrokers, logger)
		defer kp.Close()
		producer = kp
	}

	var snsClient services.SNSPublisher
	if cfg.SNSTopicARN != "" {
		awsCfg, err := awsx.LoadConfig(context.Background())
		if err != nil {
			logger.Warn("AWS config load failed (SNS disabled)", zap.Error(err))
		} else {
			snsClient = awsx.NewSNSClient(awsCfg)
		}
	}

	var deduper services.Deduper
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed (webhook dedup degraded)", zap.Error(err))
		} else {
			defer redisClient.Close()
			deduper = cache.NewRedisDeduper(redisClient)
		}
	}

	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)

	// --- Dependency injection ---
	userRepo := repository.NewGormUserRepository(db)
	categoryRepo := repository.NewGormCategoryRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	txManager := repository.NewGormTxManager(db)

	jwtService := services.NewJWTService(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, jwtService, mailer, logger)
	categoryService := services.NewCategoryService(categoryRepo, logger)
	productService := services.NewProductService(productRepo, categoryRepo, logger)
	orderService := services.NewOrderService(
		txManager, orderRepo, producer, cfg.OrderTopic,
		snsClient, cfg.SNSTopicARN, cfg.Currency, logger,
	)
	paymentService := services.NewPaymentService(
		txManager, paymentRepo, cfg.MerchantID, cfg.MerchantSecret,
		deduper, producer, cfg.PaymentTopic, logger,
	)

	authController := controllers.NewAuthController(authService)
	categoryController := controllers.NewCategoryController(categoryService)
	productController := controllers.NewProductController(productService)
	orderController := controllers.NewOrderController(orderService)
	paymentController := controllers.NewPaymentController(paymentService, orderService)

	// --- HTTP router ---
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Structured HTTP request logging
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	})

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.Register(r, jwtService, authController, categoryController, productController, orderController, paymentController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "commerce-backend"})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Commerce backend started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}

	logger.Info("Commerce backend stopped gracefully")
}
