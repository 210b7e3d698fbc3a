package services

import (
	"context"
	"errors"

	"commerce-backend/models"
	"commerce-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProductRequest struct {
	Title      string    `json:"title" binding:"required"`
	Price      float64   `json:"price" binding:"required,gt=0"`
	Stock      int       `json:"stock" binding:"min=0"`
	CategoryID uuid.UUID `json:"category_id" binding:"required"`
}

type ProductListResponse struct {
	Products []models.Product `json:"products"`
	Meta     MetaData         `json:"meta"`
}

// ProductService handles catalog CRUD. Stock mutations during ordering go
// through OrderService, not here.
type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
}

func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, logger *zap.Logger) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, creator *Principal, req *ProductRequest) (*models.Product, *ServiceError) {
	if !creator.Role.CanManageCatalog() {
		return nil, &ServiceError{StatusCode: 403, Message: "Creator or admin access required"}
	}

	if _, err := s.categoryRepo.FindByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 400, Message: "Category not found"}
		}
		s.logger.Error("Failed to look up category", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
	}

	product := &models.Product{
		Title:      req.Title,
		Price:      req.Price,
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
		CreatedBy:  creator.UserID,
		IsActive:   true,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("created_by", creator.UserID.String()),
	)
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, *ServiceError) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to fetch product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch product"}
	}
	return product, nil
}

// ListProducts returns paginated products. Non-admin callers only see active
// products.
func (s *ProductService) ListProducts(ctx context.Context, page, limit int, includeInactive bool) (*ProductListResponse, *ServiceError) {
	products, total, err := s.productRepo.FindAll(ctx, page, limit, !includeInactive)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch products"}
	}

	return &ProductListResponse{
		Products: products,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, caller *Principal, id uuid.UUID, req *ProductRequest) (*models.Product, *ServiceError) {
	product, svcErr := s.GetProduct(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}

	if !caller.Role.IsAdmin() && product.CreatedBy != caller.UserID {
		return nil, &ServiceError{StatusCode: 403, Message: "Not allowed to edit this product"}
	}

	product.Title = req.Title
	product.Price = req.Price
	product.Stock = req.Stock
	product.CategoryID = req.CategoryID
	if err := s.productRepo.Update(ctx, product); err != nil {
		s.logger.Error("Failed to update product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update product"}
	}
	return product, nil
}

// DeactivateProduct hides a product from the catalog without deleting it, so
// existing orders keep their references.
func (s *ProductService) DeactivateProduct(ctx context.Context, caller *Principal, id uuid.UUID) *ServiceError {
	product, svcErr := s.GetProduct(ctx, id)
	if svcErr != nil {
		return svcErr
	}

	if !caller.Role.IsAdmin() && product.CreatedBy != caller.UserID {
		return &ServiceError{StatusCode: 403, Message: "Not allowed to edit this product"}
	}

	product.IsActive = false
	if err := s.productRepo.Update(ctx, product); err != nil {
		s.logger.Error("Failed to deactivate product", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to deactivate product"}
	}
	return nil
}
