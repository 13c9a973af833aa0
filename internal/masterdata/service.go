package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/frostline-foods/frostline/internal/inventory"
	"github.com/frostline-foods/frostline/internal/platform/httpx"
)

// Service coordinates master data operations.
type Service struct {
	repo Repository
}

// NewService creates a new master data service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("invalid product id: %w", httpx.ErrValidation)
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	return s.repo.CreateProduct(ctx, product)
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return fmt.Errorf("invalid product id: %w", httpx.ErrValidation)
	}
	if err := validateProduct(product); err != nil {
		return err
	}
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	return s.repo.UpdateProduct(ctx, id, product)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, category Category) (Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return Category{}, fmt.Errorf("category name required: %w", httpx.ErrValidation)
	}
	category.Code = strings.ToUpper(strings.TrimSpace(category.Code))
	if category.Code == "" {
		return Category{}, fmt.Errorf("category code required: %w", httpx.ErrValidation)
	}
	return s.repo.CreateCategory(ctx, category)
}

func (s *Service) ListBranches(ctx context.Context) ([]Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, branch Branch) (Branch, error) {
	if strings.TrimSpace(branch.Name) == "" {
		return Branch{}, fmt.Errorf("branch name required: %w", httpx.ErrValidation)
	}
	branch.Code = strings.ToUpper(strings.TrimSpace(branch.Code))
	if branch.Code == "" {
		return Branch{}, fmt.Errorf("branch code required: %w", httpx.ErrValidation)
	}
	return s.repo.CreateBranch(ctx, branch)
}

// ResolveMainBranch returns the branch for the configured main branch code.
// Called once at startup; the ledger receives the resolved id, never the code.
func (s *Service) ResolveMainBranch(ctx context.Context, code string) (Branch, error) {
	return s.repo.GetBranchByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func validateProduct(product Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("product name required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(product.Code) == "" {
		return fmt.Errorf("product code required: %w", httpx.ErrValidation)
	}
	if product.Price < 0 {
		return fmt.Errorf("product price must not be negative: %w", httpx.ErrValidation)
	}
	return nil
}

// ProductLookup adapts master data to the ledger's product port.
type ProductLookup struct {
	repo Repository
}

// NewProductLookup constructs ProductLookup.
func NewProductLookup(repo Repository) *ProductLookup {
	return &ProductLookup{repo: repo}
}

// Lookup implements inventory.ProductPort.
func (l *ProductLookup) Lookup(ctx context.Context, productID int64) (inventory.ProductRef, error) {
	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return inventory.ProductRef{}, inventory.ErrProductNotFound
	}
	return inventory.ProductRef{
		ID:        product.ID,
		Code:      product.Code,
		Name:      product.Name,
		Available: product.IsAvailable,
	}, nil
}
