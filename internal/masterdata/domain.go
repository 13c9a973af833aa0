package masterdata

import (
	"context"
	"time"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	IsActive   *bool
	CategoryID *int64
}

// Branch represents one distribution branch.
type Branch struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsMain    bool      `json:"isMain"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category represents a product category.
type Category struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Product represents a product entity. StorageTempC is the required storage
// temperature in degrees Celsius.
type Product struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	CategoryID   int64     `json:"categoryId"`
	Price        float64   `json:"price"`
	StorageTempC float64   `json:"storageTempC"`
	IsAvailable  bool      `json:"isAvailable"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Repository interface for master data operations.
type Repository interface {
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, product Product) error

	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)

	ListBranches(ctx context.Context) ([]Branch, error)
	GetBranchByCode(ctx context.Context, code string) (Branch, error)
	CreateBranch(ctx context.Context, branch Branch) (Branch, error)
}
