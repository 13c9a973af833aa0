package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostline-foods/frostline/internal/platform/httpx"
)

// PGRepository persists master data in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const productColumns = `id, code, name, category_id, price, storage_temp_c, is_available, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.Price, &p.StorageTempC,
		&p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PGRepository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (LOWER(name) LIKE $` + n + ` OR LOWER(code) LIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_available = $` + strconv.Itoa(len(args))
	}
	if filters.CategoryID != nil {
		args = append(args, *filters.CategoryID)
		where += ` AND category_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filters.Page > 1 {
		offset = (filters.Page - 1) * limit
	}
	args = append(args, limit, offset)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *PGRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return p, err
}

func (r *PGRepository) CreateProduct(ctx context.Context, product Product) (Product, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (code, name, category_id, price, storage_temp_c, is_available, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		product.Code, product.Name, product.CategoryID, product.Price, product.StorageTempC, product.IsAvailable).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if isUniqueViolation(err) {
		return Product{}, fmt.Errorf("product code %q: %w", product.Code, httpx.ErrDuplicate)
	}
	return product, err
}

func (r *PGRepository) UpdateProduct(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET code = $1, name = $2, category_id = $3, price = $4, storage_temp_c = $5, is_available = $6, updated_at = NOW()
		 WHERE id = $7`,
		product.Code, product.Name, product.CategoryID, product.Price, product.StorageTempC, product.IsAvailable, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("product code %q: %w", product.Code, httpx.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *PGRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *PGRepository) CreateCategory(ctx context.Context, category Category) (Category, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (code, name) VALUES ($1, $2) RETURNING id`,
		category.Code, category.Name).Scan(&category.ID)
	if isUniqueViolation(err) {
		return Category{}, fmt.Errorf("category code %q: %w", category.Code, httpx.ErrDuplicate)
	}
	return category, err
}

func (r *PGRepository) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, address, is_main, created_at, updated_at FROM branches ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.IsMain, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (r *PGRepository) GetBranchByCode(ctx context.Context, code string) (Branch, error) {
	var b Branch
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, address, is_main, created_at, updated_at FROM branches WHERE code = $1`, code).
		Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.IsMain, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, fmt.Errorf("branch %q: %w", code, httpx.ErrNotFound)
	}
	return b, err
}

func (r *PGRepository) CreateBranch(ctx context.Context, branch Branch) (Branch, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO branches (code, name, address, is_main, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		branch.Code, branch.Name, branch.Address, branch.IsMain).
		Scan(&branch.ID, &branch.CreatedAt, &branch.UpdatedAt)
	if isUniqueViolation(err) {
		return Branch{}, fmt.Errorf("branch code %q: %w", branch.Code, httpx.ErrDuplicate)
	}
	return branch, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
