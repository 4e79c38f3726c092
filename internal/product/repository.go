package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vipra-store/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const foreignKeyViolation = "23503"

const productColumns = "id, name, description, price_in_inr, is_active, created_at"

type Repository interface {
	ListActive(ctx context.Context) ([]Product, error)
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id uint) (*Product, error)
	Create(ctx context.Context, input NewProductInput) (*Product, error)
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// ListActive returns the catalog in ascending id order.
func (r *repository) ListActive(ctx context.Context) ([]Product, error) {
	return r.query(ctx, "ListActive",
		"SELECT "+productColumns+" FROM products WHERE is_active = TRUE ORDER BY id")
}

func (r *repository) List(ctx context.Context) ([]Product, error) {
	return r.query(ctx, "List",
		"SELECT "+productColumns+" FROM products ORDER BY id")
}

func (r *repository) query(ctx context.Context, method, q string, args ...any) ([]Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", method),
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		log.Error("db: failed to query products", zap.Error(err))
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceINR, &p.IsActive, &p.CreatedAt); err != nil {
			log.Error("db: failed to scan product", zap.Error(err))
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.PriceINR, &p.IsActive, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	return &p, nil
}

func (r *repository) Create(ctx context.Context, input NewProductInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
	)

	p := Product{
		Name:        input.Name,
		Description: input.Description,
		PriceINR:    input.PriceINR,
		IsActive:    input.IsActive,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price_in_inr, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.Name, p.Description, p.PriceINR, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		log.Error("db: failed to insert product", zap.Error(err))
		return nil, fmt.Errorf("insert product: %w", err)
	}

	return &p, nil
}

func (r *repository) SetActive(ctx context.Context, id uint, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET is_active = $1 WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}

	return expectOneRow(res)
}

// Delete refuses products that still have order history.
func (r *repository) Delete(ctx context.Context, id uint) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Delete"),
		zap.Uint("product_id", id),
	)

	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			log.Warn("product delete blocked by order items")
			return ErrProductInUse
		}
		log.Error("db: failed to delete product", zap.Error(err))
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}
