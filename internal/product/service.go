package product

import (
	"context"
	"fmt"
	"strings"

	"vipra-store/internal/logger"

	"go.uber.org/zap"
)

// maxNameLength matches products.name VARCHAR(120).
const maxNameLength = 120

// Service is the operator-facing catalog API used by storectl.
type Service interface {
	List(ctx context.Context) ([]Product, error)
	Add(ctx context.Context, input NewProductInput) (*Product, error)
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *service) Add(ctx context.Context, input NewProductInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Add"),
	)

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidProduct)
	}
	if len(input.Name) > maxNameLength {
		return nil, fmt.Errorf("%w: name must be %d characters or fewer", ErrInvalidProduct, maxNameLength)
	}
	if input.PriceINR <= 0 {
		return nil, fmt.Errorf("%w: price must be a positive whole number", ErrInvalidProduct)
	}

	p, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	log.Info("product created", zap.Uint("product_id", p.ID), zap.Int("price_in_inr", p.PriceINR))
	return p, nil
}

func (s *service) SetActive(ctx context.Context, id uint, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	logger.FromCtx(ctx).Info("product visibility changed",
		zap.Uint("product_id", id), zap.Bool("is_active", active))
	return nil
}

func (s *service) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}
