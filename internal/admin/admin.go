// Package admin provides operator-only onboarding of brands and products.
// Brands never onboard themselves; the endpoints sit behind a shared admin
// secret and are disabled entirely when no secret is configured.
package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/internal/license"
	"github.com/keyline/keyline/internal/validation"
)

// Service creates brands and products.
type Service struct {
	store  license.Store
	logger *slog.Logger
}

// NewService creates a new onboarding service.
func NewService(store license.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// BrandResult carries a freshly created brand together with its raw API
// key. The raw key is returned exactly once; only its hash is stored.
type BrandResult struct {
	Brand  *license.Brand
	APIKey string
}

// CreateBrand registers a new brand and mints its API credential.
func (s *Service) CreateBrand(ctx context.Context, name string) (*BrandResult, error) {
	name = validation.SanitizeString(name, validation.MaxStringLength)
	if name == "" {
		return nil, license.Validationf("brand name is required")
	}

	rawKey := auth.GenerateAPIKey()
	now := time.Now().UTC()
	brand := &license.Brand{
		ID:         uuid.NewString(),
		Name:       name,
		APIKeyHash: auth.HashKey(rawKey),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateBrand(ctx, brand); err != nil {
		return nil, err
	}

	s.logger.Info("brand created", "brand_id", brand.ID, "name", brand.Name)
	return &BrandResult{Brand: brand, APIKey: rawKey}, nil
}

// CreateProduct registers a product under an existing brand. The slug must
// be unique within the brand.
func (s *Service) CreateProduct(ctx context.Context, brandID, name, slug string) (*license.Product, error) {
	name = validation.SanitizeString(name, validation.MaxStringLength)
	if name == "" {
		return nil, license.Validationf("product name is required")
	}
	if !validation.IsValidSlug(slug) {
		return nil, license.Validationf("invalid product slug %q", slug)
	}

	if _, err := s.store.GetBrand(ctx, brandID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &license.Product{
		ID:        uuid.NewString(),
		BrandID:   brandID,
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product created", "product_id", product.ID, "brand_id", brandID, "slug", slug)
	return product, nil
}
