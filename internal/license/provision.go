package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyline/keyline/internal/keygen"
	"github.com/keyline/keyline/internal/metrics"
	"github.com/keyline/keyline/internal/traces"
	"github.com/keyline/keyline/internal/validation"
)

// ProductRequest is one requested product entitlement in a provisioning call.
type ProductRequest struct {
	Slug           string `json:"slug"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	MaxSeats       *int   `json:"max_seats,omitempty"`
}

// ProvisionResult is the outcome of a provisioning call.
type ProvisionResult struct {
	Key      *LicenseKey
	Licenses []*License
	// Created reports whether the license key was created by this call
	// (false when an existing key for the brand+email pair was reused).
	Created bool
}

// Provision resolves or creates the license key for (brand, customerEmail)
// and creates a license for each requested product. A product that already
// has a license on the key is returned unchanged, making the call idempotent
// per product. The whole batch commits atomically or not at all.
func (s *Service) Provision(ctx context.Context, brand *Brand, customerEmail string, products []ProductRequest) (*ProvisionResult, error) {
	ctx, span := traces.StartSpan(ctx, "license.Provision", traces.BrandID(brand.ID))
	defer span.End()

	if !validation.IsValidEmail(customerEmail) {
		return nil, Validationf("invalid customer_email %q", customerEmail)
	}
	if len(products) == 0 {
		return nil, Validationf("products must not be empty")
	}

	// Parse every expiration date up front so a malformed one fails the
	// whole call before anything is written.
	expirations := make([]*time.Time, len(products))
	for i, p := range products {
		if p.Slug == "" {
			return nil, Validationf("product slug is required")
		}
		exp, err := parseExpiration(p.ExpirationDate)
		if err != nil {
			return nil, Validationf("invalid expiration_date for %q: use ISO 8601 format (e.g. 2025-12-31T23:59:59Z)", p.Slug)
		}
		expirations[i] = exp
	}

	result := &ProvisionResult{}
	provisionTx := func(tx Store) error {
		key, err := tx.GetLicenseKeyForCustomer(ctx, brand.ID, customerEmail)
		switch {
		case err == nil:
			result.Key = key
		case errors.Is(err, ErrLicenseKeyNotFound):
			key, err = s.createUniqueKey(ctx, tx, brand.ID, customerEmail)
			if err != nil {
				return err
			}
			result.Key = key
			result.Created = true
		default:
			return fmt.Errorf("resolve license key: %w", err)
		}

		for i, p := range products {
			product, err := tx.GetActiveProductBySlug(ctx, brand.ID, p.Slug)
			if err != nil {
				if errors.Is(err, ErrProductNotFound) {
					return fmt.Errorf("product %q not found for brand %s: %w", p.Slug, brand.Name, ErrProductNotFound)
				}
				return fmt.Errorf("resolve product %q: %w", p.Slug, err)
			}

			existing, err := tx.GetLicenseByKeyAndProduct(ctx, key.ID, product.ID)
			if err == nil {
				// Already licensed on this key; reuse, don't duplicate.
				s.logger.Warn("license already exists on key",
					"product_slug", p.Slug, "license_key", key.Key)
				result.Licenses = append(result.Licenses, existing)
				continue
			}
			if !errors.Is(err, ErrLicenseNotFound) {
				return fmt.Errorf("check existing license: %w", err)
			}

			now := s.now()
			lic := &License{
				ID:             uuid.NewString(),
				LicenseKeyID:   key.ID,
				ProductID:      product.ID,
				Status:         StatusValid,
				ExpirationDate: expirations[i],
				MaxSeats:       p.MaxSeats,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.CreateLicense(ctx, lic); err != nil {
				return fmt.Errorf("create license for %q: %w", p.Slug, err)
			}
			metrics.LicensesCreatedTotal.Inc()
			result.Licenses = append(result.Licenses, lic)
		}
		return nil
	}

	err := s.store.InTx(ctx, provisionTx)
	if errors.Is(err, ErrLicenseKeyExists) {
		// A concurrent provision for the same customer committed its key
		// between our lookup and insert; rerun to reuse the winner's key.
		s.logger.Info("license key insert raced, retrying",
			"brand_id", brand.ID, "customer_email", customerEmail)
		result = &ProvisionResult{}
		err = s.store.InTx(ctx, provisionTx)
	}
	if err != nil {
		metrics.ProvisionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ProvisionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("provisioned license key",
		"license_key", result.Key.Key,
		"customer_email", customerEmail,
		"licenses", len(result.Licenses),
		"key_created", result.Created,
	)
	return result, nil
}

// createUniqueKey generates a license key, retrying on collision up to the
// configured bound, and persists it for the customer.
func (s *Service) createUniqueKey(ctx context.Context, tx Store, brandID, customerEmail string) (*LicenseKey, error) {
	for attempt := 0; attempt < s.keyAttempts; attempt++ {
		candidate := keygen.Generate()
		exists, err := tx.LicenseKeyExists(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("check key uniqueness: %w", err)
		}
		if exists {
			metrics.KeygenRetriesTotal.Inc()
			continue
		}

		now := s.now()
		key := &LicenseKey{
			ID:            uuid.NewString(),
			Key:           candidate,
			BrandID:       brandID,
			CustomerEmail: customerEmail,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateLicenseKey(ctx, key); err != nil {
			return nil, fmt.Errorf("create license key: %w", err)
		}
		return key, nil
	}
	return nil, ErrKeyGenExhausted
}

// AddProduct adds another product license to an existing license key. Unlike
// Provision, this path is explicitly additive: an existing license for the
// same product is a conflict, not a silent reuse.
func (s *Service) AddProduct(ctx context.Context, brand *Brand, keyString, productSlug, expirationDate string, maxSeats *int) (*License, error) {
	ctx, span := traces.StartSpan(ctx, "license.AddProduct",
		traces.BrandID(brand.ID), traces.ProductSlug(productSlug))
	defer span.End()

	if productSlug == "" {
		return nil, Validationf("product_slug is required")
	}
	exp, err := parseExpiration(expirationDate)
	if err != nil {
		return nil, err
	}

	var lic *License
	err = s.store.InTx(ctx, func(tx Store) error {
		key, err := tx.GetLicenseKeyByKey(ctx, keyString)
		if err != nil {
			return err
		}
		if key.BrandID != brand.ID {
			// Don't reveal that the key exists under another tenant.
			return ErrLicenseKeyNotFound
		}

		product, err := tx.GetActiveProductBySlug(ctx, brand.ID, productSlug)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return fmt.Errorf("product %q not found for brand %s: %w", productSlug, brand.Name, ErrProductNotFound)
			}
			return fmt.Errorf("resolve product %q: %w", productSlug, err)
		}

		if _, err := tx.GetLicenseByKeyAndProduct(ctx, key.ID, product.ID); err == nil {
			return ErrLicenseExists
		} else if !errors.Is(err, ErrLicenseNotFound) {
			return fmt.Errorf("check existing license: %w", err)
		}

		now := s.now()
		lic = &License{
			ID:             uuid.NewString(),
			LicenseKeyID:   key.ID,
			ProductID:      product.ID,
			Status:         StatusValid,
			ExpirationDate: exp,
			MaxSeats:       maxSeats,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateLicense(ctx, lic); err != nil {
			return fmt.Errorf("create license: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LicensesCreatedTotal.Inc()
	s.logger.Info("added product to license key", "license_key", keyString, "product_slug", productSlug)
	return lic, nil
}
