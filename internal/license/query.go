package license

import (
	"context"
	"fmt"
	"time"

	"github.com/keyline/keyline/internal/validation"
)

// LicenseStatusEntry is one license with its computed seat usage, as
// returned by the read-only query operations.
type LicenseStatusEntry struct {
	LicenseID      string  `json:"license_id"`
	LicenseKey     string  `json:"license_key"`
	Brand          string  `json:"brand,omitempty"`
	Product        string  `json:"product"`
	ProductSlug    string  `json:"product_slug"`
	Status         Status  `json:"status"`
	IsValid        bool    `json:"is_valid"`
	ExpirationDate *string `json:"expiration_date"`
	MaxSeats       *int    `json:"max_seats"`
	ActiveSeats    int     `json:"active_seats"`
	RemainingSeats *int    `json:"remaining_seats"`
}

// CheckStatus lists every license under the key with computed seat usage.
func (s *Service) CheckStatus(ctx context.Context, key *LicenseKey) ([]LicenseStatusEntry, error) {
	licenses, err := s.store.ListLicensesByKey(ctx, key.ID)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}

	entries := make([]LicenseStatusEntry, 0, len(licenses))
	for _, lic := range licenses {
		entry, err := s.statusEntry(ctx, key, lic, "")
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListByEmail lists a customer's licenses across all brands, for support
// tooling. Read-only; the authenticated brand sees other brands' names but
// never their credentials.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]LicenseStatusEntry, error) {
	if email == "" {
		return nil, Validationf("email parameter is required")
	}
	if !validation.IsValidEmail(email) {
		return nil, Validationf("invalid email %q", email)
	}

	keys, err := s.store.ListLicenseKeysByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list license keys: %w", err)
	}

	entries := make([]LicenseStatusEntry, 0)
	for _, key := range keys {
		brand, err := s.store.GetBrand(ctx, key.BrandID)
		if err != nil {
			return nil, fmt.Errorf("resolve brand: %w", err)
		}
		licenses, err := s.store.ListLicensesByKey(ctx, key.ID)
		if err != nil {
			return nil, fmt.Errorf("list licenses: %w", err)
		}
		for _, lic := range licenses {
			entry, err := s.statusEntry(ctx, key, lic, brand.Name)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Service) statusEntry(ctx context.Context, key *LicenseKey, lic *License, brandName string) (LicenseStatusEntry, error) {
	product, err := s.store.GetProduct(ctx, lic.ProductID)
	if err != nil {
		return LicenseStatusEntry{}, fmt.Errorf("resolve product: %w", err)
	}
	active, err := s.store.CountActiveActivations(ctx, lic.ID)
	if err != nil {
		return LicenseStatusEntry{}, fmt.Errorf("count activations: %w", err)
	}

	var expiration *string
	if lic.ExpirationDate != nil {
		formatted := lic.ExpirationDate.Format(time.RFC3339)
		expiration = &formatted
	}

	return LicenseStatusEntry{
		LicenseID:      lic.ID,
		LicenseKey:     key.Key,
		Brand:          brandName,
		Product:        product.Name,
		ProductSlug:    product.Slug,
		Status:         lic.Status,
		IsValid:        lic.IsValid(s.now()),
		ExpirationDate: expiration,
		MaxSeats:       lic.MaxSeats,
		ActiveSeats:    active,
		RemainingSeats: remainingSeats(lic.MaxSeats, active),
	}, nil
}
