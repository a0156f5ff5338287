package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyline/keyline/internal/metrics"
	"github.com/keyline/keyline/internal/traces"
)

// ActivationResult is the outcome of a seat activation.
type ActivationResult struct {
	Activation *Activation
	// Created reports whether a new seat was consumed (false for the
	// idempotent re-activation of an already-active instance).
	Created bool
	// RemainingSeats is nil when the license has no seat limit.
	RemainingSeats *int
}

// Activate consumes a seat on the license for (key, productSlug) on behalf
// of instanceID. Re-activating an already-active instance returns the
// existing activation unchanged. The existence check, seat count, and
// insert run in one transaction under a row lock on the license, so
// concurrent activations cannot oversell seats.
func (s *Service) Activate(ctx context.Context, key *LicenseKey, productSlug, instanceID string) (*ActivationResult, error) {
	ctx, span := traces.StartSpan(ctx, "license.Activate",
		traces.LicenseKeyID(key.ID), traces.ProductSlug(productSlug), traces.InstanceID(instanceID))
	defer span.End()

	if instanceID == "" {
		return nil, Validationf("instance_id is required")
	}
	if productSlug == "" {
		return nil, Validationf("product_slug is required")
	}

	result := &ActivationResult{}
	err := s.store.InTx(ctx, func(tx Store) error {
		lic, err := s.resolveLicense(ctx, tx, key, productSlug)
		if err != nil {
			return err
		}

		// Serialize seat accounting for this license.
		lic, err = tx.LockLicense(ctx, lic.ID)
		if err != nil {
			return err
		}

		now := s.now()
		if !lic.IsValid(now) {
			if lic.Status != StatusValid {
				return Validationf("license is %s", lic.Status)
			}
			return Validationf("license expired on %s", lic.ExpirationDate.Format(time.RFC3339))
		}

		existing, err := tx.GetActiveActivation(ctx, lic.ID, instanceID)
		if err == nil {
			// Idempotent re-activation: same seat, no new row.
			count, err := tx.CountActiveActivations(ctx, lic.ID)
			if err != nil {
				return fmt.Errorf("count activations: %w", err)
			}
			result.Activation = existing
			result.RemainingSeats = remainingSeats(lic.MaxSeats, count)
			return nil
		}
		if !errors.Is(err, ErrActivationNotFound) {
			return fmt.Errorf("check existing activation: %w", err)
		}

		count, err := tx.CountActiveActivations(ctx, lic.ID)
		if err != nil {
			return fmt.Errorf("count activations: %w", err)
		}
		if lic.MaxSeats != nil && count >= *lic.MaxSeats {
			return ErrSeatLimitExceeded
		}

		activation := &Activation{
			ID:          uuid.NewString(),
			LicenseID:   lic.ID,
			InstanceID:  instanceID,
			ActivatedAt: now,
			IsActive:    true,
		}
		if err := tx.CreateActivation(ctx, activation); err != nil {
			return fmt.Errorf("create activation: %w", err)
		}
		result.Activation = activation
		result.Created = true
		result.RemainingSeats = remainingSeats(lic.MaxSeats, count+1)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSeatLimitExceeded):
			metrics.SeatLimitRejectionsTotal.Inc()
			metrics.ActivationsTotal.WithLabelValues("rejected").Inc()
		default:
			metrics.ActivationsTotal.WithLabelValues("invalid").Inc()
		}
		return nil, err
	}

	if result.Created {
		metrics.ActivationsTotal.WithLabelValues("created").Inc()
		s.logger.Info("seat activated",
			"license_id", result.Activation.LicenseID,
			"instance_id", instanceID, "product_slug", productSlug)
	} else {
		metrics.ActivationsTotal.WithLabelValues("idempotent").Inc()
	}
	return result, nil
}

// Deactivate releases the seat held by instanceID on the license for
// (key, productSlug) and returns the remaining seat count. Deactivating an
// instance with no active activation is an error, not a no-op.
func (s *Service) Deactivate(ctx context.Context, key *LicenseKey, productSlug, instanceID string) (*int, error) {
	ctx, span := traces.StartSpan(ctx, "license.Deactivate",
		traces.LicenseKeyID(key.ID), traces.ProductSlug(productSlug), traces.InstanceID(instanceID))
	defer span.End()

	if instanceID == "" {
		return nil, Validationf("instance_id is required")
	}
	if productSlug == "" {
		return nil, Validationf("product_slug is required")
	}

	var remaining *int
	err := s.store.InTx(ctx, func(tx Store) error {
		lic, err := s.resolveLicense(ctx, tx, key, productSlug)
		if err != nil {
			return err
		}
		lic, err = tx.LockLicense(ctx, lic.ID)
		if err != nil {
			return err
		}

		activation, err := tx.GetActiveActivation(ctx, lic.ID, instanceID)
		if err != nil {
			return err
		}

		now := s.now()
		activation.IsActive = false
		activation.DeactivatedAt = &now
		if err := tx.UpdateActivation(ctx, activation); err != nil {
			return fmt.Errorf("deactivate: %w", err)
		}

		count, err := tx.CountActiveActivations(ctx, lic.ID)
		if err != nil {
			return fmt.Errorf("count activations: %w", err)
		}
		remaining = remainingSeats(lic.MaxSeats, count)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DeactivationsTotal.Inc()
	s.logger.Info("seat deactivated", "instance_id", instanceID, "product_slug", productSlug)
	return remaining, nil
}

// resolveLicense finds the license for (key, productSlug) among the brand's
// active products.
func (s *Service) resolveLicense(ctx context.Context, tx Store, key *LicenseKey, productSlug string) (*License, error) {
	product, err := tx.GetActiveProductBySlug(ctx, key.BrandID, productSlug)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, fmt.Errorf("no license for product %q on this key: %w", productSlug, ErrLicenseNotFound)
		}
		return nil, fmt.Errorf("resolve product %q: %w", productSlug, err)
	}
	lic, err := tx.GetLicenseByKeyAndProduct(ctx, key.ID, product.ID)
	if err != nil {
		if errors.Is(err, ErrLicenseNotFound) {
			return nil, fmt.Errorf("no license for product %q on this key: %w", productSlug, ErrLicenseNotFound)
		}
		return nil, err
	}
	return lic, nil
}

// remainingSeats computes max_seats - activeCount, clamped at zero.
// Returns nil for unlimited licenses.
func remainingSeats(maxSeats *int, activeCount int) *int {
	if maxSeats == nil {
		return nil
	}
	r := *maxSeats - activeCount
	if r < 0 {
		r = 0
	}
	return &r
}
