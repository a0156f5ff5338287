package license

import (
	"context"
	"fmt"

	"github.com/keyline/keyline/internal/metrics"
	"github.com/keyline/keyline/internal/traces"
)

// UpdateLifecycle applies a lifecycle action to a license owned by brand.
//
// State machine over License.Status (cancelled is terminal):
//
//	valid -> suspended            (suspend)
//	suspended -> valid            (resume)
//	valid|suspended -> cancelled  (cancel; idempotent when already cancelled)
//	valid|suspended -> valid      (renew; sets the expiration date and
//	                               clears a suspension)
func (s *Service) UpdateLifecycle(ctx context.Context, brand *Brand, licenseID string, action Action, expirationDate string) (*License, error) {
	ctx, span := traces.StartSpan(ctx, "license.UpdateLifecycle",
		traces.BrandID(brand.ID), traces.LicenseID(licenseID), traces.LifecycleAction(string(action)))
	defer span.End()

	if !ValidAction(action) {
		return nil, Validationf("unknown lifecycle action %q", action)
	}

	var updated *License
	err := s.store.InTx(ctx, func(tx Store) error {
		lic, err := tx.LockLicense(ctx, licenseID)
		if err != nil {
			return err
		}

		// Tenant isolation: a brand may only mutate its own licenses.
		key, err := tx.GetLicenseKey(ctx, lic.LicenseKeyID)
		if err != nil {
			return fmt.Errorf("resolve license key: %w", err)
		}
		if key.BrandID != brand.ID {
			return ErrForbidden
		}

		switch action {
		case ActionRenew:
			if lic.Status == StatusCancelled {
				return Validationf("cannot renew cancelled license")
			}
			exp, err := parseExpiration(expirationDate)
			if err != nil {
				return err
			}
			lic.ExpirationDate = exp
			if lic.Status == StatusSuspended {
				lic.Status = StatusValid
			}

		case ActionSuspend:
			if lic.Status == StatusCancelled {
				return Validationf("cannot suspend cancelled license")
			}
			lic.Status = StatusSuspended

		case ActionResume:
			if lic.Status != StatusSuspended {
				return Validationf("license is not suspended")
			}
			lic.Status = StatusValid

		case ActionCancel:
			// Re-cancelling is a no-op, not an error.
			lic.Status = StatusCancelled
		}

		if err := tx.UpdateLicense(ctx, lic); err != nil {
			return fmt.Errorf("update license: %w", err)
		}
		updated = lic
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues(string(action)).Inc()
	s.logger.Info("license lifecycle updated",
		"license_id", licenseID, "action", action, "status", updated.Status)
	return updated, nil
}
