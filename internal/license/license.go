// Package license implements the license lifecycle and seat-activation
// engine: brands provision license keys for customers, end-user products
// activate seats against those keys, and brands manage license status.
package license

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrBrandNotFound      = errors.New("license: brand not found")
	ErrProductNotFound    = errors.New("license: product not found")
	ErrLicenseKeyNotFound = errors.New("license: license key not found")
	ErrLicenseNotFound    = errors.New("license: license not found")
	ErrActivationNotFound = errors.New("license: activation not found")
	ErrLicenseExists      = errors.New("license: license already exists for this key and product")
	ErrLicenseKeyExists   = errors.New("license: license key already exists")
	ErrBrandExists        = errors.New("license: brand name already taken")
	ErrProductExists      = errors.New("license: product slug already taken for this brand")
	ErrSeatLimitExceeded  = errors.New("license: seat limit exceeded")
	ErrKeyGenExhausted    = errors.New("license: unable to generate unique license key")
	ErrForbidden          = errors.New("license: license does not belong to this brand")
)

// ValidationError reports malformed input or an illegal state transition.
// It is distinct from the sentinel errors so handlers can map it to 400
// while still surfacing the detail to the caller.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// Validationf builds a ValidationError with a formatted detail message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// Status represents a license's lifecycle state.
type Status string

const (
	StatusValid     Status = "valid"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Action is a lifecycle transition requested by a brand.
type Action string

const (
	ActionRenew   Action = "renew"
	ActionSuspend Action = "suspend"
	ActionResume  Action = "resume"
	ActionCancel  Action = "cancel"
)

// ValidAction reports whether a is a known lifecycle action.
func ValidAction(a Action) bool {
	switch a {
	case ActionRenew, ActionSuspend, ActionResume, ActionCancel:
		return true
	}
	return false
}

// Brand is a tenant owning products and issuing license keys.
type Brand struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"` // SHA256 of the brand credential (stored, never returned)
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Product is a sellable unit under exactly one brand, unique per (brand, slug).
type Product struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brand_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LicenseKey is the customer-facing credential unlocking one or more product
// licenses under a brand. At most one key exists per (brand, customer email);
// the key string is globally unique and immutable once created.
type LicenseKey struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	BrandID       string    `json:"brand_id"`
	CustomerEmail string    `json:"customer_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// License is one product entitlement under a license key, unique per
// (license key, product). MaxSeats nil means unlimited seats;
// ExpirationDate nil means the license never expires.
type License struct {
	ID             string     `json:"id"`
	LicenseKeyID   string     `json:"license_key_id"`
	ProductID      string     `json:"product_id"`
	Status         Status     `json:"status"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	MaxSeats       *int       `json:"max_seats,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsValid reports whether the license currently grants entitlement:
// status must be valid and the expiration date, when set, not in the past.
func (l *License) IsValid(now time.Time) bool {
	if l.Status != StatusValid {
		return false
	}
	if l.ExpirationDate != nil && l.ExpirationDate.Before(now) {
		return false
	}
	return true
}

// Activation is one seat consumption of a license by a caller-supplied
// instance identifier (site URL, host, machine id). Deactivated rows are
// retained as an audit trail, never deleted.
type Activation struct {
	ID            string     `json:"id"`
	LicenseID     string     `json:"license_id"`
	InstanceID    string     `json:"instance_id"`
	ActivatedAt   time.Time  `json:"activated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	IsActive      bool       `json:"is_active"`
}
