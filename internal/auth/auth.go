// Package auth resolves request credentials into principals.
//
// Authentication model:
// - Brand API: X-API-Key carries the brand credential (stored hashed)
// - Product API: X-License-Key carries a customer license key
// - Admin API: X-Admin-Secret guards onboarding endpoints
//
// A request is resolved once at the boundary into a tagged Principal; the
// core engines trust the resolved identity and never re-validate credentials.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/keyline/keyline/internal/idgen"
	"github.com/keyline/keyline/internal/license"
)

// Errors
var (
	ErrNoCredentials     = errors.New("auth: credentials required")
	ErrInvalidAPIKey     = errors.New("auth: invalid API key")
	ErrInvalidLicenseKey = errors.New("auth: invalid license key")
)

// Request headers carrying credentials.
const (
	HeaderAPIKey      = "X-API-Key"
	HeaderLicenseKey  = "X-License-Key"
	HeaderAdminSecret = "X-Admin-Secret"
)

// Principal is the authenticated caller identity: either a brand (tenant
// back-office) or a license key (end-user product install).
type Principal interface {
	principal()
}

// BrandPrincipal is an authenticated brand.
type BrandPrincipal struct {
	Brand *license.Brand
}

func (BrandPrincipal) principal() {}

// LicenseKeyPrincipal is an authenticated license key.
type LicenseKeyPrincipal struct {
	Key *license.LicenseKey
}

func (LicenseKeyPrincipal) principal() {}

// Manager resolves raw credentials against the store.
type Manager struct {
	store license.Store
}

// NewManager creates a new auth manager.
func NewManager(store license.Store) *Manager {
	return &Manager{store: store}
}

// AuthenticateBrand resolves a brand API key. Inactive brands fail
// authentication the same way unknown keys do.
func (m *Manager) AuthenticateBrand(ctx context.Context, rawKey string) (*license.Brand, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrNoCredentials
	}

	brand, err := m.store.GetBrandByKeyHash(ctx, HashKey(rawKey))
	if err != nil {
		return nil, ErrInvalidAPIKey
	}
	if !brand.IsActive {
		return nil, ErrInvalidAPIKey
	}
	return brand, nil
}

// AuthenticateLicenseKey resolves a customer license key credential.
func (m *Manager) AuthenticateLicenseKey(ctx context.Context, rawKey string) (*license.LicenseKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrNoCredentials
	}

	key, err := m.store.GetLicenseKeyByKey(ctx, rawKey)
	if err != nil {
		return nil, ErrInvalidLicenseKey
	}
	return key, nil
}

// GenerateAPIKey creates a new raw brand credential. The raw key is shown
// once at onboarding; only its hash is stored.
func GenerateAPIKey() string {
	return idgen.WithPrefix("bk_", 32)
}

// HashKey returns the SHA256 hex digest stored for a raw credential.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
