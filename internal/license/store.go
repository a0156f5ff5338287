package license

import "context"

// BrandStore persists brands.
type BrandStore interface {
	CreateBrand(ctx context.Context, b *Brand) error
	GetBrand(ctx context.Context, id string) (*Brand, error)
	GetBrandByKeyHash(ctx context.Context, hash string) (*Brand, error)
}

// ProductStore persists products.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	// GetActiveProductBySlug resolves an active product scoped to a brand.
	// Inactive products are treated as absent.
	GetActiveProductBySlug(ctx context.Context, brandID, slug string) (*Product, error)
}

// LicenseKeyStore persists license keys.
type LicenseKeyStore interface {
	CreateLicenseKey(ctx context.Context, k *LicenseKey) error
	GetLicenseKey(ctx context.Context, id string) (*LicenseKey, error)
	GetLicenseKeyByKey(ctx context.Context, key string) (*LicenseKey, error)
	GetLicenseKeyForCustomer(ctx context.Context, brandID, email string) (*LicenseKey, error)
	LicenseKeyExists(ctx context.Context, key string) (bool, error)
	ListLicenseKeysByEmail(ctx context.Context, email string) ([]*LicenseKey, error)
}

// LicenseStore persists licenses.
type LicenseStore interface {
	CreateLicense(ctx context.Context, l *License) error
	GetLicense(ctx context.Context, id string) (*License, error)
	GetLicenseByKeyAndProduct(ctx context.Context, keyID, productID string) (*License, error)
	// LockLicense fetches a license and, inside a transaction, takes a
	// row-level write lock on it so concurrent seat accounting for the
	// same license is serialized. Outside a transaction it behaves like
	// GetLicense.
	LockLicense(ctx context.Context, id string) (*License, error)
	UpdateLicense(ctx context.Context, l *License) error
	ListLicensesByKey(ctx context.Context, keyID string) ([]*License, error)
}

// ActivationStore persists seat activations.
type ActivationStore interface {
	CreateActivation(ctx context.Context, a *Activation) error
	GetActiveActivation(ctx context.Context, licenseID, instanceID string) (*Activation, error)
	CountActiveActivations(ctx context.Context, licenseID string) (int, error)
	UpdateActivation(ctx context.Context, a *Activation) error
}

// Store groups the per-entity repositories behind a single unit-of-work
// boundary. InTx runs fn against a transactional view of the store: every
// mutation fn makes is committed together or rolled back together. Nested
// InTx calls join the enclosing transaction.
type Store interface {
	BrandStore
	ProductStore
	LicenseKeyStore
	LicenseStore
	ActivationStore

	InTx(ctx context.Context, fn func(Store) error) error
}
