package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyline/keyline/internal/license"
)

func seedBrand(t *testing.T, store license.Store, rawKey string, active bool) *license.Brand {
	t.Helper()
	now := time.Now().UTC()
	b := &license.Brand{
		ID:         "brand-1",
		Name:       "Rank Math",
		APIKeyHash: HashKey(rawKey),
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateBrand(context.Background(), b))
	return b
}

func TestAuthenticateBrand(t *testing.T) {
	store := license.NewMemoryStore()
	rawKey := GenerateAPIKey()
	brand := seedBrand(t, store, rawKey, true)
	mgr := NewManager(store)
	ctx := context.Background()

	got, err := mgr.AuthenticateBrand(ctx, rawKey)
	require.NoError(t, err)
	assert.Equal(t, brand.ID, got.ID)

	// Leading/trailing whitespace is tolerated.
	got, err = mgr.AuthenticateBrand(ctx, "  "+rawKey+"  ")
	require.NoError(t, err)
	assert.Equal(t, brand.ID, got.ID)

	_, err = mgr.AuthenticateBrand(ctx, "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = mgr.AuthenticateBrand(ctx, "bk_wrong")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAuthenticateBrand_Inactive(t *testing.T) {
	store := license.NewMemoryStore()
	rawKey := GenerateAPIKey()
	seedBrand(t, store, rawKey, false)
	mgr := NewManager(store)

	// Deactivated brands fail exactly like unknown keys.
	_, err := mgr.AuthenticateBrand(context.Background(), rawKey)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAuthenticateLicenseKey(t *testing.T) {
	store := license.NewMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	now := time.Now().UTC()
	key := &license.LicenseKey{
		ID:            "key-1",
		Key:           "AAAA-BBBB-CCCC-DDDD",
		BrandID:       "brand-1",
		CustomerEmail: "john@example.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.CreateLicenseKey(ctx, key))

	got, err := mgr.AuthenticateLicenseKey(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)

	_, err = mgr.AuthenticateLicenseKey(ctx, "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = mgr.AuthenticateLicenseKey(ctx, "XXXX-XXXX-XXXX-XXXX")
	assert.ErrorIs(t, err, ErrInvalidLicenseKey)
}

func TestGenerateAPIKey(t *testing.T) {
	a := GenerateAPIKey()
	b := GenerateAPIKey()

	assert.True(t, strings.HasPrefix(a, "bk_"))
	assert.Len(t, a, 3+64) // prefix + 32 bytes hex
	assert.NotEqual(t, a, b)
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
	assert.Len(t, HashKey("abc"), 64)
}

func TestSecretsEqual(t *testing.T) {
	assert.True(t, SecretsEqual("s3cret", "s3cret"))
	assert.False(t, SecretsEqual("s3cret", "s3cres"))
	assert.False(t, SecretsEqual("s3cret", ""))
}
