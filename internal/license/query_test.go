package license

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	env.addProduct(t, "Content AI", "content-ai")
	ctx := context.Background()

	two := 2
	result := env.provision(t, "john@example.com",
		ProductRequest{Slug: "rankmath", MaxSeats: &two, ExpirationDate: "2030-01-01"},
		ProductRequest{Slug: "content-ai"},
	)

	_, err := env.svc.Activate(ctx, result.Key, "rankmath", "site-1.example.com")
	require.NoError(t, err)

	entries, err := env.svc.CheckStatus(ctx, result.Key)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	bySlug := map[string]LicenseStatusEntry{}
	for _, e := range entries {
		bySlug[e.ProductSlug] = e
	}

	rm := bySlug["rankmath"]
	assert.Equal(t, "Rank Math SEO", rm.Product)
	assert.Equal(t, result.Key.Key, rm.LicenseKey)
	assert.Equal(t, StatusValid, rm.Status)
	assert.True(t, rm.IsValid)
	require.NotNil(t, rm.ExpirationDate)
	assert.Equal(t, "2030-01-01T00:00:00Z", *rm.ExpirationDate)
	assert.Equal(t, 1, rm.ActiveSeats)
	require.NotNil(t, rm.RemainingSeats)
	assert.Equal(t, 1, *rm.RemainingSeats)
	assert.Empty(t, rm.Brand, "status for the key holder omits the brand name")

	cai := bySlug["content-ai"]
	assert.Nil(t, cai.ExpirationDate)
	assert.Nil(t, cai.MaxSeats)
	assert.Nil(t, cai.RemainingSeats)
	assert.Equal(t, 0, cai.ActiveSeats)
}

func TestCheckStatus_ReflectsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	ctx := context.Background()

	result := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"})
	licID := result.Licenses[0].ID

	_, err := env.svc.UpdateLifecycle(ctx, env.brand, licID, ActionSuspend, "")
	require.NoError(t, err)

	entries, err := env.svc.CheckStatus(ctx, result.Key)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSuspended, entries[0].Status)
	assert.False(t, entries[0].IsValid)
}

func TestListByEmail_AcrossBrands(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	ctx := context.Background()

	other := createBrand(t, env.store, "Acme")
	env.addProductForBrand(t, other, "Widget", "widget")

	env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"})
	_, err := env.svc.Provision(ctx, other, "john@example.com", []ProductRequest{{Slug: "widget"}})
	require.NoError(t, err)

	entries, err := env.svc.ListByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	brands := map[string]bool{}
	for _, e := range entries {
		brands[e.Brand] = true
	}
	assert.True(t, brands["Rank Math"])
	assert.True(t, brands["Acme"])
}

func TestListByEmail_NoLicenses(t *testing.T) {
	env := newTestEnv(t)

	entries, err := env.svc.ListByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListByEmail_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)
	var verr *ValidationError

	_, err := env.svc.ListByEmail(context.Background(), "")
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.ListByEmail(context.Background(), "not-an-email")
	assert.ErrorAs(t, err, &verr)
}
