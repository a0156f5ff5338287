package license

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyFormat = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestProvision_CreatesKeyAndLicenses(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	env.addProduct(t, "Content AI", "content-ai")

	maxSeats := 5
	result := env.provision(t, "john@example.com",
		ProductRequest{Slug: "rankmath", MaxSeats: &maxSeats},
		ProductRequest{Slug: "content-ai", ExpirationDate: "2030-01-01"},
	)

	assert.True(t, result.Created)
	assert.Regexp(t, keyFormat, result.Key.Key)
	assert.Equal(t, "john@example.com", result.Key.CustomerEmail)
	assert.Equal(t, env.brand.ID, result.Key.BrandID)
	require.Len(t, result.Licenses, 2)

	first := result.Licenses[0]
	assert.Equal(t, StatusValid, first.Status)
	require.NotNil(t, first.MaxSeats)
	assert.Equal(t, 5, *first.MaxSeats)
	assert.Nil(t, first.ExpirationDate)

	second := result.Licenses[1]
	assert.Nil(t, second.MaxSeats)
	require.NotNil(t, second.ExpirationDate)
	assert.Equal(t, "2030-01-01T00:00:00Z", second.ExpirationDate.Format(time.RFC3339))
}

func TestProvision_IdempotentPerProduct(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")

	first := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"})
	second := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"})

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Key.Key, second.Key.Key)
	require.Len(t, second.Licenses, 1)
	assert.Equal(t, first.Licenses[0].ID, second.Licenses[0].ID)

	licenses, err := env.store.ListLicensesByKey(context.Background(), first.Key.ID)
	require.NoError(t, err)
	assert.Len(t, licenses, 1)
}

func TestProvision_ReusesKeyForNewProduct(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	env.addProduct(t, "Content AI", "content-ai")

	first := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"})
	second := env.provision(t, "john@example.com", ProductRequest{Slug: "content-ai"})

	assert.False(t, second.Created)
	assert.Equal(t, first.Key.Key, second.Key.Key)

	licenses, err := env.store.ListLicensesByKey(context.Background(), first.Key.ID)
	require.NoError(t, err)
	assert.Len(t, licenses, 2)
}

func TestProvision_DistinctCustomersGetDistinctKeys(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")

	first := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"})
	second := env.provision(t, "jane@example.com", ProductRequest{Slug: "rankmath"})

	assert.NotEqual(t, first.Key.Key, second.Key.Key)
}

func TestProvision_ValidationFailures(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		products []ProductRequest
	}{
		{"bad email", "not-an-email", []ProductRequest{{Slug: "rankmath"}}},
		{"empty products", "john@example.com", nil},
		{"empty slug", "john@example.com", []ProductRequest{{Slug: ""}}},
		{"bad expiration", "john@example.com", []ProductRequest{{Slug: "rankmath", ExpirationDate: "soon"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Provision(ctx, env.brand, tc.email, tc.products)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestProvision_UnknownProductRollsBackKey(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	ctx := context.Background()

	_, err := env.svc.Provision(ctx, env.brand, "john@example.com", []ProductRequest{
		{Slug: "rankmath"},
		{Slug: "no-such-product"},
	})
	require.ErrorIs(t, err, ErrProductNotFound)

	// The whole batch rolled back: no key was left behind for the customer.
	_, err = env.store.GetLicenseKeyForCustomer(ctx, env.brand.ID, "john@example.com")
	assert.ErrorIs(t, err, ErrLicenseKeyNotFound)
}

func TestProvision_DoesNotSeeOtherBrandsProducts(t *testing.T) {
	env := newTestEnv(t)
	other := createBrand(t, env.store, "Acme")
	env.addProductForBrand(t, other, "Widget", "widget")

	_, err := env.svc.Provision(context.Background(), env.brand, "john@example.com",
		[]ProductRequest{{Slug: "widget"}})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAddProduct(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	env.addProduct(t, "Content AI", "content-ai")
	ctx := context.Background()

	key := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"}).Key

	maxSeats := 3
	lic, err := env.svc.AddProduct(ctx, env.brand, key.Key, "content-ai", "2030-06-30", &maxSeats)
	require.NoError(t, err)

	assert.Equal(t, key.ID, lic.LicenseKeyID)
	assert.Equal(t, StatusValid, lic.Status)
	require.NotNil(t, lic.MaxSeats)
	assert.Equal(t, 3, *lic.MaxSeats)

	licenses, err := env.store.ListLicensesByKey(ctx, key.ID)
	require.NoError(t, err)
	assert.Len(t, licenses, 2)
}

func TestAddProduct_DuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")

	key := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"}).Key

	_, err := env.svc.AddProduct(context.Background(), env.brand, key.Key, "rankmath", "", nil)
	assert.ErrorIs(t, err, ErrLicenseExists)
}

func TestAddProduct_ForeignKeyHidden(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")
	other := createBrand(t, env.store, "Acme")

	key := env.provision(t, "john@example.com", ProductRequest{Slug: "rankmath"}).Key

	// Another brand probing this key learns nothing beyond "not found".
	_, err := env.svc.AddProduct(context.Background(), other, key.Key, "rankmath", "", nil)
	assert.ErrorIs(t, err, ErrLicenseKeyNotFound)
}

func TestAddProduct_UnknownKey(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")

	_, err := env.svc.AddProduct(context.Background(), env.brand, "AAAA-BBBB-CCCC-DDDD", "rankmath", "", nil)
	assert.ErrorIs(t, err, ErrLicenseKeyNotFound)
}

// contendedStore simulates a concurrent provision that commits the
// customer's key between this transaction's lookup and its insert.
type contendedStore struct {
	*MemoryStore
	winner *LicenseKey
	raced  bool
}

func (c *contendedStore) InTx(ctx context.Context, fn func(Store) error) error {
	if !c.raced {
		c.raced = true
		if err := c.MemoryStore.CreateLicenseKey(ctx, c.winner); err != nil {
			return err
		}
		return ErrLicenseKeyExists
	}
	return c.MemoryStore.InTx(ctx, fn)
}

func TestProvision_ConcurrentFirstProvisionReusesWinnerKey(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Rank Math SEO", "rankmath")

	now := time.Now().UTC()
	winner := &LicenseKey{
		ID:            uuid.NewString(),
		Key:           "AAAA-BBBB-CCCC-DDDD",
		BrandID:       env.brand.ID,
		CustomerEmail: "john@example.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(&contendedStore{MemoryStore: env.store, winner: winner}, logger)

	result, err := svc.Provision(context.Background(), env.brand, "john@example.com",
		[]ProductRequest{{Slug: "rankmath"}})
	require.NoError(t, err)
	assert.False(t, result.Created, "loser must reuse the winner's key")
	assert.Equal(t, winner.Key, result.Key.Key)
	require.Len(t, result.Licenses, 1)
	assert.Equal(t, winner.ID, result.Licenses[0].LicenseKeyID)
}
