package license

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store *MemoryStore
	svc   *Service
	brand *Brand
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		store: store,
		svc:   NewService(store, logger, opts...),
		brand: createBrand(t, store, "Rank Math"),
	}
}

func createBrand(t *testing.T, store Store, name string) *Brand {
	t.Helper()
	now := time.Now().UTC()
	b := &Brand{
		ID:         uuid.NewString(),
		Name:       name,
		APIKeyHash: "hash-" + name,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateBrand(context.Background(), b))
	return b
}

func (e *testEnv) addProduct(t *testing.T, name, slug string) *Product {
	t.Helper()
	return e.addProductForBrand(t, e.brand, name, slug)
}

func (e *testEnv) addProductForBrand(t *testing.T, brand *Brand, name, slug string) *Product {
	t.Helper()
	now := time.Now().UTC()
	p := &Product{
		ID:        uuid.NewString(),
		BrandID:   brand.ID,
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) provision(t *testing.T, email string, products ...ProductRequest) *ProvisionResult {
	t.Helper()
	result, err := e.svc.Provision(context.Background(), e.brand, email, products)
	require.NoError(t, err)
	return result
}

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		input string
		want  string // RFC3339, "" for nil
	}{
		{"", ""},
		{"   ", ""},
		{"2025-12-31T23:59:59Z", "2025-12-31T23:59:59Z"},
		{"2025-12-31T21:59:59+02:00", "2025-12-31T19:59:59Z"},
		{"2025-12-31T23:59:59", "2025-12-31T23:59:59Z"}, // naive, treated as UTC
		{"2025-12-31", "2025-12-31T00:00:00Z"},
	}

	for _, tc := range tests {
		got, err := parseExpiration(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		if tc.want == "" {
			assert.Nil(t, got, "input %q", tc.input)
		} else {
			require.NotNil(t, got, "input %q", tc.input)
			assert.Equal(t, tc.want, got.Format(time.RFC3339), "input %q", tc.input)
		}
	}
}

func TestParseExpiration_Invalid(t *testing.T) {
	for _, input := range []string{"not-a-date", "31/12/2025", "2025-13-01"} {
		_, err := parseExpiration(input)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "input %q", input)
	}
}

func TestLicenseIsValid(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		lic  License
		want bool
	}{
		{"valid no expiration", License{Status: StatusValid}, true},
		{"valid future expiration", License{Status: StatusValid, ExpirationDate: &future}, true},
		{"valid past expiration", License{Status: StatusValid, ExpirationDate: &past}, false},
		{"suspended", License{Status: StatusSuspended}, false},
		{"cancelled", License{Status: StatusCancelled}, false},
		{"suspended future expiration", License{Status: StatusSuspended, ExpirationDate: &future}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.lic.IsValid(now))
		})
	}
}
