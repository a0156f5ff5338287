// Command seed loads demo data into the database: one brand with two
// products and a provisioned customer license. Intended for local
// development against a migrated database.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seed
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/keyline/keyline/internal/admin"
	"github.com/keyline/keyline/internal/license"
	"github.com/keyline/keyline/internal/logging"
)

func main() {
	logger := logging.New("info", "text")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Error("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store := license.NewPostgresStore(db)
	onboarding := admin.NewService(store, logger)
	svc := license.NewService(store, logger)

	brand, err := onboarding.CreateBrand(ctx, "Rank Math")
	if err != nil {
		logger.Error("failed to create brand", "error", err)
		os.Exit(1)
	}

	products := []struct{ name, slug string }{
		{"Rank Math SEO", "rankmath"},
		{"Content AI", "content-ai"},
	}
	for _, p := range products {
		if _, err := onboarding.CreateProduct(ctx, brand.Brand.ID, p.name, p.slug); err != nil {
			logger.Error("failed to create product", "slug", p.slug, "error", err)
			os.Exit(1)
		}
	}

	maxSeats := 5
	result, err := svc.Provision(ctx, brand.Brand, "demo@example.com", []license.ProductRequest{
		{Slug: "rankmath", MaxSeats: &maxSeats},
		{Slug: "content-ai", ExpirationDate: "2030-01-01"},
	})
	if err != nil {
		logger.Error("failed to provision demo license", "error", err)
		os.Exit(1)
	}

	fmt.Println("Demo data created:")
	fmt.Printf("  Brand:        %s (%s)\n", brand.Brand.Name, brand.Brand.ID)
	fmt.Printf("  Brand API key: %s\n", brand.APIKey)
	fmt.Printf("  License key:   %s (demo@example.com)\n", result.Key.Key)
	for _, lic := range result.Licenses {
		fmt.Printf("  License:       %s product=%s status=%s\n", lic.ID, lic.ProductID, lic.Status)
	}
}
