// Command seed-db loads a demo catalog, Canadian tax rates, and a demo user
// into the database. Safe to re-run: all writes are upserts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekit/storefront/internal/domain/auth"
	"github.com/storekit/storefront/internal/domain/catalog"
	"github.com/storekit/storefront/internal/domain/tax"
	"github.com/storekit/storefront/internal/domain/user"
	"github.com/storekit/storefront/internal/repository"
)

type variantJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
}

type itemJSON struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Variants    []variantJSON `json:"variants"`
}

// Canadian GST plus the provincial sales taxes relevant to the demo data.
var seedTaxRates = []tax.Rate{
	{Name: "GST", Country: "CA", Rate: decimal.RequireFromString("0.05"), Active: true},
	{Name: "PST (ON)", Country: "CA", ProvinceState: "ON", Rate: decimal.RequireFromString("0.08"), Active: true},
	{Name: "PST (BC)", Country: "CA", ProvinceState: "BC", Rate: decimal.RequireFromString("0.07"), Active: true},
	{Name: "QST", Country: "CA", ProvinceState: "QC", Rate: decimal.RequireFromString("0.09975"), Active: true},
}

func main() {
	var (
		databaseURL string
		itemsFile   string
		demoEmail   string
		demoPass    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&itemsFile, "items-file", "db/seed/items.json", "path to catalog items JSON file")
	flag.StringVar(&demoEmail, "demo-email", "demo@storefront.local", "email of the seeded demo user")
	flag.StringVar(&demoPass, "demo-password", "", "password of the seeded demo user (or STORE_SEED_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if demoPass == "" {
		demoPass = os.Getenv("STORE_SEED_PASSWORD")
	}
	if demoPass == "" {
		slog.Error("demo password is required: set --demo-password or STORE_SEED_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, itemsFile, demoEmail, demoPass); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, itemsFile, demoEmail, demoPass string) error {
	slog.Info("connecting to database")

	db, err := repository.NewDB(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Catalog items.
	raw, err := os.ReadFile(itemsFile)
	if err != nil {
		return errors.Wrap(err, "read items file")
	}
	var items []itemJSON
	if err := json.Unmarshal(raw, &items); err != nil {
		return errors.Wrap(err, "parse items file")
	}

	catalogRepo := repository.NewCatalogRepository(db)
	for _, it := range items {
		variants := make([]catalog.Variant, len(it.Variants))
		for i, v := range it.Variants {
			variants[i] = catalog.Variant{
				ID:            v.ID,
				Name:          v.Name,
				Price:         v.Price,
				StockQuantity: v.StockQuantity,
			}
		}
		item := catalog.Item{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Variants:    variants,
		}
		if err := catalogRepo.UpsertItem(ctx, item); err != nil {
			return err
		}
	}
	slog.Info("seeded catalog", slog.Int("items", len(items)))

	// Tax rates. Deterministic ids keep re-runs idempotent.
	taxRepo := repository.NewTaxRateRepository(db)
	for _, rate := range seedTaxRates {
		rate.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("taxrate:"+rate.Name)).String()
		if err := taxRepo.Upsert(ctx, rate); err != nil {
			return err
		}
	}
	slog.Info("seeded tax rates", slog.Int("rates", len(seedTaxRates)))

	// Demo user.
	hash, err := auth.NewBcryptHasher().Hash(demoPass)
	if err != nil {
		return errors.Wrap(err, "hash demo password")
	}
	userRepo := repository.NewUserRepository(db)
	demo := &user.User{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte("user:"+demoEmail)).String(),
		Email:          demoEmail,
		PasswordHash:   hash,
		EmailValidated: true,
	}
	if err := userRepo.Add(ctx, demo); err != nil {
		return err
	}
	slog.Info("seeded demo user", slog.String("email", demoEmail))

	return nil
}
