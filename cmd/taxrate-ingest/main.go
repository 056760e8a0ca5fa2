// Command taxrate-ingest bulk-loads jurisdiction tax rates from gzipped CSV
// exports. Each input file holds rows of the form:
//
//	name,country,province_state,rate,active
//
// where province_state may be empty for country-wide rates and rate is a
// decimal fraction (0.05 for 5%). Files are processed concurrently and every
// row is upserted, so re-running an ingest is safe.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/storekit/storefront/internal/domain/tax"
	"github.com/storekit/storefront/internal/repository"
)

const maxConcurrentFiles = 4

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		slog.Error("at least one .csv.gz input file is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Args()); err != nil {
		slog.Error("ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, files []string) error {
	db, err := repository.NewDB(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	taxRepo := repository.NewTaxRateRepository(db)

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)

	for _, file := range files {
		g.Go(func() error {
			n, err := ingestFile(gctx, taxRepo, file)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", filepath.Base(file))
			}
			total.Add(n)
			slog.Info("ingested file", slog.String("file", filepath.Base(file)), slog.Int64("rows", n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest completed", slog.Int64("rows", total.Load()))
	return nil
}

func ingestFile(ctx context.Context, repo *repository.TaxRateRepository, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.FieldsPerRecord = 5

	var rows int64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, errors.Wrap(err, "read csv record")
		}

		rate, err := parseRate(record)
		if err != nil {
			return rows, err
		}
		if err := repo.Upsert(ctx, rate); err != nil {
			return rows, err
		}
		rows++
	}
}

func parseRate(record []string) (tax.Rate, error) {
	name, country, province := record[0], record[1], record[2]
	if name == "" || country == "" {
		return tax.Rate{}, errors.Errorf("invalid rate row %q: name and country are required", record)
	}

	fraction, err := decimal.NewFromString(record[3])
	if err != nil {
		return tax.Rate{}, errors.Wrapf(err, "invalid rate value %q", record[3])
	}
	if fraction.IsNegative() {
		return tax.Rate{}, errors.Errorf("invalid rate value %q: must not be negative", record[3])
	}

	active, err := strconv.ParseBool(record[4])
	if err != nil {
		return tax.Rate{}, errors.Wrapf(err, "invalid active flag %q", record[4])
	}

	// Deterministic id per jurisdiction+name keeps repeated ingests idempotent.
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("taxrate:"+country+":"+province+":"+name)).String()

	return tax.Rate{
		ID:            id,
		Name:          name,
		Country:       country,
		ProvinceState: province,
		Rate:          fraction,
		Active:        active,
	}, nil
}
