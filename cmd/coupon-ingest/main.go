// Command coupon-ingest bulk-loads promo codes for a seller from gzipped
// code-list files (one code per line) and creates an active coupon for
// each distinct code.
//
// Files are scanned in parallel. A bloom filter dedupes codes across
// files before they hit the database; its false positives drop a tiny
// fraction of codes, which is acceptable for generated promo batches.
// The unique (seller_id, code) index catches anything the filter misses.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tokolink/internal/repository"
)

const (
	minCodeLength = 8
	maxCodeLength = 10

	batchSize = 500

	// Sized for the largest expected campaign drop.
	bloomCapacity = 10_000_000
	bloomFPRate   = 0.001
)

const insertCouponSQL = `INSERT INTO coupons (id, seller_id, code, discount_type, discount_value,
	usage_limit, status, starts_at, ends_at)
	VALUES ($1, $2, $3, 'percentage', $4, $5, 'active', $6, $7)
	ON CONFLICT (seller_id, code) DO NOTHING`

type options struct {
	databaseURL string
	sellerID    string
	discount    decimal.Decimal
	usageLimit  int
	validDays   int
	files       []string
}

func main() {
	var (
		opts     options
		discount string
	)

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.sellerID, "seller", "", "seller id to attach the codes to")
	flag.StringVar(&discount, "discount", "10", "percentage discount per code")
	flag.IntVar(&opts.usageLimit, "usage-limit", 1, "redemptions allowed per code (0 = unlimited)")
	flag.IntVar(&opts.validDays, "valid-days", 30, "days until the codes expire")
	flag.Parse()

	opts.files = flag.Args()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" || opts.sellerID == "" || len(opts.files) == 0 {
		slog.Error("usage: coupon-ingest --seller <id> [flags] codes1.gz [codes2.gz ...]")
		os.Exit(1)
	}

	var err error
	opts.discount, err = decimal.NewFromString(discount)
	if err != nil {
		slog.Error("invalid discount", slog.String("value", discount))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	inserted, err := run(ctx, opts)
	if err != nil {
		slog.Error("ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("ingest completed",
		slog.Int64("inserted", inserted),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func run(ctx context.Context, opts options) (int64, error) {
	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	codes := make(chan string, batchSize)

	g, ctx := errgroup.WithContext(ctx)

	// One scanner goroutine per file, feeding the shared channel.
	scanners, scanCtx := errgroup.WithContext(ctx)
	for _, path := range opts.files {
		scanners.Go(func() error {
			return scanGzFile(scanCtx, path, codes)
		})
	}
	g.Go(func() error {
		defer close(codes)
		return scanners.Wait()
	})

	var inserted int64
	g.Go(func() error {
		n, err := writeCoupons(ctx, pool, opts, codes)
		inserted = n
		return err
	})

	if err := g.Wait(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// scanGzFile streams one gzipped code list line by line into out,
// skipping codes outside the accepted length range.
func scanGzFile(ctx context.Context, path string, out chan<- string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader %s", path)
	}
	defer gz.Close()

	var lines, skipped int64
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines++
		code := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if len(code) < minCodeLength || len(code) > maxCodeLength {
			skipped++
			continue
		}
		select {
		case out <- code:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("scanned file",
		slog.String("path", path),
		slog.Int64("lines", lines),
		slog.Int64("skipped", skipped),
	)
	return nil
}

// writeCoupons dedupes incoming codes and inserts them in batches.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, opts options, codes <-chan string) (int64, error) {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPRate)

	startsAt := time.Now().UTC()
	endsAt := startsAt.AddDate(0, 0, opts.validDays)

	var usageLimit *int
	if opts.usageLimit > 0 {
		usageLimit = &opts.usageLimit
	}

	var (
		inserted int64
		batch    = &pgx.Batch{}
	)
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		res := pool.SendBatch(ctx, batch)
		for range batch.Len() {
			tag, err := res.Exec()
			if err != nil {
				_ = res.Close()
				return errors.Wrap(err, "insert coupon batch")
			}
			inserted += tag.RowsAffected()
		}
		if err := res.Close(); err != nil {
			return errors.Wrap(err, "close batch")
		}
		batch = &pgx.Batch{}

		if inserted%100_000 < batchSize {
			slog.Info("progress", slog.Int64("inserted", inserted))
		}
		return nil
	}

	for code := range codes {
		if seen.TestAndAddString(code) {
			continue
		}
		batch.Queue(insertCouponSQL,
			uuid.New().String(), opts.sellerID, code,
			opts.discount, usageLimit, startsAt, endsAt,
		)
		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, err
	}
	return inserted, nil
}
