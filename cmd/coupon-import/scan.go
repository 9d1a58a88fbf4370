package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/swag-store/internal/domain/coupon"
)

const (
	bloomFPR    = 0.001
	maxLineSize = 64 << 10
)

// fileScan holds the valid coupons of one file, in line order, and a filter
// over their codes.
type fileScan struct {
	Path     string
	Coupons  []coupon.Coupon
	Codes    map[string]struct{}
	Filter   *bloom.BloomFilter
	Rejected int
}

// scanFiles parses every file concurrently. Results keep argument order.
func scanFiles(ctx context.Context, lg *zap.Logger, files []string, expected uint) ([]*fileScan, error) {
	scans := make([]*fileScan, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer func() { _ = f.Close() }()

			s, err := scanFile(ctx, lg.With(zap.String("file", path)), path, f, expected)
			if err != nil {
				return err
			}
			scans[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scans, nil
}

// scanFile reads gzip-compressed JSON lines from r. Malformed or invalid
// coupons are logged and counted, not fatal. Within a file the first
// definition of a code wins.
func scanFile(ctx context.Context, lg *zap.Logger, path string, r io.Reader, expected uint) (*fileScan, error) {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	s := &fileScan{
		Path:   path,
		Codes:  make(map[string]struct{}),
		Filter: bloom.NewWithEstimates(max(expected, 1), bloomFPR),
	}

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		c, err := decodeCoupon(raw)
		if err == nil {
			err = coupon.Validate(c)
		}
		if err != nil {
			s.Rejected++
			lg.Warn("Skipping coupon", zap.Int("line", line), zap.Error(err))
			continue
		}
		if _, dup := s.Codes[c.Code]; dup {
			s.Rejected++
			lg.Warn("Skipping repeated coupon", zap.Int("line", line), zap.String("code", c.Code))
			continue
		}
		s.Codes[c.Code] = struct{}{}
		s.Filter.AddString(c.Code)
		s.Coupons = append(s.Coupons, *c)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}

	lg.Info("File scanned", zap.Int("lines", line), zap.Int("coupons", len(s.Coupons)), zap.Int("rejected", s.Rejected))
	return s, nil
}

// decodeCoupon parses one JSON line. Imported coupons are active unless the
// line says otherwise.
func decodeCoupon(raw []byte) (*coupon.Coupon, error) {
	c := &coupon.Coupon{Active: true}
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "discount_type":
			var v string
			v, err = d.Str()
			c.DiscountType = coupon.DiscountType(v)
		case "discount_value":
			c.DiscountValue, err = decodeDecimal(d)
		case "target_category":
			c.TargetCategory, err = d.Str()
		case "min_order_value":
			c.MinOrderValue, err = decodeDecimal(d)
		case "expiration_date", "expires_at":
			var v string
			if v, err = d.Str(); err == nil {
				c.ExpiresAt, err = parseDate(v)
			}
		case "usage_limit":
			c.UsageLimit, err = d.Int()
		case "limit_per_user":
			c.LimitPerUser, err = d.Int()
		case "first_time_only":
			c.FirstTimeOnly, err = d.Bool()
		case "is_active":
			c.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	return c, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func parseDate(s string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.Errorf("invalid date %q", s)
}
