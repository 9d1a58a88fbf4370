package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/domain/coupon"
)

func gzipLines(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	_, err := w.Write([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf
}

func scan(t *testing.T, path string, lines ...string) *fileScan {
	t.Helper()
	s, err := scanFile(context.Background(), zap.NewNop(), path, gzipLines(t, lines...), 100)
	require.NoError(t, err)
	return s
}

func TestDecodeCoupon(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    coupon.Coupon
		wantErr bool
	}{
		{
			name: "full",
			line: `{"code":"spring","discount_type":"percentage","discount_value":"12.5","target_category":"Clothing",` +
				`"min_order_value":40,"expiration_date":"2026-04-01","usage_limit":10,"limit_per_user":1,"first_time_only":true}`,
			want: coupon.Coupon{
				Code: "spring", DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.RequireFromString("12.5"),
				TargetCategory: "Clothing", MinOrderValue: decimal.NewFromInt(40),
				UsageLimit: 10, LimitPerUser: 1, FirstTimeOnly: true, Active: true,
			},
		},
		{
			name: "nulls and unknown fields",
			line: `{"code":"FIVE","discount_type":"fixed","discount_value":5,"target_category":null,"extra":[1,2]}`,
			want: coupon.Coupon{Code: "FIVE", DiscountType: coupon.DiscountFixed, DiscountValue: decimal.NewFromInt(5), Active: true},
		},
		{name: "bad date", line: `{"code":"X","expires_at":"soon"}`, wantErr: true},
		{name: "not an object", line: `["X"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCoupon([]byte(tt.line))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.DiscountType, got.DiscountType)
			assert.True(t, tt.want.DiscountValue.Equal(got.DiscountValue))
			assert.True(t, tt.want.MinOrderValue.Equal(got.MinOrderValue))
			assert.Equal(t, tt.want.TargetCategory, got.TargetCategory)
			assert.Equal(t, tt.want.UsageLimit, got.UsageLimit)
			assert.Equal(t, tt.want.LimitPerUser, got.LimitPerUser)
			assert.Equal(t, tt.want.FirstTimeOnly, got.FirstTimeOnly)
			assert.Equal(t, tt.want.Active, got.Active)
		})
	}
}

func TestScanFile(t *testing.T) {
	s := scan(t, "a.jsonl.gz",
		`{"code":"one","discount_type":"fixed","discount_value":5}`,
		``,
		`{"code":"ONE","discount_type":"fixed","discount_value":7}`,
		`{"code":"TWO","discount_type":"percentage","discount_value":150}`,
		`not json`,
		`{"code":"THREE","discount_type":"percentage","discount_value":15,"is_active":false}`,
	)

	require.Len(t, s.Coupons, 2)
	assert.Equal(t, "ONE", s.Coupons[0].Code)
	assert.True(t, decimal.NewFromInt(5).Equal(s.Coupons[0].DiscountValue))
	assert.Equal(t, "THREE", s.Coupons[1].Code)
	assert.False(t, s.Coupons[1].Active)
	assert.Equal(t, 3, s.Rejected)
	assert.True(t, s.Filter.TestString("ONE"))
}

func TestScanFile_NotGzip(t *testing.T) {
	_, err := scanFile(context.Background(), zap.NewNop(), "plain", strings.NewReader("{}"), 10)
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	first := scan(t, "first",
		`{"code":"SHARED","discount_type":"fixed","discount_value":1}`,
		`{"code":"ALPHA","discount_type":"fixed","discount_value":2}`,
	)
	second := scan(t, "second",
		`{"code":"shared","discount_type":"fixed","discount_value":9}`,
		`{"code":"BETA","discount_type":"fixed","discount_value":3}`,
		`{"code":"X","discount_type":"fixed","discount_value":3}`,
	)

	res := merge([]*fileScan{first, second})

	codes := make([]string, 0, len(res.Coupons))
	for _, c := range res.Coupons {
		codes = append(codes, c.Code)
	}
	assert.Equal(t, []string{"SHARED", "ALPHA", "BETA"}, codes)
	assert.True(t, decimal.NewFromInt(1).Equal(res.Coupons[0].DiscountValue))
	assert.Equal(t, []Conflict{{Code: "SHARED", Kept: "first", Dropped: "second"}}, res.Conflicts)
	assert.Equal(t, 1, res.Rejected)
}

type recordingRepo struct {
	codes []string
	err   error
}

func (r *recordingRepo) Upsert(_ context.Context, c *coupon.Coupon) error {
	if r.err != nil {
		return r.err
	}
	r.codes = append(r.codes, c.Code)
	return nil
}

func TestWrite(t *testing.T) {
	coupons := []coupon.Coupon{{Code: "A"}, {Code: "B"}}

	repo := &recordingRepo{}
	require.NoError(t, write(context.Background(), zap.NewNop(), repo, coupons))
	assert.Equal(t, []string{"A", "B"}, repo.codes)

	failing := &recordingRepo{err: errors.New("boom")}
	err := write(context.Background(), zap.NewNop(), failing, coupons)
	require.ErrorContains(t, err, "upsert coupon A")
}
