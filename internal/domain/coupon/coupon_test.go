package coupon

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

func TestIsValidAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	base := Coupon{IsActive: true, MaxUses: 5, UsedCount: 4, StartsAt: start, EndsAt: end}

	tests := []struct {
		name   string
		mutate func(c *Coupon)
		at     time.Time
		want   bool
	}{
		{"inside window", func(c *Coupon) {}, start.Add(48 * time.Hour), true},
		{"at start", func(c *Coupon) {}, start, true},
		{"at end", func(c *Coupon) {}, end, true},
		{"before window", func(c *Coupon) {}, start.Add(-time.Second), false},
		{"after window", func(c *Coupon) {}, end.Add(time.Second), false},
		{"over cap", func(c *Coupon) { c.UsedCount = 5 }, start.Add(time.Hour), false},
		{"inactive", func(c *Coupon) { c.IsActive = false }, start.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Equal(t, tt.want, c.IsValidAt(tt.at))
		})
	}
}

func TestDiscount(t *testing.T) {
	pct := Coupon{DiscountType: DiscountPercentage, Value: 25}
	assert.Equal(t, int64(2500), pct.Discount(10000))
	assert.Equal(t, int64(0), pct.Discount(0))

	fixed := Coupon{DiscountType: DiscountFixed, Value: 5000}
	assert.Equal(t, int64(5000), fixed.Discount(10000))
	assert.Equal(t, int64(3000), fixed.Discount(3000), "never exceeds subtotal")

	over := Coupon{DiscountType: DiscountPercentage, Value: 150}
	assert.Equal(t, int64(10000), over.Discount(10000))
}

func TestRemainingUses(t *testing.T) {
	assert.Equal(t, 2, (&Coupon{MaxUses: 3, UsedCount: 1}).RemainingUses())
	assert.Equal(t, 0, (&Coupon{MaxUses: 1, UsedCount: 4}).RemainingUses())
}

func TestBeforeSaveUppercasesCode(t *testing.T) {
	c := &Coupon{Code: "  verano10 "}
	require.NoError(t, c.BeforeSave(nil))
	assert.Equal(t, "VERANO10", c.Code)
}

func TestRedeem_ConditionalIncrement(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count \+ 1 WHERE code = \$1 AND is_active = \$2 AND used_count < max_uses AND starts_at <= \$3 AND ends_at >= \$4`).
		WithArgs("VERANO10", true, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "coupons" WHERE code = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "discount_type", "value", "max_uses", "used_count"}).
			AddRow(1, "VERANO10", "percentage", 10, 5, 3))

	c, err := Redeem(db, "verano10", now)
	require.NoError(t, err)
	assert.Equal(t, 3, c.UsedCount)
	assert.Equal(t, int64(1000), c.Discount(10000))
}

func TestRedeem_ExhaustedCoupon(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := Redeem(db, "AGOTADO", time.Now())
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestRelease_DecrementsUsedCount(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count - 1 WHERE code = \$1 AND used_count > 0`).
		WithArgs("VERANO10").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, Release(db, " verano10 "))
}

func TestValidate_UnknownCodeIsInvalid(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())

	mock.ExpectQuery(`SELECT \* FROM "coupons" WHERE code = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Validate(&ValidateRequest{Code: "nope"}, 10000)
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestValidate_Preview(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM "coupons" WHERE code = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "discount_type", "value", "max_uses", "used_count", "starts_at", "ends_at", "is_active"}).
			AddRow(1, "FIJO50", "fixed", 5000, 10, 0, now.Add(-time.Hour), now.Add(time.Hour), true))

	p, err := svc.Validate(&ValidateRequest{Code: "fijo50"}, 12000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), p.Discount)
	assert.Equal(t, int64(12000), p.Subtotal)
}

func TestCreate_RejectsBadWindow(t *testing.T) {
	db, _ := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())
	now := time.Now()

	_, err := svc.Create(&CreateRequest{
		Code:         "MAL",
		DiscountType: DiscountFixed,
		Value:        100,
		StartsAt:     now,
		EndsAt:       now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
