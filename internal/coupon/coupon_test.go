package coupon

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iurnickita/posmart/internal/backend"
	"github.com/iurnickita/posmart/internal/cart"
	"github.com/iurnickita/posmart/internal/model"
)

type fakeBackend struct {
	answer   backend.CouponValidation
	err      error
	useErr   error
	subtotal decimal.Decimal
	used     []string
}

func (f *fakeBackend) ValidateCoupon(_ context.Context, _ string, subtotal decimal.Decimal) (backend.CouponValidation, error) {
	f.subtotal = subtotal
	return f.answer, f.err
}

func (f *fakeBackend) UseCoupon(_ context.Context, couponID string) error {
	f.used = append(f.used, couponID)
	return f.useErr
}

func cartWithSubtotal(t *testing.T, price int64, qty int) *cart.Cart {
	c := cart.New()
	product := model.Product{ID: "A", CurrentStock: qty}
	require.NoError(t, c.AddOrMerge(product, []model.Allocation{{BatchID: "b", Quantity: qty}}, decimal.NewFromInt(price)))
	return c
}

func TestApplyOverwritesManualDiscount(t *testing.T) {
	fb := &fakeBackend{answer: backend.CouponValidation{
		Valid:  true,
		Coupon: model.AppliedCoupon{ID: "c1", Code: "SAVE10", DiscountAmount: decimal.NewFromInt(10)},
	}}
	r := NewResolver(fb, zap.NewNop())
	c := cartWithSubtotal(t, 10, 10)
	require.NoError(t, c.SetDiscount(model.Discount{Type: model.DiscountPercentage, Value: decimal.NewFromInt(50)}))

	coupon, err := r.Apply(context.Background(), c, " SAVE10 ")
	require.NoError(t, err)
	assert.Equal(t, "c1", coupon.ID)
	assert.True(t, decimal.NewFromInt(100).Equal(fb.subtotal))

	d := c.Discount()
	assert.Equal(t, model.DiscountFixed, d.Type)
	assert.True(t, decimal.NewFromInt(10).Equal(d.Value))
	assert.True(t, decimal.NewFromInt(90).Equal(c.Summary().Total))
	require.NotNil(t, c.Coupon())
}

func TestApplyFailureKeepsState(t *testing.T) {
	manual := model.Discount{Type: model.DiscountFixed, Value: decimal.NewFromInt(5)}

	tests := []struct {
		name string
		fb   *fakeBackend
		want error
	}{
		{
			name: "rejected",
			fb:   &fakeBackend{answer: backend.CouponValidation{Valid: false, Message: "Coupon has expired"}},
			want: ErrInvalidCoupon,
		},
		{
			name: "transport",
			fb:   &fakeBackend{err: errors.New("connection refused")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cartWithSubtotal(t, 10, 10)
			require.NoError(t, c.SetDiscount(manual))

			_, err := NewResolver(tt.fb, zap.NewNop()).Apply(context.Background(), c, "OLD")
			require.Error(t, err)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
			assert.Nil(t, c.Coupon())
			assert.Equal(t, model.DiscountFixed, c.Discount().Type)
			assert.True(t, decimal.NewFromInt(5).Equal(c.Discount().Value))
		})
	}
}

func TestApplyValidation(t *testing.T) {
	r := NewResolver(&fakeBackend{}, zap.NewNop())

	_, err := r.Apply(context.Background(), cartWithSubtotal(t, 1, 1), "  ")
	require.ErrorIs(t, err, ErrCodeRequired)

	_, err = r.Apply(context.Background(), cart.New(), "SAVE10")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestRemove(t *testing.T) {
	c := cartWithSubtotal(t, 10, 1)
	c.ApplyCoupon(model.AppliedCoupon{ID: "c1", Code: "SAVE10", DiscountAmount: decimal.NewFromInt(1)})

	NewResolver(&fakeBackend{}, zap.NewNop()).Remove(c)
	assert.Nil(t, c.Coupon())
	assert.Equal(t, model.NoDiscount(), c.Discount())
}

func TestRegisterUsageSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fb := &fakeBackend{useErr: errors.New("boom")}
	r := NewResolver(fb, zap.New(core))

	r.RegisterUsage(context.Background(), model.AppliedCoupon{ID: "c1", Code: "SAVE10"})
	assert.Equal(t, []string{"c1"}, fb.used)
	assert.Equal(t, 1, logs.FilterMessage("coupon usage registration failed").Len())

	r.RegisterUsage(context.Background(), model.AppliedCoupon{})
	assert.Len(t, fb.used, 1)
}
