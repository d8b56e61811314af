package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/posmart/internal/backend"
	"github.com/iurnickita/posmart/internal/cart"
	"github.com/iurnickita/posmart/internal/model"
)

var (
	ErrCodeRequired  = errors.New("coupon code is required")
	ErrInvalidCoupon = errors.New("invalid coupon")
	ErrEmptyCart     = errors.New("add items before applying a coupon")
)

// Backend is the part of the REST client the resolver needs.
type Backend interface {
	ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (backend.CouponValidation, error)
	UseCoupon(ctx context.Context, couponID string) error
}

type Resolver struct {
	backend Backend
	zaplog  *zap.Logger
}

func NewResolver(backend Backend, zaplog *zap.Logger) *Resolver {
	return &Resolver{backend: backend, zaplog: zaplog}
}

// Apply validates code against the current subtotal. The cart is only
// touched when the backend accepts the coupon.
func (r *Resolver) Apply(ctx context.Context, c *cart.Cart, code string) (model.AppliedCoupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.AppliedCoupon{}, ErrCodeRequired
	}
	if c.Empty() {
		return model.AppliedCoupon{}, ErrEmptyCart
	}

	answer, err := r.backend.ValidateCoupon(ctx, code, c.Subtotal())
	if err != nil {
		return model.AppliedCoupon{}, err
	}
	if !answer.Valid {
		if answer.Message != "" {
			return model.AppliedCoupon{}, fmt.Errorf("%w: %s", ErrInvalidCoupon, answer.Message)
		}
		return model.AppliedCoupon{}, ErrInvalidCoupon
	}

	coupon := answer.Coupon
	if coupon.Code == "" {
		coupon.Code = code
	}
	c.ApplyCoupon(coupon)
	return coupon, nil
}

func (r *Resolver) Remove(c *cart.Cart) {
	c.RemoveCoupon()
}

// RegisterUsage records a coupon redemption after a sale. Failures are
// logged and swallowed: the sale stands either way.
func (r *Resolver) RegisterUsage(ctx context.Context, coupon model.AppliedCoupon) {
	if coupon.ID == "" {
		return
	}
	if err := r.backend.UseCoupon(ctx, coupon.ID); err != nil {
		r.zaplog.Warn("coupon usage registration failed",
			zap.String("coupon", coupon.Code),
			zap.String("id", coupon.ID),
			zap.Error(err),
		)
	}
}
