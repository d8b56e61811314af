// Package cart holds the in-progress sale: line items with their batch
// allocations, the customer, the discount or coupon, payment and notes.
//
// Stock checks use the last product stock the cart was told about, captured
// at add time and refreshed from catalog fetches. They guide the operator
// only; the backend decides at invoice creation.
package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/posmart/internal/model"
	"github.com/iurnickita/posmart/internal/pricing"
)

var (
	ErrEmptyAllocation    = errors.New("quantity must be greater than zero")
	ErrStockExceeded      = errors.New("quantity exceeds available stock")
	ErrLineNotFound       = errors.New("product is not in the cart")
	ErrCouponApplied      = errors.New("remove the applied coupon before setting a manual discount")
	ErrInvalidDiscount    = errors.New("invalid discount")
	ErrInvalidPayment     = errors.New("invalid payment method")
	ErrCouponDiscountType = errors.New("coupon discount cannot be set manually")
)

type Cart struct {
	lines    []model.LineItem
	customer model.Customer
	discount model.Discount
	coupon   *model.AppliedCoupon
	payment  model.Payment
	notes    string
}

func New() *Cart {
	c := &Cart{}
	c.Clear()
	return c
}

func (c *Cart) index(productID string) int {
	for i, line := range c.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddOrMerge adds a product drawn from the given batches. A repeat add of
// the same product sums quantities per batch, appends new batches and
// overwrites the unit price. The cart is left untouched when the resulting
// quantity exceeds the product's stock.
func (c *Cart) AddOrMerge(product model.Product, allocations []model.Allocation, unitPrice decimal.Decimal) error {
	var qty int
	for _, a := range allocations {
		if a.Quantity <= 0 {
			return ErrEmptyAllocation
		}
		qty += a.Quantity
	}
	if qty <= 0 {
		return ErrEmptyAllocation
	}

	i := c.index(product.ID)
	if i < 0 {
		if qty > product.CurrentStock {
			return ErrStockExceeded
		}
		c.lines = append(c.lines, model.LineItem{
			ProductID:    product.ID,
			Name:         product.Name,
			SKU:          product.SKU,
			Image:        product.Image,
			UnitPrice:    unitPrice,
			Quantity:     qty,
			CurrentStock: product.CurrentStock,
			Allocations:  mergeAllocations(nil, allocations),
		})
		return nil
	}

	line := c.lines[i]
	if line.Quantity+qty > product.CurrentStock {
		return ErrStockExceeded
	}
	line.Quantity += qty
	line.UnitPrice = unitPrice
	line.CurrentStock = product.CurrentStock
	line.Allocations = mergeAllocations(line.Allocations, allocations)
	c.lines[i] = line
	return nil
}

func mergeAllocations(existing, added []model.Allocation) []model.Allocation {
	merged := make([]model.Allocation, len(existing), len(existing)+len(added))
	copy(merged, existing)
	for _, a := range added {
		found := false
		for i := range merged {
			if merged[i].BatchID == a.BatchID {
				merged[i].Quantity += a.Quantity
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, a)
		}
	}
	return merged
}

// UpdateQuantity sets the line quantity directly. Allocations are not
// rescaled, so the line can drift from the sum of its allocations.
func (c *Cart) UpdateQuantity(productID string, qty int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if qty <= 0 {
		return c.RemoveLine(productID)
	}
	if qty > c.lines[i].CurrentStock {
		return ErrStockExceeded
	}
	c.lines[i].Quantity = qty
	return nil
}

// RefreshStock updates the known stock of the product's line, if any. A
// quantity already above the new stock is kept until the next edit.
func (c *Cart) RefreshStock(product model.Product) {
	if i := c.index(product.ID); i >= 0 {
		c.lines[i].CurrentStock = product.CurrentStock
	}
}

func (c *Cart) RemoveLine(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
	return nil
}

// Clear resets the whole sale at once.
func (c *Cart) Clear() {
	c.lines = nil
	c.customer = model.Customer{}
	c.discount = model.NoDiscount()
	c.coupon = nil
	c.payment = model.Payment{Method: model.PaymentCash}
	c.notes = ""
}

func (c *Cart) Lines() []model.LineItem {
	out := make([]model.LineItem, len(c.lines))
	for i, line := range c.lines {
		line.Allocations = append([]model.Allocation(nil), line.Allocations...)
		out[i] = line
	}
	return out
}

func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Customer() model.Customer {
	return c.customer
}

func (c *Cart) SetCustomer(customer model.Customer) {
	c.customer = model.Customer{
		Name:    strings.TrimSpace(customer.Name),
		Email:   strings.TrimSpace(customer.Email),
		Phone:   strings.TrimSpace(customer.Phone),
		Address: strings.TrimSpace(customer.Address),
	}
}

func (c *Cart) Notes() string {
	return c.notes
}

func (c *Cart) SetNotes(notes string) {
	c.notes = notes
}

func (c *Cart) Payment() model.Payment {
	return c.payment
}

func (c *Cart) SetPayment(payment model.Payment) error {
	if !payment.Method.Valid() {
		return ErrInvalidPayment
	}
	if payment.Method != model.PaymentCard {
		payment.CardNumber = ""
	}
	c.payment = payment
	return nil
}

func (c *Cart) Discount() model.Discount {
	return c.discount
}

// SetDiscount sets a manual discount. It is refused while a coupon is
// applied.
func (c *Cart) SetDiscount(discount model.Discount) error {
	if c.coupon != nil {
		return ErrCouponApplied
	}
	if discount.Source == model.DiscountCoupon {
		return ErrCouponDiscountType
	}
	if discount.Value.IsNegative() {
		return ErrInvalidDiscount
	}
	switch discount.Type {
	case model.DiscountPercentage:
		if discount.Value.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidDiscount
		}
	case model.DiscountFixed:
	default:
		return ErrInvalidDiscount
	}
	discount.Source = model.DiscountManual
	c.discount = discount
	return nil
}

func (c *Cart) Coupon() *model.AppliedCoupon {
	if c.coupon == nil {
		return nil
	}
	coupon := *c.coupon
	return &coupon
}

// ApplyCoupon replaces any manual discount with a fixed discount equal to
// the coupon amount.
func (c *Cart) ApplyCoupon(coupon model.AppliedCoupon) {
	c.coupon = &coupon
	c.discount = model.Discount{
		Type:   model.DiscountFixed,
		Value:  coupon.DiscountAmount,
		Source: model.DiscountCoupon,
	}
}

func (c *Cart) RemoveCoupon() {
	c.coupon = nil
	c.discount = model.NoDiscount()
}

func (c *Cart) Summary() pricing.Summary {
	return pricing.Summarize(c.lines, c.discount)
}

func (c *Cart) Subtotal() decimal.Decimal {
	return pricing.Subtotal(c.lines)
}

// State captures what a saved cart keeps.
func (c *Cart) State() model.CartState {
	return model.CartState{
		Lines:    c.Lines(),
		Customer: c.customer,
		Discount: c.discount,
		Notes:    c.notes,
	}
}

// Restore replaces the live cart with a saved state. Saved carts do not
// carry the coupon itself, so a coupon-derived discount comes back as a
// manual fixed discount of the same value.
func (c *Cart) Restore(state model.CartState) {
	c.Clear()
	for _, line := range state.Lines {
		line.Allocations = append([]model.Allocation(nil), line.Allocations...)
		c.lines = append(c.lines, line)
	}
	c.customer = state.Customer
	c.discount = state.Discount
	if c.discount.Type == "" {
		c.discount = model.NoDiscount()
	}
	c.discount.Source = model.DiscountManual
	c.notes = state.Notes
}
