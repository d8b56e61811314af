package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/posmart/internal/backend"
	"github.com/iurnickita/posmart/internal/cart"
	"github.com/iurnickita/posmart/internal/coupon"
	"github.com/iurnickita/posmart/internal/model"
)

type couponBackend struct {
	coupons map[string]model.AppliedCoupon
}

func (b *couponBackend) ValidateCoupon(_ context.Context, code string, _ decimal.Decimal) (backend.CouponValidation, error) {
	found, ok := b.coupons[code]
	if !ok {
		return backend.CouponValidation{Valid: false, Message: "coupon not found"}, nil
	}
	return backend.CouponValidation{Valid: true, Coupon: found}, nil
}

func (b *couponBackend) UseCoupon(context.Context, string) error {
	return nil
}

type posTestContext struct {
	products map[string]model.Product
	cart     *cart.Cart
	coupons  *couponBackend
	resolver *coupon.Resolver
	creator  *fakeCreator
	checkout *Checkout
	err      error
}

func (p *posTestContext) reset() {
	p.products = make(map[string]model.Product)
	p.cart = cart.New()
	p.coupons = &couponBackend{coupons: make(map[string]model.AppliedCoupon)}
	p.resolver = coupon.NewResolver(p.coupons, zap.NewNop())
	p.creator = &fakeCreator{}
	p.checkout = New(p.creator, p.resolver)
	p.err = nil
}

func (p *posTestContext) productPricedWithStock(id string, price, stock int) error {
	p.products[id] = model.Product{ID: id, Name: "Product " + id, SellingPrice: decimal.NewFromInt(int64(price)), CurrentStock: stock}
	return nil
}

func (p *posTestContext) add(qty int, id, batch string) error {
	product, ok := p.products[id]
	if !ok {
		return fmt.Errorf("unknown product %q", id)
	}
	return p.cart.AddOrMerge(product, []model.Allocation{{BatchID: batch, Quantity: qty}}, product.SellingPrice)
}

func (p *posTestContext) theCartHolds(qty int, id, batch string) error {
	return p.add(qty, id, batch)
}

func (p *posTestContext) theOperatorAdds(qty int, id, batch string) error {
	p.err = p.add(qty, id, batch)
	return nil
}

func (p *posTestContext) aManualPercentageDiscount(value int) error {
	return p.cart.SetDiscount(model.Discount{Type: model.DiscountPercentage, Value: decimal.NewFromInt(int64(value))})
}

func (p *posTestContext) theBackendAcceptsCoupon(code string, amount int) error {
	p.coupons.coupons[code] = model.AppliedCoupon{ID: "id-" + code, Code: code, DiscountAmount: decimal.NewFromInt(int64(amount))}
	return nil
}

func (p *posTestContext) theOperatorAppliesCoupon(code string) error {
	_, p.err = p.resolver.Apply(context.Background(), p.cart, code)
	return nil
}

func (p *posTestContext) theOperatorRemovesTheCoupon() error {
	p.resolver.Remove(p.cart)
	return nil
}

func (p *posTestContext) theOperatorSetsTheQuantity(id string, qty int) error {
	p.err = p.cart.UpdateQuantity(id, qty)
	return nil
}

func (p *posTestContext) theCustomerIs(name, email string) error {
	p.cart.SetCustomer(model.Customer{Name: name, Email: email})
	return nil
}

func (p *posTestContext) theOperatorSubmitsTheCheckout() error {
	if err := p.checkout.Open(p.cart); err != nil {
		return err
	}
	_, p.err = p.checkout.Submit(context.Background(), p.cart, &sync.Mutex{})
	return nil
}

func (p *posTestContext) line(id string) (model.LineItem, error) {
	for _, line := range p.cart.Lines() {
		if line.ProductID == id {
			return line, nil
		}
	}
	return model.LineItem{}, fmt.Errorf("no line for %q", id)
}

func (p *posTestContext) lineHasQuantity(id string, qty int) error {
	line, err := p.line(id)
	if err != nil {
		return err
	}
	if line.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, line.Quantity)
	}
	return nil
}

func (p *posTestContext) lineDraws(id string, q1 int, b1 string, q2 int, b2 string) error {
	line, err := p.line(id)
	if err != nil {
		return err
	}
	want := []model.Allocation{{BatchID: b1, Quantity: q1}, {BatchID: b2, Quantity: q2}}
	if fmt.Sprint(line.Allocations) != fmt.Sprint(want) {
		return fmt.Errorf("expected allocations %v, got %v", want, line.Allocations)
	}
	return nil
}

func (p *posTestContext) theOperationFailsWith(msg string) error {
	if p.err == nil {
		return fmt.Errorf("expected error %q, got none", msg)
	}
	if p.err.Error() != msg {
		return fmt.Errorf("expected error %q, got %q", msg, p.err.Error())
	}
	return nil
}

func (p *posTestContext) theDiscountIs(kind string, value int) error {
	d := p.cart.Discount()
	if string(d.Type) != kind || !d.Value.Equal(decimal.NewFromInt(int64(value))) {
		return fmt.Errorf("expected %s %d discount, got %s %s", kind, value, d.Type, d.Value)
	}
	return nil
}

func (p *posTestContext) theTotalIs(total int) error {
	got := p.cart.Summary().Total
	if !got.Equal(decimal.NewFromInt(int64(total))) {
		return fmt.Errorf("expected total %d, got %s", total, got)
	}
	return nil
}

func (p *posTestContext) noInvoiceWasRequested() error {
	if len(p.creator.requests) != 0 {
		return fmt.Errorf("expected no invoice request, got %d", len(p.creator.requests))
	}
	return nil
}

func (p *posTestContext) anInvoiceWasRequestedWithTotal(total int) error {
	if p.err != nil {
		return p.err
	}
	if len(p.creator.requests) != 1 {
		return fmt.Errorf("expected one invoice request, got %d", len(p.creator.requests))
	}
	if got := p.creator.requests[0].Total; !got.Equal(decimal.NewFromInt(int64(total))) {
		return fmt.Errorf("expected total %d, got %s", total, got)
	}
	return nil
}

func (p *posTestContext) theCartIsEmpty() error {
	if !p.cart.Empty() {
		return fmt.Errorf("expected empty cart, got %d lines", len(p.cart.Lines()))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &posTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given
	ctx.Step(`^product "([^"]*)" priced (\d+) with stock (\d+)$`, tc.productPricedWithStock)
	ctx.Step(`^the cart holds (\d+) units of "([^"]*)" from batch "([^"]*)"$`, tc.theCartHolds)
	ctx.Step(`^a manual percentage discount of (\d+)$`, tc.aManualPercentageDiscount)
	ctx.Step(`^the backend accepts coupon "([^"]*)" with discount (\d+)$`, tc.theBackendAcceptsCoupon)
	ctx.Step(`^the customer is "([^"]*)" with email "([^"]*)"$`, tc.theCustomerIs)

	// When
	ctx.Step(`^the operator adds (\d+) units of "([^"]*)" from batch "([^"]*)"$`, tc.theOperatorAdds)
	ctx.Step(`^the operator applies coupon "([^"]*)"$`, tc.theOperatorAppliesCoupon)
	ctx.Step(`^the operator removes the coupon$`, tc.theOperatorRemovesTheCoupon)
	ctx.Step(`^the operator sets the quantity of "([^"]*)" to (\d+)$`, tc.theOperatorSetsTheQuantity)
	ctx.Step(`^the operator submits the checkout$`, tc.theOperatorSubmitsTheCheckout)

	// Then
	ctx.Step(`^line "([^"]*)" has quantity (\d+)$`, tc.lineHasQuantity)
	ctx.Step(`^line "([^"]*)" draws (\d+) from "([^"]*)" and (\d+) from "([^"]*)"$`, tc.lineDraws)
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
	ctx.Step(`^the discount is (percentage|fixed) (\d+)$`, tc.theDiscountIs)
	ctx.Step(`^the total is (\d+)$`, tc.theTotalIs)
	ctx.Step(`^no invoice was requested$`, tc.noInvoiceWasRequested)
	ctx.Step(`^an invoice was requested with total (\d+)$`, tc.anInvoiceWasRequestedWithTotal)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/pos.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
