package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/posmart/internal/allocation"
	"github.com/iurnickita/posmart/internal/backend"
	"github.com/iurnickita/posmart/internal/cart"
	"github.com/iurnickita/posmart/internal/checkout"
	"github.com/iurnickita/posmart/internal/coupon"
	"github.com/iurnickita/posmart/internal/model"
	"github.com/iurnickita/posmart/internal/pricing"
	"github.com/iurnickita/posmart/internal/snapshot"
)

type Service interface {
	Catalog(ctx context.Context, operator string) (backend.Catalog, error)
	OpenAllocation(ctx context.Context, operator string, productID string) (AllocationView, error)
	AddToCart(ctx context.Context, operator string, req AddRequest) (CartView, error)
	UpdateQuantity(ctx context.Context, operator string, productID string, qty int) (CartView, error)
	RemoveLine(ctx context.Context, operator string, productID string) (CartView, error)
	GetCart(ctx context.Context, operator string) (CartView, error)
	ClearCart(ctx context.Context, operator string) (CartView, error)
	SetCustomer(ctx context.Context, operator string, customer model.Customer) (CartView, error)
	SetNotes(ctx context.Context, operator string, notes string) (CartView, error)
	SetPayment(ctx context.Context, operator string, payment model.Payment) (CartView, error)
	SetDiscount(ctx context.Context, operator string, discount model.Discount) (CartView, error)
	ApplyCoupon(ctx context.Context, operator string, code string) (CartView, error)
	RemoveCoupon(ctx context.Context, operator string) (CartView, error)
	OpenCheckout(ctx context.Context, operator string) (CartView, error)
	CancelCheckout(ctx context.Context, operator string) (CartView, error)
	SubmitCheckout(ctx context.Context, operator string) (model.Invoice, error)
	SavedCarts(ctx context.Context, operator string) ([]model.Snapshot, error)
	SaveCart(ctx context.Context, operator string, name string) (model.Snapshot, error)
	LoadCart(ctx context.Context, operator string, id string) (CartView, error)
	DeleteSavedCart(ctx context.Context, operator string, id string) error
}

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownProduct   = errors.New("unknown product")
)

type Selection struct {
	BatchID  string `json:"batchId"`
	Quantity int    `json:"quantity"`
}

type AddRequest struct {
	ProductID  string           `json:"productId"`
	Selections []Selection      `json:"selections"`
	UnitPrice  *decimal.Decimal `json:"unitPrice,omitempty"`
}

type AllocationView struct {
	Product  model.Product          `json:"product"`
	Batches  []allocation.Selection `json:"batches"`
	Price    decimal.Decimal        `json:"price"`
	Quantity int                    `json:"quantity"`
}

type CartView struct {
	Lines         []model.LineItem     `json:"lines"`
	Customer      model.Customer       `json:"customer"`
	Discount      model.Discount       `json:"discount"`
	Coupon        *model.AppliedCoupon `json:"coupon,omitempty"`
	PaymentMethod model.PaymentMethod  `json:"paymentMethod"`
	Notes         string               `json:"notes"`
	Summary       pricing.Summary      `json:"summary"`
	Checkout      checkout.State       `json:"checkout"`
	CheckoutError string               `json:"checkoutError,omitempty"`
}

// session is the live sale of one operator.
type session struct {
	mu       sync.Mutex
	cart     *cart.Cart
	checkout *checkout.Checkout
	products map[string]model.Product
}

type service struct {
	backend   backend.Client
	snapshots snapshot.Repository
	coupons   *coupon.Resolver
	zaplog    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewService(client backend.Client, snapshots snapshot.Repository, zaplog *zap.Logger) Service {
	return &service{
		backend:   client,
		snapshots: snapshots,
		coupons:   coupon.NewResolver(client, zaplog),
		zaplog:    zaplog,
		sessions:  make(map[string]*session),
	}
}

func (service *service) session(operator string) (*session, error) {
	if operator == "" {
		return nil, ErrInsufficientData
	}

	service.mu.Lock()
	defer service.mu.Unlock()

	sess, ok := service.sessions[operator]
	if !ok {
		sess = &session{
			cart:     cart.New(),
			checkout: checkout.New(service.backend, service.coupons),
			products: make(map[string]model.Product),
		}
		service.sessions[operator] = sess
	}
	return sess, nil
}

// mutable refuses cart changes while an invoice request is in flight.
func (sess *session) mutable() error {
	if sess.checkout.State() == checkout.StateSubmitting {
		return checkout.ErrSubmitInProgress
	}
	return nil
}

func (sess *session) view() CartView {
	view := CartView{
		Lines:         sess.cart.Lines(),
		Customer:      sess.cart.Customer(),
		Discount:      sess.cart.Discount(),
		Coupon:        sess.cart.Coupon(),
		PaymentMethod: sess.cart.Payment().Method,
		Notes:         sess.cart.Notes(),
		Summary:       sess.cart.Summary(),
		Checkout:      sess.checkout.State(),
	}
	if err := sess.checkout.LastError(); err != nil {
		view.CheckoutError = err.Error()
	}
	return view
}

// remember keeps the fetched products and refreshes the stock known to
// matching cart lines.
func (sess *session) remember(products []model.Product) {
	for _, p := range products {
		sess.products[p.ID] = p
		sess.cart.RefreshStock(p)
	}
}

// product returns the last fetched copy of a product, fetching the
// catalog once when it was never seen.
func (service *service) product(ctx context.Context, sess *session, productID string) (model.Product, error) {
	if p, ok := sess.products[productID]; ok {
		return p, nil
	}
	products, err := service.backend.ListProducts(ctx)
	if err != nil {
		return model.Product{}, err
	}
	sess.remember(products)
	if p, ok := sess.products[productID]; ok {
		return p, nil
	}
	return model.Product{}, ErrUnknownProduct
}

// update runs fn on the operator's session under its lock.
func (service *service) update(operator string, fn func(sess *session) error) (CartView, error) {
	sess, err := service.session(operator)
	if err != nil {
		return CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.mutable(); err != nil {
		return CartView{}, err
	}
	if err := fn(sess); err != nil {
		return CartView{}, err
	}
	return sess.view(), nil
}

func (service *service) Catalog(ctx context.Context, operator string) (backend.Catalog, error) {
	sess, err := service.session(operator)
	if err != nil {
		return backend.Catalog{}, err
	}

	catalog, err := service.backend.Catalog(ctx)
	if err != nil {
		return backend.Catalog{}, err
	}

	sess.mu.Lock()
	sess.remember(catalog.Products)
	sess.mu.Unlock()

	return catalog, nil
}

func (service *service) selector(ctx context.Context, sess *session, productID string) (*allocation.Selector, error) {
	if productID == "" {
		return nil, ErrInsufficientData
	}
	product, err := service.product(ctx, sess, productID)
	if err != nil {
		return nil, err
	}
	batches, err := service.backend.ListPurchases(ctx, productID)
	if err != nil {
		return nil, err
	}
	return allocation.NewSelector(product, batches)
}

func (service *service) OpenAllocation(ctx context.Context, operator string, productID string) (AllocationView, error) {
	sess, err := service.session(operator)
	if err != nil {
		return AllocationView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sel, err := service.selector(ctx, sess, productID)
	if err != nil {
		return AllocationView{}, err
	}
	return AllocationView{
		Product:  sel.Product(),
		Batches:  sel.Batches(),
		Price:    sel.Price(),
		Quantity: sel.Quantity(),
	}, nil
}

func (service *service) AddToCart(ctx context.Context, operator string, req AddRequest) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		sel, err := service.selector(ctx, sess, req.ProductID)
		if err != nil {
			return err
		}
		for _, pick := range req.Selections {
			if err := sel.SetQuantity(pick.BatchID, pick.Quantity); err != nil {
				return err
			}
		}
		if req.UnitPrice != nil {
			if err := sel.SetPrice(*req.UnitPrice); err != nil {
				return err
			}
		}
		allocations, err := sel.Commit()
		if err != nil {
			return err
		}
		return sess.cart.AddOrMerge(sel.Product(), allocations, sel.Price())
	})
}

func (service *service) UpdateQuantity(_ context.Context, operator string, productID string, qty int) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		return sess.cart.UpdateQuantity(productID, qty)
	})
}

func (service *service) RemoveLine(_ context.Context, operator string, productID string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		return sess.cart.RemoveLine(productID)
	})
}

func (service *service) GetCart(_ context.Context, operator string) (CartView, error) {
	sess, err := service.session(operator)
	if err != nil {
		return CartView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.view(), nil
}

func (service *service) ClearCart(_ context.Context, operator string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		sess.cart.Clear()
		return sess.checkout.Cancel()
	})
}

func (service *service) SetCustomer(_ context.Context, operator string, customer model.Customer) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		sess.cart.SetCustomer(customer)
		return nil
	})
}

func (service *service) SetNotes(_ context.Context, operator string, notes string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		sess.cart.SetNotes(notes)
		return nil
	})
}

func (service *service) SetPayment(_ context.Context, operator string, payment model.Payment) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		return sess.cart.SetPayment(payment)
	})
}

func (service *service) SetDiscount(_ context.Context, operator string, discount model.Discount) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		return sess.cart.SetDiscount(discount)
	})
}

func (service *service) ApplyCoupon(ctx context.Context, operator string, code string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		_, err := service.coupons.Apply(ctx, sess.cart, code)
		return err
	})
}

func (service *service) RemoveCoupon(_ context.Context, operator string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		service.coupons.Remove(sess.cart)
		return nil
	})
}

func (service *service) OpenCheckout(_ context.Context, operator string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		return sess.checkout.Open(sess.cart)
	})
}

func (service *service) CancelCheckout(_ context.Context, operator string) (CartView, error) {
	return service.update(operator, func(sess *session) error {
		return sess.checkout.Cancel()
	})
}

// SubmitCheckout leaves the session unlocked while the invoice request is
// in flight; the Submitting state keeps the cart frozen meanwhile.
func (service *service) SubmitCheckout(ctx context.Context, operator string) (model.Invoice, error) {
	sess, err := service.session(operator)
	if err != nil {
		return model.Invoice{}, err
	}

	invoice, err := sess.checkout.Submit(ctx, sess.cart, &sess.mu)
	if err != nil {
		service.zaplog.Warn("checkout failed",
			zap.String("operator", operator),
			zap.Error(err),
		)
		return model.Invoice{}, err
	}

	service.zaplog.Info("invoice created",
		zap.String("operator", operator),
		zap.String("invoice", invoice.ID),
		zap.String("number", invoice.Number),
	)
	return invoice, nil
}

func (service *service) SavedCarts(ctx context.Context, operator string) ([]model.Snapshot, error) {
	if operator == "" {
		return nil, ErrInsufficientData
	}
	return service.snapshots.List(ctx, operator)
}

func (service *service) SaveCart(ctx context.Context, operator string, name string) (model.Snapshot, error) {
	sess, err := service.session(operator)
	if err != nil {
		return model.Snapshot{}, err
	}

	sess.mu.Lock()
	state := sess.cart.State()
	sess.mu.Unlock()

	return service.snapshots.Save(ctx, operator, name, state)
}

func (service *service) LoadCart(ctx context.Context, operator string, id string) (CartView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CartView{}, ErrInsufficientData
	}
	snap, err := service.snapshots.Get(ctx, operator, id)
	if err != nil {
		return CartView{}, err
	}
	return service.update(operator, func(sess *session) error {
		sess.cart.Restore(snap.State)
		return sess.checkout.Cancel()
	})
}

func (service *service) DeleteSavedCart(ctx context.Context, operator string, id string) error {
	if operator == "" {
		return ErrInsufficientData
	}
	return service.snapshots.Delete(ctx, operator, id)
}
