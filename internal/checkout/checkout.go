package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/theplant/luhn"

	"github.com/iurnickita/posmart/internal/cart"
	"github.com/iurnickita/posmart/internal/model"
)

type State int

const (
	StateIdle State = iota
	StateModalOpen
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModalOpen:
		return "modal_open"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotOpen           = errors.New("checkout is not open")
	ErrSubmitInProgress  = errors.New("checkout submission in progress")
	ErrCustomerName      = errors.New("customer name is required")
	ErrCustomerEmail     = errors.New("customer email is required")
	ErrInvalidEmail      = errors.New("customer email is invalid")
	ErrInvalidPayment    = errors.New("invalid payment method")
	ErrInvalidCardNumber = errors.New("card number is invalid")
)

// InvoiceCreator issues the single invoice-creation call.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req model.InvoiceRequest) (model.Invoice, error)
}

// UsageRegistrar records coupon usage after a sale, best effort.
type UsageRegistrar interface {
	RegisterUsage(ctx context.Context, coupon model.AppliedCoupon)
}

// Checkout drives Idle → ModalOpen → Submitting → Idle | ModalOpen. The
// Submitting state is the guard against double submission.
type Checkout struct {
	creator   InvoiceCreator
	coupons   UsageRegistrar
	state     State
	requestID string
	// payload hash of the last request sent under requestID
	sent    string
	lastErr error
}

func New(creator InvoiceCreator, coupons UsageRegistrar) *Checkout {
	return &Checkout{creator: creator, coupons: coupons}
}

func (co *Checkout) State() State {
	return co.state
}

// LastError is the failure shown in the open modal, if any.
func (co *Checkout) LastError() error {
	return co.lastErr
}

func (co *Checkout) Open(c *cart.Cart) error {
	if co.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	if c.Empty() {
		return ErrEmptyCart
	}
	if co.state == StateIdle {
		co.requestID = uuid.NewString()
	}
	co.state = StateModalOpen
	co.lastErr = nil
	return nil
}

func (co *Checkout) Cancel() error {
	if co.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	co.reset()
	return nil
}

func (co *Checkout) reset() {
	co.state = StateIdle
	co.requestID = ""
	co.sent = ""
	co.lastErr = nil
}

// Validate checks everything that can be checked without the backend.
func Validate(c *cart.Cart) error {
	if c.Empty() {
		return ErrEmptyCart
	}
	customer := c.Customer()
	if strings.TrimSpace(customer.Name) == "" {
		return ErrCustomerName
	}
	if strings.TrimSpace(customer.Email) == "" {
		return ErrCustomerEmail
	}
	if _, err := mail.ParseAddress(customer.Email); err != nil {
		return ErrInvalidEmail
	}
	payment := c.Payment()
	if !payment.Method.Valid() {
		return ErrInvalidPayment
	}
	if payment.Method == model.PaymentCard && payment.CardNumber != "" && !validCardNumber(payment.CardNumber) {
		return ErrInvalidCardNumber
	}
	return nil
}

func cardDigits(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// validCardNumber runs the Luhn check on the payload and compares the
// computed check digit with the last one, so 19-digit numbers stay in int64.
func validCardNumber(number string) bool {
	digits := cardDigits(number)
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	payload, err := strconv.Atoi(digits[:len(digits)-1])
	if err != nil {
		return false
	}
	return luhn.CalculateLuhn(payload) == int(digits[len(digits)-1]-'0')
}

// BuildInvoiceRequest flattens the cart into the invoice payload. Only the
// last four card digits leave the service.
func BuildInvoiceRequest(c *cart.Cart) model.InvoiceRequest {
	summary := c.Summary()
	lines := c.Lines()

	items := make([]model.InvoiceLine, 0, len(lines))
	for _, line := range lines {
		items = append(items, model.InvoiceLine{
			ProductID:   line.ProductID,
			Name:        line.Name,
			SKU:         line.SKU,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Allocations: line.Allocations,
		})
	}

	payment := c.Payment()
	req := model.InvoiceRequest{
		Customer:      c.Customer(),
		Items:         items,
		Subtotal:      summary.Subtotal,
		Discount:      summary.Discount,
		Tax:           summary.Tax,
		Total:         summary.Total,
		DiscountInfo:  c.Discount(),
		Coupon:        c.Coupon(),
		PaymentMethod: payment.Method,
		Notes:         c.Notes(),
		Status:        model.InvoiceStatusPending,
	}
	if payment.Method == model.PaymentCard {
		if digits := cardDigits(payment.CardNumber); len(digits) >= 4 {
			req.CardLast4 = digits[len(digits)-4:]
		}
	}
	return req
}

// Begin validates the open checkout and moves it to Submitting. A
// validation failure keeps the modal open and issues no request.
func (co *Checkout) Begin(c *cart.Cart) (model.InvoiceRequest, error) {
	switch co.state {
	case StateSubmitting:
		return model.InvoiceRequest{}, ErrSubmitInProgress
	case StateIdle:
		return model.InvoiceRequest{}, ErrNotOpen
	}
	if err := Validate(c); err != nil {
		co.lastErr = err
		return model.InvoiceRequest{}, err
	}

	req := BuildInvoiceRequest(c)
	hash, err := fingerprint(req)
	if err != nil {
		return model.InvoiceRequest{}, err
	}
	// a retry keeps its key only while the payload is unchanged
	if co.sent != "" && co.sent != hash {
		co.requestID = uuid.NewString()
	}
	co.sent = hash

	req.RequestID = co.requestID
	co.state = StateSubmitting
	co.lastErr = nil
	return req, nil
}

// Complete clears the cart after the invoice was created. It returns the
// coupon that was applied, if any, so its usage can be registered.
func (co *Checkout) Complete(c *cart.Cart) *model.AppliedCoupon {
	coupon := c.Coupon()
	c.Clear()
	co.reset()
	return coupon
}

// Fail returns to the open modal; the cart is kept for another attempt.
func (co *Checkout) Fail(err error) {
	co.state = StateModalOpen
	co.lastErr = err
}

// Submit runs Begin, the invoice call and Complete or Fail, then registers
// coupon usage. mu guards c and co; it is held for the state transitions
// and released during the network call, so the caller must not hold it.
func (co *Checkout) Submit(ctx context.Context, c *cart.Cart, mu sync.Locker) (model.Invoice, error) {
	mu.Lock()
	req, err := co.Begin(c)
	mu.Unlock()
	if err != nil {
		return model.Invoice{}, err
	}

	invoice, err := co.creator.CreateInvoice(ctx, req)

	mu.Lock()
	if err != nil {
		err = fmt.Errorf("create invoice: %w", err)
		co.Fail(err)
		mu.Unlock()
		return model.Invoice{}, err
	}
	coupon := co.Complete(c)
	mu.Unlock()

	if coupon != nil {
		co.coupons.RegisterUsage(ctx, *coupon)
	}
	return invoice, nil
}

func fingerprint(req model.InvoiceRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
