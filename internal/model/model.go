package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// backend speaks plain JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Catalog

type Product struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	CurrentStock int             `json:"currentStock"`
	Category     string          `json:"category"`
	Image        string          `json:"image,omitempty"`
}

type PurchaseBatch struct {
	ID                string          `json:"_id"`
	PurchaseDate      time.Time       `json:"purchaseDate"`
	Supplier          string          `json:"supplierName"`
	UnitCost          decimal.Decimal `json:"unitCost"`
	SellingPrice      decimal.Decimal `json:"sellingPrice"`
	Quantity          int             `json:"quantity"`
	RemainingQuantity int             `json:"remainingQuantity"`
}

// Open reports whether the batch still has undeducted stock.
func (b PurchaseBatch) Open() bool {
	return b.RemainingQuantity > 0
}

// Cart

type Allocation struct {
	BatchID  string `json:"purchaseId"`
	Quantity int    `json:"quantity"`
}

type LineItem struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Image        string          `json:"image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	CurrentStock int             `json:"currentStock"`
	Allocations  []Allocation    `json:"allocations"`
}

// Allocated sums the quantities drawn from purchase batches. It can differ
// from Quantity after a direct quantity edit.
func (l LineItem) Allocated() int {
	var n int
	for _, a := range l.Allocations {
		n += a.Quantity
	}
	return n
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type DiscountSource string

const (
	DiscountManual DiscountSource = "manual"
	DiscountCoupon DiscountSource = "coupon"
)

type Discount struct {
	Type   DiscountType    `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Source DiscountSource  `json:"source"`
}

// NoDiscount is the neutral discount of a fresh cart.
func NoDiscount() Discount {
	return Discount{Type: DiscountPercentage, Value: decimal.Zero, Source: DiscountManual}
}

type AppliedCoupon struct {
	ID             string          `json:"_id"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheck        PaymentMethod = "check"
	PaymentOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentCheck, PaymentOther:
		return true
	}
	return false
}

type Payment struct {
	Method     PaymentMethod `json:"method"`
	CardNumber string        `json:"cardNumber,omitempty"`
}

// Saved carts

type CartState struct {
	Lines    []LineItem `json:"cart"`
	Customer Customer   `json:"customer"`
	Discount Discount   `json:"discount"`
	Notes    string     `json:"notes"`
}

type Snapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	State     CartState `json:"state"`
}

// Invoices

const InvoiceStatusPending = "pending"

type Invoice struct {
	ID     string `json:"_id"`
	Number string `json:"invoiceNumber"`
	Status string `json:"status"`
}

type InvoiceLine struct {
	ProductID   string          `json:"product"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
	Allocations []Allocation    `json:"allocations"`
}

type InvoiceRequest struct {
	RequestID     string          `json:"-"`
	Customer      Customer        `json:"customer"`
	Items         []InvoiceLine   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discountAmount"`
	Tax           decimal.Decimal `json:"taxAmount"`
	Total         decimal.Decimal `json:"total"`
	DiscountInfo  Discount        `json:"discount"`
	Coupon        *AppliedCoupon  `json:"coupon,omitempty"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CardLast4     string          `json:"cardLast4,omitempty"`
	Notes         string          `json:"notes"`
	Status        string          `json:"status"`
}
