package allocation

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/posmart/internal/model"
)

var (
	ErrNoPurchaseHistory = errors.New("no purchase history for product")
	ErrNothingAllocated  = errors.New("select at least one batch quantity")
	ErrUnknownBatch      = errors.New("unknown purchase batch")
	ErrNegativePrice     = errors.New("unit price cannot be negative")
)

type Selection struct {
	Batch    model.PurchaseBatch `json:"batch"`
	Selected bool                `json:"selected"`
	Quantity int                 `json:"quantity"`
}

// Selector distributes the quantity of one product across its open
// purchase batches.
type Selector struct {
	product    model.Product
	selections []Selection
	price      decimal.Decimal
}

// NewSelector drops depleted batches up front. A product without any open
// batch cannot be added.
func NewSelector(product model.Product, batches []model.PurchaseBatch) (*Selector, error) {
	var selections []Selection
	for _, batch := range batches {
		if batch.Open() {
			selections = append(selections, Selection{Batch: batch})
		}
	}
	if len(selections) == 0 {
		return nil, ErrNoPurchaseHistory
	}

	return &Selector{
		product:    product,
		selections: selections,
		price:      product.SellingPrice,
	}, nil
}

func (s *Selector) Product() model.Product {
	return s.product
}

func (s *Selector) Batches() []Selection {
	out := make([]Selection, len(s.selections))
	copy(out, s.selections)
	return out
}

func (s *Selector) find(batchID string) (*Selection, error) {
	for i := range s.selections {
		if s.selections[i].Batch.ID == batchID {
			return &s.selections[i], nil
		}
	}
	return nil, ErrUnknownBatch
}

// Toggle selects or deselects a batch. Deselecting zeroes its quantity.
func (s *Selector) Toggle(batchID string, selected bool) error {
	sel, err := s.find(batchID)
	if err != nil {
		return err
	}
	sel.Selected = selected
	if !selected {
		sel.Quantity = 0
	}
	return nil
}

// SetQuantity clamps qty to [0, remaining]. A positive quantity selects the
// batch, zero deselects it.
func (s *Selector) SetQuantity(batchID string, qty int) error {
	sel, err := s.find(batchID)
	if err != nil {
		return err
	}
	if qty < 0 {
		qty = 0
	}
	if qty > sel.Batch.RemainingQuantity {
		qty = sel.Batch.RemainingQuantity
	}
	sel.Quantity = qty
	sel.Selected = qty > 0
	return nil
}

// Quantity is the aggregate over selected batches.
func (s *Selector) Quantity() int {
	var n int
	for _, sel := range s.selections {
		if sel.Selected {
			n += sel.Quantity
		}
	}
	return n
}

// SetPrice overrides the unit price of the whole line. Batch prices are
// informational only.
func (s *Selector) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrNegativePrice
	}
	s.price = price
	return nil
}

func (s *Selector) Price() decimal.Decimal {
	return s.price
}

func (s *Selector) Commit() ([]model.Allocation, error) {
	var allocations []model.Allocation
	for _, sel := range s.selections {
		if sel.Selected && sel.Quantity > 0 {
			allocations = append(allocations, model.Allocation{BatchID: sel.Batch.ID, Quantity: sel.Quantity})
		}
	}
	if len(allocations) == 0 {
		return nil, ErrNothingAllocated
	}
	return allocations, nil
}
