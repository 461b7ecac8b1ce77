// Package cart keeps a visitor's cart eventually consistent with the backend.
package cart

import (
	"github.com/shopspring/decimal"
)

// Key identifies a cart line. Two lines never share a key.
type Key struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant"`
	Packaging string `json:"packaging"`
}

// LineItem is one product/variant/packaging entry of the cart.
type LineItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Quantity  int             `json:"quantity"`
	Variant   string          `json:"variant"`
	Packaging string          `json:"packaging"`
}

func (l LineItem) Key() Key {
	return Key{ProductID: l.ProductID, Variant: l.Variant, Packaging: l.Packaging}
}

// Subtotal is price x quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is a read-only copy of the cart state.
//
// Total is always recomputed from Items. ServerTotal is the figure the backend
// reported with the same payload, nil when it sent none.
type Snapshot struct {
	Items       []LineItem       `json:"items"`
	Total       decimal.Decimal  `json:"total"`
	ServerTotal *decimal.Decimal `json:"serverTotal,omitempty"`
	Version     uint64           `json:"version"`
}

// ItemCount sums line quantities.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Find returns the line with key k.
func (s Snapshot) Find(k Key) (LineItem, bool) {
	for _, it := range s.Items {
		if it.Key() == k {
			return it, true
		}
	}
	return LineItem{}, false
}

// AddInput is the payload of an add-to-cart request.
type AddInput struct {
	ProductID string `json:"productId" binding:"required"`
	Variant   string `json:"variant"`
	Packaging string `json:"packaging"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// Total returns Σ(price × quantity) over items; zero for none.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Items = append([]LineItem(nil), s.Items...)
	if out.Items == nil {
		out.Items = []LineItem{}
	}
	if s.ServerTotal != nil {
		st := *s.ServerTotal
		out.ServerTotal = &st
	}
	return out
}
