package orders

import (
	"encoding/json"
	"strings"

	"github.com/ikkim/storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// Status is the backend order state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Known reports whether s is one of the listed states.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Item struct {
	ProductID catalog.ID      `json:"productId"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	Packaging string          `json:"packaging,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Address struct {
	FullName   string `json:"fullName,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// OneLine joins the non-empty address parts.
func (a Address) OneLine() string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type Tracking struct {
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	URL            string `json:"url,omitempty"`
}

// Order is the order shape rendered by the storefront.
type Order struct {
	ID              catalog.ID      `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Status          Status          `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentStatus   string          `json:"paymentStatus"`
	Items           []Item          `json:"items"`
	ShippingAddress Address         `json:"shippingAddress"`
	Totals          Totals          `json:"totals"`
	TrackingInfo    *Tracking       `json:"trackingInfo,omitempty"`
	Reviews         json.RawMessage `json:"reviews,omitempty"`
	RelatedOrders   []string        `json:"relatedOrders,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	aux := struct {
		*plain
		MongoID      catalog.ID       `json:"_id"`
		Status       string           `json:"status"`
		OrderStatus  string           `json:"orderStatus"`
		Subtotal     *decimal.Decimal `json:"subtotal"`
		ShippingCost *decimal.Decimal `json:"shippingCost"`
		Tax          *decimal.Decimal `json:"tax"`
		Discount     *decimal.Decimal `json:"discount"`
		TotalAmount  *decimal.Decimal `json:"totalAmount"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = aux.MongoID
	}
	status := aux.Status
	if status == "" {
		status = aux.OrderStatus
	}
	o.Status = Status(strings.ToLower(status))

	// flat totals fill whatever the totals object left empty
	fill := func(dst *decimal.Decimal, src *decimal.Decimal) {
		if src != nil && dst.IsZero() {
			*dst = *src
		}
	}
	fill(&o.Totals.Subtotal, aux.Subtotal)
	fill(&o.Totals.Shipping, aux.ShippingCost)
	fill(&o.Totals.Tax, aux.Tax)
	fill(&o.Totals.Discount, aux.Discount)
	fill(&o.Totals.Total, aux.TotalAmount)
	return nil
}

func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	aux := struct {
		*plain
		Product json.RawMessage `json:"product"`
		Title   string          `json:"title"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if it.Name == "" {
		it.Name = aux.Title
	}
	if len(aux.Product) > 0 && aux.Product[0] == '{' {
		var p catalog.Product
		if err := json.Unmarshal(aux.Product, &p); err == nil {
			if it.ProductID == "" {
				it.ProductID = p.ID
			}
			if it.Name == "" {
				it.Name = p.Name
			}
		}
	} else if it.ProductID == "" && len(aux.Product) > 0 {
		_ = json.Unmarshal(aux.Product, &it.ProductID)
	}
	return nil
}
