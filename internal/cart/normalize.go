package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	itemKeys  = []string{"items", "cartItems"}
	totalKeys = []string{"totalAmount", "total"}
	nestKeys  = []string{"cart", "data"}
)

// payload is a cart response reduced to the fields the service uses.
type payload struct {
	Items       []LineItem
	HasItems    bool
	ServerTotal *decimal.Decimal
	Dropped     int
}

// normalize maps any known cart response shape onto payload. Lines sharing a
// key are merged and lines without a product id or positive quantity dropped.
func normalize(raw json.RawMessage) (payload, error) {
	var p payload
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return p, nil
	}
	if err := p.walk(raw, 0); err != nil {
		return payload{}, err
	}
	if p.HasItems {
		p.Items = mergeLines(p.Items)
	}
	return p, nil
}

func (p *payload) walk(raw json.RawMessage, depth int) error {
	switch firstByte(raw) {
	case '[':
		return p.readItems(raw)
	case '{':
	default:
		if depth == 0 && !json.Valid(raw) {
			return fmt.Errorf("cart response is not JSON")
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("failed to decode cart response: %w", err)
	}

	if !p.HasItems {
		for _, k := range itemKeys {
			if v, ok := obj[k]; ok && firstByte(v) == '[' {
				if err := p.readItems(v); err != nil {
					return err
				}
				break
			}
		}
	}
	if p.ServerTotal == nil {
		for _, k := range totalKeys {
			if d, ok := parseDecimal(obj[k]); ok {
				p.ServerTotal = &d
				break
			}
		}
	}

	if depth < 2 {
		for _, k := range nestKeys {
			if p.HasItems && p.ServerTotal != nil {
				break
			}
			if v, ok := obj[k]; ok {
				if err := p.walk(v, depth+1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *payload) readItems(raw json.RawMessage) error {
	if p.HasItems {
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("failed to decode cart items: %w", err)
	}
	p.HasItems = true
	p.Items = make([]LineItem, 0, len(rows))
	for _, row := range rows {
		item, ok := parseLine(row)
		if !ok {
			p.Dropped++
			continue
		}
		p.Items = append(p.Items, item)
	}
	return nil
}

type rawProduct struct {
	MongoID   json.RawMessage   `json:"_id"`
	ID        json.RawMessage   `json:"id"`
	Name      string            `json:"name"`
	Title     string            `json:"title"`
	Price     json.RawMessage   `json:"price"`
	Images    []json.RawMessage `json:"images"`
	Image     string            `json:"image"`
	Thumbnail string            `json:"thumbnail"`
}

type rawLine struct {
	ProductID json.RawMessage `json:"productId"`
	Product   json.RawMessage `json:"product"`
	Title     string          `json:"title"`
	Name      string          `json:"name"`
	Price     json.RawMessage `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Image     string          `json:"image"`
	Quantity  json.RawMessage `json:"quantity"`
	Variant   string          `json:"variant"`
	Size      string          `json:"size"`
	Packaging string          `json:"packaging"`
}

func parseLine(raw json.RawMessage) (LineItem, bool) {
	var rl rawLine
	if err := json.Unmarshal(raw, &rl); err != nil {
		return LineItem{}, false
	}

	// productId is sometimes the populated product document.
	var prod rawProduct
	switch {
	case firstByte(rl.Product) == '{':
		_ = json.Unmarshal(rl.Product, &prod)
	case firstByte(rl.ProductID) == '{':
		_ = json.Unmarshal(rl.ProductID, &prod)
		rl.ProductID = nil
	}

	item := LineItem{
		ProductID: firstNonEmpty(scalar(rl.ProductID), scalar(prod.MongoID), scalar(prod.ID), scalar(rl.Product)),
		Title:     firstNonEmpty(rl.Title, rl.Name, prod.Name, prod.Title),
		Thumbnail: firstNonEmpty(rl.Thumbnail, rl.Image, firstImage(prod.Images), prod.Image, prod.Thumbnail),
		Variant:   firstNonEmpty(rl.Variant, rl.Size),
		Packaging: rl.Packaging,
	}
	if d, ok := parseDecimal(rl.Price); ok {
		item.Price = d
	} else if d, ok := parseDecimal(prod.Price); ok {
		item.Price = d
	}

	qty, ok := parseDecimal(rl.Quantity)
	if !ok || qty.LessThan(decimal.NewFromInt(1)) || item.ProductID == "" {
		return LineItem{}, false
	}
	item.Quantity = int(qty.IntPart())
	return item, true
}

// mergeLines folds lines with the same key into the first occurrence.
func mergeLines(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[Key]int, len(items))
	for _, it := range items {
		if i, ok := index[it.Key()]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.Key()] = len(out)
		out = append(out, it)
	}
	return out
}

func firstImage(images []json.RawMessage) string {
	if len(images) == 0 {
		return ""
	}
	if s := scalar(images[0]); s != "" && firstByte(images[0]) == '"' {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(images[0], &obj)
	return obj.URL
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	s := scalar(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// scalar renders a JSON string or number as text; objects, arrays and null give "".
func scalar(raw json.RawMessage) string {
	switch firstByte(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '{', '[', 'n', 't', 'f', 0:
		return ""
	default:
		return strings.TrimSpace(string(raw))
	}
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
