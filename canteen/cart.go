/*
cart.go - Cart building and pricing

PURPOSE:
  Accumulates catalog products into priced lines ahead of settlement.
  Unit prices are captured at add-time, so catalog edits never reprice
  an open cart. The cart never mutates inventory - the stock gate only
  refuses additions past the known count.

STOCK GATE:
  With EnforceStockLimit on, adding past a product's known stock fails
  with InsufficientStockError and leaves the cart unchanged. Products
  with untracked stock (nil) are never gated.

SEE ALSO:
  - settlement.go: Consumes the cart at checkout
*/
package canteen

import (
	"github.com/shopspring/decimal"
)

// Cart is an ordered set of priced lines. Not safe for concurrent use;
// one cart belongs to one register flow.
type Cart struct {
	lines    []LineItem
	features Features
}

func NewCart(features Features) *Cart {
	return &Cart{features: features}
}

// Add puts qty units of a product in the cart, merging with an existing
// line for the same product. The product's current price is captured on
// first add.
func (c *Cart) Add(p Product, qty int) error {
	if qty < 1 {
		qty = 1
	}

	existing := c.lineIndex(p.ID)
	current := 0
	if existing >= 0 {
		current = c.lines[existing].Quantity
	}

	if c.features.EnforceStockLimit && p.Stock != nil && current+qty > *p.Stock {
		return &InsufficientStockError{
			ProductID: p.ID,
			Requested: current + qty,
			Available: *p.Stock,
		}
	}

	if existing >= 0 {
		c.lines[existing].Quantity += qty
		return nil
	}
	c.lines = append(c.lines, LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
	})
	return nil
}

// Remove drops the line for a product. Removing an absent product is a
// no-op.
func (c *Cart) Remove(id ProductID) {
	i := c.lineIndex(id)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// SetQuantity adjusts a line's quantity, floored at 1. Use Remove to
// drop a line entirely.
func (c *Cart) SetQuantity(id ProductID, qty int) {
	i := c.lineIndex(id)
	if i < 0 {
		return
	}
	if qty < 1 {
		qty = 1
	}
	c.lines[i].Quantity = qty
}

// SetNote attaches a free-text note to a line.
func (c *Cart) SetNote(id ProductID, note string) {
	i := c.lineIndex(id)
	if i < 0 {
		return
	}
	c.lines[i].Note = note
}

// Total computes the cart total: sum of price x quantity.
func (c *Cart) Total() decimal.Decimal {
	return ItemsTotal(c.lines)
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Clear empties the cart. Settlement always clears on success to
// prevent double-charging.
func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) lineIndex(id ProductID) int {
	for i, li := range c.lines {
		if li.ProductID == id {
			return i
		}
	}
	return -1
}
