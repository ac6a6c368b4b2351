// Package cart is the in-memory basket of one register session. A Cart is not
// safe for concurrent use; the checkout orchestrator serialises access to it.
package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/internal/sales"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

// DefaultTaxRate is the VAT applied to the cart subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.16")

// Line is one product in the cart. UnitPrice is captured when the product is
// first added and is not refreshed while the line lives.
type Line struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"name"`
	UnitPrice money.Cents `json:"unit_price"`
	Quantity  int         `json:"quantity"`
}

func (l Line) Total() money.Cents {
	return l.UnitPrice.Mul(l.Quantity)
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// OrWalkIn substitutes the walk-in sentinel for a blank name.
func (c CustomerInfo) OrWalkIn() CustomerInfo {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = sales.WalkInCustomer
	}
	return c
}

type Totals struct {
	Subtotal money.Cents `json:"subtotal"`
	Tax      money.Cents `json:"tax"`
	Total    money.Cents `json:"total"`
	Lines    int         `json:"lines"`
	Units    int         `json:"units"`
}

type Cart struct {
	taxRate  decimal.Decimal
	lines    []Line
	index    map[int64]int
	customer CustomerInfo
}

func New(taxRate decimal.Decimal) *Cart {
	return &Cart{
		taxRate: taxRate,
		index:   make(map[int64]int),
	}
}

// AddItem increments the line for product, or appends a new line with quantity 1.
func (c *Cart) AddItem(product catalog.Product) (Line, error) {
	if product.ID <= 0 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if product.Price < 0 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product price cannot be negative")
	}
	if i, ok := c.index[product.ID]; ok {
		c.lines[i].Quantity++
		return c.lines[i], nil
	}
	line := Line{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
	}
	c.index[product.ID] = len(c.lines)
	c.lines = append(c.lines, line)
	return line, nil
}

// SetQuantity sets a line's quantity; zero or less removes it. It reports
// whether the product was in the cart.
func (c *Cart) SetQuantity(productID int64, quantity int) bool {
	i, ok := c.index[productID]
	if !ok {
		return false
	}
	if quantity <= 0 {
		c.removeAt(i)
		return true
	}
	c.lines[i].Quantity = quantity
	return true
}

// RemoveItem drops the product's line. Removing an absent product is a no-op.
func (c *Cart) RemoveItem(productID int64) {
	if i, ok := c.index[productID]; ok {
		c.removeAt(i)
	}
}

func (c *Cart) removeAt(i int) {
	delete(c.index, c.lines[i].ProductID)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

// Clear empties the cart and forgets the customer.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[int64]int)
	c.customer = CustomerInfo{}
}

func (c *Cart) SetCustomer(info CustomerInfo) {
	c.customer = CustomerInfo{
		Name:  strings.TrimSpace(info.Name),
		Phone: strings.TrimSpace(info.Phone),
		Email: strings.TrimSpace(info.Email),
	}
}

func (c *Cart) Customer() CustomerInfo {
	return c.customer
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Line(productID int64) (Line, bool) {
	i, ok := c.index[productID]
	if !ok {
		return Line{}, false
	}
	return c.lines[i], true
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Totals is derived from the lines on every call.
func (c *Cart) Totals() Totals {
	var t Totals
	for _, l := range c.lines {
		t.Subtotal += l.Total()
		t.Units += l.Quantity
	}
	t.Lines = len(c.lines)
	t.Tax = t.Subtotal.ApplyRate(c.taxRate)
	t.Total = t.Subtotal + t.Tax
	return t
}

// Fingerprint identifies the cart contents and customer; it changes whenever
// anything that would be submitted changes.
func (c *Cart) Fingerprint() string {
	h := sha256.New()
	for _, l := range c.lines {
		fmt.Fprintf(h, "%d:%d:%d|", l.ProductID, l.Quantity, l.UnitPrice)
	}
	fmt.Fprintf(h, "%s|%s|%s", c.customer.Name, c.customer.Phone, c.customer.Email)
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot is a read-only copy of the cart for rendering.
type Snapshot struct {
	Lines    []Line       `json:"lines"`
	Customer CustomerInfo `json:"customer"`
	Totals   Totals       `json:"totals"`
}

func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:    c.Lines(),
		Customer: c.customer,
		Totals:   c.Totals(),
	}
}
