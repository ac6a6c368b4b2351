// Package catalog queries the back office for sellable products and keeps the
// POS product pane in sync with the operator's search input.
package catalog

import (
	"context"
	"strings"

	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/money"
)

// AllCategories is the category value meaning "no category filter".
const AllCategories = "all"

// StockStatus is a display-only stock label; the register never blocks a sale on it.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

type Product struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Price         money.Cents `json:"price"`
	Stock         int         `json:"stock"`
	MinStockLevel int         `json:"min_stock_level"`
	Active        bool        `json:"active"`
	Barcode       string      `json:"barcode,omitempty"`
	Brand         string      `json:"brand,omitempty"`
	Size          string      `json:"size,omitempty"`
}

func (p Product) StockStatus() StockStatus {
	switch {
	case p.Stock <= 0:
		return StockOutOfStock
	case p.Stock <= p.MinStockLevel:
		return StockLowStock
	default:
		return StockInStock
	}
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Query selects one page of active products.
type Query struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// CategoryFilter returns the category to send upstream, empty for "all".
func (q Query) CategoryFilter() string {
	c := strings.TrimSpace(q.Category)
	if strings.EqualFold(c, AllCategories) {
		return ""
	}
	return c
}

type Page struct {
	Items      []Product `json:"items"`
	TotalCount int       `json:"total_count"`
	PageCount  int       `json:"page_count"`
	Page       int       `json:"page"`
}

// Searcher is the stateless catalog read. Failures come back as errors carrying
// a human-readable message; the caller decides what stays on screen.
type Searcher interface {
	Search(ctx context.Context, sess auth.Session, q Query) (Page, error)
}

// CategoryLister lists active product categories for the category strip.
type CategoryLister interface {
	Categories(ctx context.Context, sess auth.Session) ([]Category, error)
}

// ProductLoader fetches a single product, used when the till adds by id.
type ProductLoader interface {
	Product(ctx context.Context, sess auth.Session, id int64) (Product, error)
}
