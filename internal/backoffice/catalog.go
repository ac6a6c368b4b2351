package backoffice

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/pkg/auth"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

type productWire struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Price         money.Cents `json:"price"`
	Stock         int         `json:"stock"`
	MinStockLevel int         `json:"min_stock_level"`
	IsActive      *bool       `json:"is_active"`
	Barcode       string      `json:"barcode"`
	Brand         string      `json:"brand"`
	Size          string      `json:"size"`
}

func (w productWire) toProduct() catalog.Product {
	active := true
	if w.IsActive != nil {
		active = *w.IsActive
	}
	return catalog.Product{
		ID:            w.ID,
		Name:          w.Name,
		Category:      w.Category,
		Price:         w.Price,
		Stock:         w.Stock,
		MinStockLevel: w.MinStockLevel,
		Active:        active,
		Barcode:       w.Barcode,
		Brand:         w.Brand,
		Size:          w.Size,
	}
}

type paginationWire struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

// Search implements catalog.Searcher over GET /products.
func (c *Client) Search(ctx context.Context, sess auth.Session, q catalog.Query) (catalog.Page, error) {
	if q.Page < 1 {
		return catalog.Page{}, pkgerrors.New(pkgerrors.CodeValidation, "page must be at least 1")
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = catalog.DefaultPageSize
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", strconv.Itoa(pageSize))
	params.Set("active_only", "true")
	if text := strings.TrimSpace(q.Text); text != "" {
		params.Set("search", text)
	}
	if category := q.CategoryFilter(); category != "" {
		params.Set("category", category)
	}

	var out struct {
		Products   []productWire  `json:"products"`
		Pagination paginationWire `json:"pagination"`
	}
	if err := c.get(ctx, sess, "GET /products", "/products", params, &out); err != nil {
		return catalog.Page{}, err
	}

	items := make([]catalog.Product, 0, len(out.Products))
	for _, p := range out.Products {
		product := p.toProduct()
		if !product.Active {
			continue
		}
		items = append(items, product)
	}
	page := out.Pagination.Page
	if page < 1 {
		page = q.Page
	}
	return catalog.Page{
		Items:      items,
		TotalCount: out.Pagination.Total,
		PageCount:  out.Pagination.Pages,
		Page:       page,
	}, nil
}

// Categories implements catalog.CategoryLister over GET /categories.
func (c *Client) Categories(ctx context.Context, sess auth.Session) ([]catalog.Category, error) {
	params := url.Values{}
	params.Set("active_only", "true")
	params.Set("per_page", "100")

	var out struct {
		Categories []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			IsActive *bool  `json:"is_active"`
		} `json:"categories"`
	}
	if err := c.get(ctx, sess, "GET /categories", "/categories", params, &out); err != nil {
		return nil, err
	}

	categories := make([]catalog.Category, 0, len(out.Categories))
	for _, cat := range out.Categories {
		if cat.IsActive != nil && !*cat.IsActive {
			continue
		}
		categories = append(categories, catalog.Category{ID: cat.ID, Name: cat.Name})
	}
	return categories, nil
}

// Product implements catalog.ProductLoader over GET /products/:id.
func (c *Client) Product(ctx context.Context, sess auth.Session, id int64) (catalog.Product, error) {
	if id <= 0 {
		return catalog.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	var out productWire
	path := "/products/" + strconv.FormatInt(id, 10)
	if err := c.get(ctx, sess, "GET /products/:id", path, nil, &out); err != nil {
		return catalog.Product{}, err
	}
	return out.toProduct(), nil
}
