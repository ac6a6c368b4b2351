package backoffice

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/enums"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

// wireMobileMoney is how the back office stores mobile money payments.
const wireMobileMoney = "mpesa"

func wirePaymentMethod(pm enums.PaymentMethod) string {
	if pm == enums.PaymentMethodMobileMoney {
		return wireMobileMoney
	}
	return string(pm)
}

type saleItemWire struct {
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	UnitPrice   money.Cents  `json:"unit_price"`
	TotalPrice  *money.Cents `json:"total_price"`
}

type saleWire struct {
	ID               int64           `json:"id"`
	ReceiptNumber    string          `json:"receipt_number"`
	CustomerName     *string         `json:"customer_name"`
	Customer         *sales.Customer `json:"customer"`
	Employee         *sales.Employee `json:"employee"`
	EmployeeName     string          `json:"employee_name"`
	PaymentMethod    *string         `json:"payment_method"`
	PaymentReference *string         `json:"payment_reference"`
	Subtotal         money.Cents     `json:"subtotal"`
	TaxAmount        money.Cents     `json:"tax_amount"`
	DiscountAmount   money.Cents     `json:"discount_amount"`
	TotalAmount      money.Cents     `json:"total_amount"`
	Total            money.Cents     `json:"total"`
	Status           string          `json:"status"`
	SaleDate         sales.Timestamp `json:"sale_date"`
	ItemsCount       int             `json:"items_count"`
	Items            []saleItemWire  `json:"items"`
}

func (w saleWire) toSale() sales.Sale {
	sale := sales.Sale{
		ID:             w.ID,
		ReceiptNumber:  w.ReceiptNumber,
		Customer:       w.Customer,
		Employee:       w.Employee,
		EmployeeName:   w.EmployeeName,
		Subtotal:       w.Subtotal,
		TaxAmount:      w.TaxAmount,
		DiscountAmount: w.DiscountAmount,
		TotalAmount:    w.TotalAmount,
		Status:         enums.SaleStatusCompleted,
		SaleDate:       w.SaleDate,
		ItemsCount:     w.ItemsCount,
	}
	if sale.TotalAmount == 0 {
		sale.TotalAmount = w.Total
	}
	if w.CustomerName != nil {
		sale.CustomerName = *w.CustomerName
	}
	if w.PaymentReference != nil {
		sale.PaymentReference = *w.PaymentReference
	}
	if w.PaymentMethod != nil {
		if pm, err := enums.ParsePaymentMethod(*w.PaymentMethod); err == nil {
			sale.PaymentMethod = pm
		} else {
			sale.PaymentMethod = enums.PaymentMethod(*w.PaymentMethod)
		}
	}
	if status, err := enums.ParseSaleStatus(w.Status); err == nil {
		sale.Status = status
	}
	if w.Employee != nil && w.Employee.ID == 0 && w.Employee.Name == "" {
		sale.Employee = nil
	}
	if len(w.Items) > 0 {
		sale.Items = make([]sales.Item, 0, len(w.Items))
		for _, item := range w.Items {
			sale.Items = append(sale.Items, sales.Item{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TotalPrice:  item.TotalPrice,
			})
		}
		if sale.ItemsCount == 0 {
			sale.ItemsCount = len(sale.Items)
		}
	}
	return sale
}

type saleItemRequestWire struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     money.Cents `json:"price"`
	UnitPrice money.Cents `json:"unit_price"`
}

// saleRequestWire carries both the register's field names and the older
// *_amount names the back office validates against.
type saleRequestWire struct {
	CustomerName   string                `json:"customer_name"`
	CustomerPhone  *string               `json:"customer_phone"`
	CustomerEmail  *string               `json:"customer_email"`
	PaymentMethod  string                `json:"payment_method"`
	EmployeeID     int64                 `json:"employee_id,omitempty"`
	Items          []saleItemRequestWire `json:"items"`
	Subtotal       money.Cents           `json:"subtotal"`
	Tax            money.Cents           `json:"tax"`
	TaxAmount      money.Cents           `json:"tax_amount"`
	Total          money.Cents           `json:"total"`
	TotalAmount    money.Cents           `json:"total_amount"`
	IdempotencyKey string                `json:"idempotency_key,omitempty"`
}

func newSaleRequestWire(req sales.Request, key string) saleRequestWire {
	items := make([]saleItemRequestWire, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, saleItemRequestWire{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			UnitPrice: item.Price,
		})
	}
	return saleRequestWire{
		CustomerName:   req.CustomerName,
		CustomerPhone:  optional(req.CustomerPhone),
		CustomerEmail:  optional(req.CustomerEmail),
		PaymentMethod:  wirePaymentMethod(req.PaymentMethod),
		EmployeeID:     req.EmployeeID,
		Items:          items,
		Subtotal:       req.Subtotal,
		Tax:            req.Tax,
		TaxAmount:      req.Tax,
		Total:          req.Total,
		TotalAmount:    req.Total,
		IdempotencyKey: key,
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// CreateSale implements checkout.SaleCreator over POST /sales. It is sent
// exactly once; an empty key omits the Idempotency-Key header.
func (c *Client) CreateSale(ctx context.Context, sess auth.Session, req sales.Request, idempotencyKey string) (sales.Sale, error) {
	if len(req.Items) == 0 {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeValidation, "sale must have at least one item")
	}

	var raw json.RawMessage
	if err := c.post(ctx, sess, "POST /sales", "/sales", newSaleRequestWire(req, idempotencyKey), idempotencyKey, &raw); err != nil {
		return sales.Sale{}, err
	}

	var envelope struct {
		Sale *saleWire `json:"sale"`
	}
	if err := decode(raw, &envelope); err != nil {
		return sales.Sale{}, err
	}
	if envelope.Sale == nil {
		var direct saleWire
		if err := decode(raw, &direct); err != nil {
			return sales.Sale{}, err
		}
		envelope.Sale = &direct
	}
	if envelope.Sale.ID == 0 {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeDependency, "back office returned no sale")
	}

	sale := envelope.Sale.toSale()
	if sale.CustomerName == "" {
		sale.CustomerName = req.CustomerName
	}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = req.PaymentMethod
	}
	if len(sale.Items) == 0 {
		sale.Items = itemsFromRequest(req)
	}
	return sale, nil
}

// itemsFromRequest fills receipt lines when the create response omits them.
// Names are unknown here and left for the caller to enrich.
func itemsFromRequest(req sales.Request) []sales.Item {
	items := make([]sales.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, sales.Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}
	return items
}

// Sale fetches one sale with items over GET /sales/:id.
func (c *Client) Sale(ctx context.Context, sess auth.Session, id int64) (sales.Sale, error) {
	if id <= 0 {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeValidation, "sale id must be positive")
	}
	var out saleWire
	if err := c.get(ctx, sess, "GET /sales/:id", "/sales/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return sales.Sale{}, err
	}
	return out.toSale(), nil
}

// ListSales pages through GET /sales.
func (c *Client) ListSales(ctx context.Context, sess auth.Session, filter sales.Filter) (sales.Page, error) {
	filter = filter.Normalize()
	params := url.Values{}
	params.Set("page", strconv.Itoa(filter.Page))
	params.Set("per_page", strconv.Itoa(filter.PerPage))
	if filter.Search != "" {
		params.Set("search", filter.Search)
	}
	if filter.PaymentMethod != "" {
		params.Set("payment_method", wirePaymentMethod(filter.PaymentMethod))
	}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}
	if from := filter.DateFrom(); from != "" {
		params.Set("date_from", from)
	}
	if to := filter.DateTo(); to != "" {
		params.Set("date_to", to)
	}

	var out struct {
		Data       []saleWire     `json:"data"`
		Sales      []saleWire     `json:"sales"`
		Pagination paginationWire `json:"pagination"`
	}
	if err := c.get(ctx, sess, "GET /sales", "/sales", params, &out); err != nil {
		return sales.Page{}, err
	}
	rows := out.Data
	if len(rows) == 0 {
		rows = out.Sales
	}
	page := sales.Page{
		Sales: make([]sales.Sale, 0, len(rows)),
		Page:  out.Pagination.Page,
		Pages: out.Pagination.Pages,
		Total: out.Pagination.Total,
	}
	if page.Page < 1 {
		page.Page = filter.Page
	}
	for _, row := range rows {
		page.Sales = append(page.Sales, row.toSale())
	}
	return page, nil
}

// SaleByReceiptNumber resolves a printed receipt number through the sales
// search and then loads the full sale.
func (c *Client) SaleByReceiptNumber(ctx context.Context, sess auth.Session, number string) (sales.Sale, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required")
	}
	page, err := c.ListSales(ctx, sess, sales.Filter{Search: number, PerPage: 10})
	if err != nil {
		return sales.Sale{}, err
	}
	for _, sale := range page.Sales {
		if strings.EqualFold(sale.ReceiptNumber, number) {
			return c.Sale(ctx, sess, sale.ID)
		}
	}
	return sales.Sale{}, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
}
