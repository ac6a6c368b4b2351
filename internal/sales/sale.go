// Package sales holds the sale records exchanged with the back office.
package sales

import (
	"github.com/thevault/register/pkg/enums"
	"github.com/thevault/register/pkg/money"
)

// WalkInCustomer is recorded when the cashier leaves the customer name blank.
const WalkInCustomer = "Walk-in Customer"

// Employee identifies the cashier who rang up a sale.
type Employee struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Customer is the optional customer record linked to a sale.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Item is one line of a recorded sale. TotalPrice is nil when the back office
// did not compute a line total.
type Item struct {
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	UnitPrice   money.Cents  `json:"unit_price"`
	TotalPrice  *money.Cents `json:"total_price,omitempty"`
}

// LineTotal is the server line total when present, else unit price times quantity.
func (i Item) LineTotal() money.Cents {
	if i.TotalPrice != nil {
		return *i.TotalPrice
	}
	return i.UnitPrice.Mul(i.Quantity)
}

// Sale is a completed transaction as recorded by the back office.
type Sale struct {
	ID               int64               `json:"id"`
	ReceiptNumber    string              `json:"receipt_number,omitempty"`
	CustomerName     string              `json:"customer_name,omitempty"`
	Customer         *Customer           `json:"customer,omitempty"`
	Employee         *Employee           `json:"employee,omitempty"`
	EmployeeName     string              `json:"employee_name,omitempty"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	Subtotal         money.Cents         `json:"subtotal,omitempty"`
	TaxAmount        money.Cents         `json:"tax_amount"`
	DiscountAmount   money.Cents         `json:"discount_amount"`
	TotalAmount      money.Cents         `json:"total_amount"`
	Status           enums.SaleStatus    `json:"status,omitempty"`
	SaleDate         Timestamp           `json:"sale_date"`
	ItemsCount       int                 `json:"items_count,omitempty"`
	Items            []Item              `json:"items,omitempty"`
}

// Reference is the identifier printed on receipts: the receipt number when
// assigned, otherwise the numeric id.
func (s Sale) Reference() string {
	if s.ReceiptNumber != "" {
		return s.ReceiptNumber
	}
	return formatID(s.ID)
}

// CustomerDisplayName falls back to the walk-in sentinel.
func (s Sale) CustomerDisplayName() string {
	if s.CustomerName != "" {
		return s.CustomerName
	}
	if s.Customer != nil && s.Customer.Name != "" {
		return s.Customer.Name
	}
	return WalkInCustomer
}

// CashierName resolves the employee name from either response shape.
func (s Sale) CashierName() string {
	if s.Employee != nil && s.Employee.Name != "" {
		return s.Employee.Name
	}
	return s.EmployeeName
}

// RequestItem is one cart line submitted for recording.
type RequestItem struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     money.Cents `json:"price"`
}

// Request is the POST /sales payload. Subtotal, Tax and Total are the client's
// prediction; the back office recomputes them and its values win.
type Request struct {
	CustomerName   string              `json:"customer_name"`
	CustomerPhone  string              `json:"customer_phone,omitempty"`
	CustomerEmail  string              `json:"customer_email,omitempty"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	EmployeeID     int64               `json:"employee_id,omitempty"`
	Items          []RequestItem       `json:"items"`
	Subtotal       money.Cents         `json:"subtotal"`
	Tax            money.Cents         `json:"tax"`
	Total          money.Cents         `json:"total"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}
