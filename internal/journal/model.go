// Package journal keeps a local copy of every sale this register completed so
// receipts can be reprinted while the back office is unreachable.
package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/thevault/register/pkg/money"
)

// Entry is one completed sale as recorded by the register.
type Entry struct {
	ID                  uuid.UUID   `gorm:"type:varchar(36);primaryKey" json:"id"`
	RegisterID          string      `gorm:"column:register_id;not null" json:"register_id"`
	SaleID              int64       `gorm:"column:sale_id;not null" json:"sale_id"`
	ReceiptNumber       string      `gorm:"column:receipt_number" json:"receipt_number"`
	EmployeeID          int64       `gorm:"column:employee_id" json:"employee_id"`
	PaymentMethod       string      `gorm:"column:payment_method;not null" json:"payment_method"`
	SubtotalCents       money.Cents `gorm:"column:subtotal_cents" json:"subtotal"`
	TaxCents            money.Cents `gorm:"column:tax_cents" json:"tax"`
	DiscountCents       money.Cents `gorm:"column:discount_cents" json:"discount"`
	TotalCents          money.Cents `gorm:"column:total_cents;not null" json:"total"`
	PredictedTotalCents money.Cents `gorm:"column:predicted_total_cents;not null" json:"predicted_total"`
	IdempotencyKey      string      `gorm:"column:idempotency_key" json:"idempotency_key,omitempty"`
	SaleJSON            string      `gorm:"column:sale_json;not null" json:"-"`
	CreatedAt           time.Time   `gorm:"column:created_at;not null" json:"created_at"`
	Lines               []Line      `gorm:"foreignKey:EntryID;references:ID" json:"lines"`
}

func (Entry) TableName() string { return "journal_entries" }

// Drifted reports whether the back office settled on a different total than
// the register predicted.
func (e Entry) Drifted() bool {
	return e.TotalCents != e.PredictedTotalCents
}

type Line struct {
	EntryID        uuid.UUID   `gorm:"type:varchar(36);primaryKey" json:"-"`
	LineNo         int         `gorm:"column:line_no;primaryKey" json:"line_no"`
	ProductID      int64       `gorm:"column:product_id;not null" json:"product_id"`
	ProductName    string      `gorm:"column:product_name" json:"product_name"`
	Quantity       int         `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents money.Cents `gorm:"column:unit_price_cents;not null" json:"unit_price"`
	LineTotalCents money.Cents `gorm:"column:line_total_cents;not null" json:"line_total"`
}

func (Line) TableName() string { return "journal_lines" }
