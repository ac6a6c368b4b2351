// Package receipt turns recorded sales into printable receipts.
package receipt

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
	"github.com/thevault/register/pkg/money"
)

const (
	DefaultStoreName = "The Vault"
	DefaultQRSize    = 160
	unnamedItem      = "Item"
	placeholder      = "—"
	receiptPath      = "/pos/receipt/"
)

// QREncoder renders content as a PNG QR code.
type QREncoder interface {
	Encode(content string, size int) ([]byte, error)
}

type qrEncoder struct{}

func (qrEncoder) Encode(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}

type Line struct {
	ProductID    int64       `json:"product_id"`
	Name         string      `json:"name"`
	Quantity     int         `json:"quantity"`
	UnitPrice    money.Cents `json:"unit_price"`
	Total        money.Cents `json:"total"`
	UnitPriceFmt string      `json:"unit_price_display"`
	TotalFmt     string      `json:"total_display"`
}

// Amounts holds the display strings of the totals block.
type Amounts struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

// Receipt is a fixed-format view of one sale. Tax, discount and the grand
// total come from the sale record as recorded; only the subtotal is summed here.
type Receipt struct {
	StoreName        string      `json:"store_name"`
	SaleID           int64       `json:"sale_id"`
	Reference        string      `json:"reference"`
	Date             time.Time   `json:"date"`
	Cashier          string      `json:"cashier"`
	Customer         string      `json:"customer"`
	PaymentMethod    string      `json:"payment_method"`
	PaymentLabel     string      `json:"payment_label"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	Lines            []Line      `json:"lines"`
	Subtotal         money.Cents `json:"subtotal"`
	Discount         money.Cents `json:"discount"`
	Tax              money.Cents `json:"tax"`
	TaxLabel         string      `json:"tax_label"`
	Total            money.Cents `json:"total"`
	Display          Amounts     `json:"display"`
	ReferenceURL     string      `json:"reference_url"`
	QRCode           []byte      `json:"-"`
	QRError          string      `json:"qr_error,omitempty"`
}

// QRDataURI returns the QR code as an inline PNG data URI, empty when the
// code could not be produced.
func (r Receipt) QRDataURI() string {
	if len(r.QRCode) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(r.QRCode)
}

type RendererParams struct {
	StoreName string
	Currency  string
	TaxRate   decimal.Decimal
	BaseURL   string
	QRSize    int
	Encoder   QREncoder
	Logger    *logger.Logger
	Metrics   *metrics.RegisterMetrics
}

type Renderer struct {
	storeName string
	currency  string
	taxLabel  string
	baseURL   string
	qrSize    int
	encoder   QREncoder
	logg      *logger.Logger
	metrics   *metrics.RegisterMetrics
}

func NewRenderer(params RendererParams) *Renderer {
	r := &Renderer{
		storeName: strings.TrimSpace(params.StoreName),
		currency:  strings.TrimSpace(params.Currency),
		baseURL:   strings.TrimRight(strings.TrimSpace(params.BaseURL), "/"),
		qrSize:    params.QRSize,
		encoder:   params.Encoder,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}
	if r.storeName == "" {
		r.storeName = DefaultStoreName
	}
	if r.currency == "" {
		r.currency = money.DefaultCurrency
	}
	if r.qrSize <= 0 {
		r.qrSize = DefaultQRSize
	}
	if r.encoder == nil {
		r.encoder = qrEncoder{}
	}
	r.taxLabel = "Tax"
	if params.TaxRate.IsPositive() {
		r.taxLabel = "Tax (" + params.TaxRate.Shift(2).String() + "%)"
	}
	return r
}

// Render projects sale into a Receipt. A QR failure is recorded on the
// receipt and never stops rendering.
func (r *Renderer) Render(ctx context.Context, sale sales.Sale) Receipt {
	lines := make([]Line, 0, len(sale.Items))
	totals := make([]money.Cents, 0, len(sale.Items))
	for _, item := range sale.Items {
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			name = unnamedItem
		}
		total := item.LineTotal()
		totals = append(totals, total)
		lines = append(lines, Line{
			ProductID:    item.ProductID,
			Name:         name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        total,
			UnitPriceFmt: item.UnitPrice.Format(r.currency),
			TotalFmt:     total.Format(r.currency),
		})
	}
	subtotal := money.Sum(totals...)
	grand := sale.TotalAmount
	if grand == 0 {
		grand = subtotal
	}

	cashier := sale.CashierName()
	if cashier == "" {
		cashier = placeholder
	}

	rec := Receipt{
		StoreName:        r.storeName,
		SaleID:           sale.ID,
		Reference:        sale.Reference(),
		Date:             sale.SaleDate.Time,
		Cashier:          cashier,
		Customer:         sale.CustomerDisplayName(),
		PaymentMethod:    string(sale.PaymentMethod),
		PaymentLabel:     paymentLabel(sale),
		PaymentReference: sale.PaymentReference,
		Lines:            lines,
		Subtotal:         subtotal,
		Discount:         sale.DiscountAmount,
		Tax:              sale.TaxAmount,
		TaxLabel:         r.taxLabel,
		Total:            grand,
		Display: Amounts{
			Subtotal: subtotal.Format(r.currency),
			Discount: sale.DiscountAmount.Format(r.currency),
			Tax:      sale.TaxAmount.Format(r.currency),
			Total:    grand.Format(r.currency),
		},
		ReferenceURL: r.ReferenceURL(sale.ID),
	}

	png, err := r.encoder.Encode(rec.ReferenceURL, r.qrSize)
	if err != nil {
		rec.QRError = "reference code unavailable"
		r.metrics.IncReceiptQR(metrics.OutcomeError)
		if r.logg != nil {
			r.logg.Warn(r.logg.WithSaleID(ctx, sale.ID), "receipt qr encode failed: "+err.Error())
		}
		return rec
	}
	rec.QRCode = png
	r.metrics.IncReceiptQR(metrics.OutcomeSuccess)
	return rec
}

// ReferenceURL is the address the receipt QR code points at.
func (r *Renderer) ReferenceURL(saleID int64) string {
	return r.baseURL + receiptPath + strconv.FormatInt(saleID, 10)
}

func paymentLabel(sale sales.Sale) string {
	if sale.PaymentMethod == "" {
		return placeholder
	}
	if label := sale.PaymentMethod.Label(); label != string(sale.PaymentMethod) {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(string(sale.PaymentMethod), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
