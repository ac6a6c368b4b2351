package receipt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/enums"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

type failingEncoder struct{}

func (failingEncoder) Encode(string, int) ([]byte, error) {
	return nil, errors.New("data too long")
}

func cents(v string) money.Cents { return money.MustParse(v) }

func centsPtr(v string) *money.Cents {
	c := cents(v)
	return &c
}

func completedSale() sales.Sale {
	ts, _ := sales.ParseTimestamp("2025-06-01T18:45:00")
	return sales.Sale{
		ID:            501,
		ReceiptNumber: "RCP20250601184500",
		Employee:      &sales.Employee{ID: 4, Name: "Wanjiru"},
		PaymentMethod: enums.PaymentMethodCash,
		TaxAmount:     cents("1952"),
		TotalAmount:   cents("14152"),
		Status:        enums.SaleStatusCompleted,
		SaleDate:      ts,
		Items: []sales.Item{
			{ProductID: 1, ProductName: "Jameson 750ml", Quantity: 2, UnitPrice: cents("4500")},
			{ProductID: 2, ProductName: "Glenlivet 12", Quantity: 1, UnitPrice: cents("3200"), TotalPrice: centsPtr("3200")},
		},
	}
}

func newTestRenderer(enc QREncoder) *Renderer {
	return NewRenderer(RendererParams{
		TaxRate: decimal.RequireFromString("0.16"),
		BaseURL: "https://till.thevault.co.ke/",
		Encoder: enc,
	})
}

func TestRenderCompletedSale(t *testing.T) {
	rec := newTestRenderer(nil).Render(context.Background(), completedSale())

	require.Len(t, rec.Lines, 2)
	assert.Equal(t, cents("9000"), rec.Lines[0].Total)
	assert.Equal(t, "KSh 9,000.00", rec.Lines[0].TotalFmt)
	assert.Equal(t, cents("12200"), rec.Subtotal)
	assert.Equal(t, "KSh 1,952.00", rec.Display.Tax)
	assert.Equal(t, "KSh 14,152.00", rec.Display.Total)
	assert.Equal(t, "KSh 0.00", rec.Display.Discount)
	assert.Equal(t, "Tax (16%)", rec.TaxLabel)
	assert.Equal(t, "Wanjiru", rec.Cashier)
	assert.Equal(t, sales.WalkInCustomer, rec.Customer)
	assert.Equal(t, "Cash", rec.PaymentLabel)
	assert.Equal(t, "RCP20250601184500", rec.Reference)
	assert.Equal(t, "https://till.thevault.co.ke/pos/receipt/501", rec.ReferenceURL)
	assert.True(t, bytes.HasPrefix(rec.QRCode, []byte("\x89PNG")), "qr must be a png")
	assert.True(t, strings.HasPrefix(rec.QRDataURI(), "data:image/png;base64,"))
	assert.Empty(t, rec.QRError)
}

func TestRenderTakesTotalsFromSale(t *testing.T) {
	sale := completedSale()
	sale.DiscountAmount = cents("500")
	sale.TotalAmount = cents("13652")
	sale.Items[1].TotalPrice = centsPtr("3000")

	rec := newTestRenderer(nil).Render(context.Background(), sale)
	assert.Equal(t, cents("12000"), rec.Subtotal, "server line total wins over unit price times quantity")
	assert.Equal(t, cents("13652"), rec.Total)
	assert.Equal(t, cents("500"), rec.Discount)
}

func TestRenderFallsBackToSubtotalWithoutTotal(t *testing.T) {
	sale := completedSale()
	sale.TotalAmount = 0
	rec := newTestRenderer(nil).Render(context.Background(), sale)
	assert.Equal(t, rec.Subtotal, rec.Total)
}

func TestQRFailureDoesNotBlockReceipt(t *testing.T) {
	rec := newTestRenderer(failingEncoder{}).Render(context.Background(), completedSale())
	assert.Equal(t, "reference code unavailable", rec.QRError)
	assert.Empty(t, rec.QRCode)
	assert.Empty(t, rec.QRDataURI())
	assert.Equal(t, "KSh 14,152.00", rec.Display.Total)
	assert.Len(t, rec.Lines, 2)
}

func TestRenderDefaultsForSparseSale(t *testing.T) {
	sale := sales.Sale{
		ID:            9,
		PaymentMethod: enums.PaymentMethod("bank_transfer"),
		Items:         []sales.Item{{ProductID: 3, Quantity: 2, UnitPrice: cents("10")}},
	}
	rec := newTestRenderer(nil).Render(context.Background(), sale)
	assert.Equal(t, "Item", rec.Lines[0].Name)
	assert.Equal(t, "—", rec.Cashier)
	assert.Equal(t, "9", rec.Reference)
	assert.Equal(t, "Bank Transfer", rec.PaymentLabel)
}

func TestTextLayout(t *testing.T) {
	rec := newTestRenderer(nil).Render(context.Background(), completedSale())
	text := Text(rec)

	for _, want := range []string{"The Vault", "Receipt RCP20250601184500", "2025-06-01 18:45", "Jameson 750ml", "  2 x 4,500.00", "Paid by Cash"} {
		assert.Contains(t, text, want)
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), TextWidth, "line %q too wide", line)
	}
	assert.Contains(t, text, "TOTAL")
	assert.True(t, strings.Contains(text, "KSh 14,152.00\n"))
	assert.Equal(t, "receipt-RCP20250601184500.txt", Filename(rec, "txt"))
}

type stubLoader struct {
	sale sales.Sale
	err  error
}

func (s stubLoader) Sale(context.Context, auth.Session, int64) (sales.Sale, error) {
	return s.sale, s.err
}

func (s stubLoader) SaleByReceiptNumber(context.Context, auth.Session, string) (sales.Sale, error) {
	return s.sale, s.err
}

type stubArchive map[int64]sales.Sale

func (a stubArchive) SaleSnapshot(_ context.Context, id int64) (sales.Sale, error) {
	sale, ok := a[id]
	if !ok {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeNotFound, "sale not in journal")
	}
	return sale, nil
}

func TestServiceFallsBackToArchiveWhenUnreachable(t *testing.T) {
	unreachable := pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "back office unreachable")
	archive := stubArchive{501: completedSale()}
	svc := NewService(stubLoader{err: unreachable}, archive, newTestRenderer(nil), nil)
	sess := auth.Session{Token: "t"}

	rec, err := svc.ForSale(context.Background(), sess, 501)
	require.NoError(t, err)
	assert.Equal(t, "KSh 14,152.00", rec.Display.Total)

	_, err = svc.ForSale(context.Background(), sess, 777)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err), "archive miss surfaces the original failure")
}

func TestServiceDoesNotMaskRejections(t *testing.T) {
	archive := stubArchive{501: completedSale()}
	svc := NewService(stubLoader{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")}, archive, nil, nil)
	_, err := svc.ForSale(context.Background(), auth.Session{Token: "t"}, 501)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, err = svc.ForSale(context.Background(), auth.Session{Token: "t"}, 0)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestServiceByReceiptNumber(t *testing.T) {
	svc := NewService(stubLoader{sale: completedSale()}, nil, newTestRenderer(nil), nil)
	rec, err := svc.ForReceiptNumber(context.Background(), auth.Session{Token: "t"}, "RCP20250601184500")
	require.NoError(t, err)
	assert.Equal(t, int64(501), rec.SaleID)
}
