package backoffice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/config"
	"github.com/thevault/register/pkg/enums"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

var cashier = auth.Session{Token: "tok-123", EmployeeID: 7, ExpiresAt: time.Now().Add(time.Hour)}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.BackofficeConfig{BaseURL: srv.URL + "/api/"}, opts...)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSearchSendsFiltersAndMapsProducts(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "whiskey", q.Get("search"))
		assert.Equal(t, "Spirits", q.Get("category"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "30", q.Get("per_page"))
		assert.Equal(t, "true", q.Get("active_only"))
		writeJSON(w, http.StatusOK, map[string]any{
			"products": []map[string]any{
				{"id": 1, "name": "Jameson 750ml", "category": "Spirits", "price": 3500.0, "stock": 4, "min_stock_level": 10, "is_active": true},
				{"id": 2, "name": "Retired", "category": "Spirits", "price": "99.50", "is_active": false},
			},
			"pagination": map[string]any{"page": 2, "pages": 3, "total": 61},
		})
	}))

	page, err := client.Search(context.Background(), cashier, catalog.Query{Text: " whiskey ", Category: "Spirits", Page: 2, PageSize: 30})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, money.MustParse("3500"), page.Items[0].Price)
	assert.Equal(t, catalog.StockLowStock, page.Items[0].StockStatus())
	assert.Equal(t, 3, page.PageCount)
	assert.Equal(t, 61, page.TotalCount)
	assert.Equal(t, 2, page.Page)
}

func TestSearchAllCategoriesOmitsFilter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, has := r.URL.Query()["category"]
		assert.False(t, has)
		writeJSON(w, http.StatusOK, map[string]any{"products": []any{}, "pagination": map[string]any{}})
	}))
	page, err := client.Search(context.Background(), cashier, catalog.Query{Category: "All", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}

func TestCategoriesSkipsInactive(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("active_only"))
		writeJSON(w, http.StatusOK, map[string]any{"categories": []map[string]any{
			{"id": 1, "name": "Beer", "is_active": true},
			{"id": 2, "name": "Old", "is_active": false},
			{"id": 3, "name": "Wine"},
		}})
	}))
	cats, err := client.Categories(context.Background(), cashier)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Category{{ID: 1, Name: "Beer"}, {ID: 3, Name: "Wine"}}, cats)
}

func saleRequest() sales.Request {
	return sales.Request{
		CustomerName:  sales.WalkInCustomer,
		PaymentMethod: enums.PaymentMethodMobileMoney,
		EmployeeID:    7,
		Items: []sales.RequestItem{
			{ProductID: 1, Quantity: 2, Price: money.MustParse("4500")},
			{ProductID: 2, Quantity: 1, Price: money.MustParse("3200")},
		},
		Subtotal:       money.MustParse("12200"),
		Tax:            money.MustParse("1952"),
		Total:          money.MustParse("14152"),
		IdempotencyKey: "key-1",
	}
}

func TestCreateSaleSendsWireBodyAndKey(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "mpesa", body["payment_method"])
		assert.Equal(t, 14152.0, body["total"])
		assert.Equal(t, 14152.0, body["total_amount"])
		assert.Equal(t, 1952.0, body["tax_amount"])
		assert.Nil(t, body["customer_phone"])
		items := body["items"].([]any)
		assert.Equal(t, 4500.0, items[0].(map[string]any)["unit_price"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Sale created successfully",
			"sale": map[string]any{
				"id": 501, "receipt_number": "RCP20250101120000", "total_amount": 14152.0,
				"customer_name": nil, "employee_name": "Wanjiru", "payment_method": "mpesa",
				"sale_date": "2025-01-01T12:00:00", "items_count": 2,
			},
		})
	}))

	sale, err := client.CreateSale(context.Background(), cashier, saleRequest(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(501), sale.ID)
	assert.Equal(t, enums.PaymentMethodMobileMoney, sale.PaymentMethod)
	assert.Equal(t, money.MustParse("14152"), sale.TotalAmount)
	assert.Zero(t, sale.Subtotal, "the advisory subtotal is never recorded as the server's figure")
	assert.Equal(t, sales.WalkInCustomer, sale.CustomerName)
	assert.Equal(t, "Wanjiru", sale.CashierName())
	assert.Equal(t, enums.SaleStatusCompleted, sale.Status)
	assert.Equal(t, 2025, sale.SaleDate.Year())
	assert.Len(t, sale.Items, 2)
}

func TestCreateSaleWithoutKeyOmitsHeader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, has := r.Header["Idempotency-Key"]
		assert.False(t, has)
		writeJSON(w, http.StatusCreated, map[string]any{"sale": map[string]any{"id": 9}})
	}))
	req := saleRequest()
	req.IdempotencyKey = ""
	_, err := client.CreateSale(context.Background(), cashier, req, "")
	require.NoError(t, err)
}

func TestStatusErrorsMapToCodes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    any
		code    pkgerrors.Code
		message string
	}{
		{"rejection verbatim", http.StatusBadRequest, map[string]any{"error": "Insufficient stock for product Tusker. Available: 3, Requested: 20"}, pkgerrors.CodeUpstream, "Insufficient stock for product Tusker. Available: 3, Requested: 20"},
		{"expired token", http.StatusUnauthorized, map[string]any{"msg": "Token has expired"}, pkgerrors.CodeUnauthorized, "session expired"},
		{"forbidden", http.StatusForbidden, map[string]any{"error": "Access denied"}, pkgerrors.CodeForbidden, "Access denied"},
		{"server failure", http.StatusInternalServerError, map[string]any{"error": "database is locked"}, pkgerrors.CodeDependency, "database is locked"},
		{"bare failure", http.StatusBadGateway, nil, pkgerrors.CodeDependency, "back office error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.body == nil {
					w.WriteHeader(tc.status)
					return
				}
				writeJSON(w, tc.status, tc.body)
			}))
			_, err := client.CreateSale(context.Background(), cashier, saleRequest(), "")
			typed := pkgerrors.As(err)
			require.NotNil(t, typed, "expected typed error, got %v", err)
			assert.Equal(t, tc.code, typed.Code())
			assert.Equal(t, tc.message, typed.Message())
		})
	}
}

func TestMissingTokenFailsLocally(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	_, err := client.Search(context.Background(), auth.Session{}, catalog.Query{Page: 1})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	_, err = client.CreateSale(context.Background(), auth.Session{}, saleRequest(), "")
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	assert.Zero(t, hits.Load())
}

func TestTimeoutIsDependencyError(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), WithHTTPClient(&http.Client{Timeout: 30 * time.Millisecond}))

	_, err := client.Sale(context.Background(), cashier, 3)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, "request timed out", typed.Message())
	assert.True(t, pkgerrors.Retryable(err))
}

func TestBreakerOpensOnReadsButNotWrites(t *testing.T) {
	var reads, writes atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writes.Add(1)
			writeJSON(w, http.StatusCreated, map[string]any{"sale": map[string]any{"id": 1}})
			return
		}
		reads.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "maintenance"})
	}), WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := client.Product(context.Background(), cashier, 1)
		assert.Equal(t, "maintenance", pkgerrors.As(err).Message())
	}
	_, err := client.Product(context.Background(), cashier, 1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, "back office unavailable", typed.Message())
	assert.Equal(t, int32(2), reads.Load(), "open breaker fails fast")

	_, err = client.CreateSale(context.Background(), cashier, saleRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), writes.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Product not found"})
	}), WithBreaker(1, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := client.Product(context.Background(), cashier, 44)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestListSalesSendsFilterAndDecodesRows(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "mpesa", q.Get("payment_method"))
		assert.Equal(t, "2025-03-01", q.Get("date_from"))
		assert.Equal(t, "completed", q.Get("status"))
		assert.Equal(t, "20", q.Get("per_page"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": []map[string]any{{
				"id": 12, "receipt_number": "RCP1", "total": 580.0, "total_amount": 580.0,
				"payment_method": "mpesa", "status": "completed", "sale_date": "2025-03-02T09:30:00",
				"employee": map[string]any{"id": 7, "name": "Wanjiru"},
				"items": []map[string]any{{"product_id": 2, "product_name": "Tusker", "quantity": 2, "unit_price": 290.0, "total_price": 580.0}},
			}},
			"pagination": map[string]any{"page": 1, "pages": 1, "total": 1},
		})
	}))

	from, err := sales.ParseDate("2025-03-01")
	require.NoError(t, err)
	page, err := client.ListSales(context.Background(), cashier, sales.Filter{
		PaymentMethod: enums.PaymentMethodMobileMoney,
		Status:        enums.SaleStatusCompleted,
		From:          from,
	})
	require.NoError(t, err)
	require.Len(t, page.Sales, 1)
	sale := page.Sales[0]
	assert.Equal(t, enums.PaymentMethodMobileMoney, sale.PaymentMethod)
	assert.Equal(t, "Wanjiru", sale.CashierName())
	assert.Equal(t, 1, sale.ItemsCount)
	assert.Equal(t, money.MustParse("580"), sale.Items[0].LineTotal())
}

func TestSaleByReceiptNumberNeedsExactMatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sales":
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": 1, "receipt_number": "RCP100-1"},
				{"id": 2, "receipt_number": "RCP100"},
			}})
		case "/api/sales/2":
			writeJSON(w, http.StatusOK, map[string]any{"id": 2, "receipt_number": "RCP100", "total_amount": 10})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	sale, err := client.SaleByReceiptNumber(context.Background(), cashier, "rcp100")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sale.ID)

	_, err = client.SaleByReceiptNumber(context.Background(), cashier, "RCP999")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
