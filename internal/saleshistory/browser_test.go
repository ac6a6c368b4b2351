package saleshistory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/enums"
	pkgerrors "github.com/thevault/register/pkg/errors"
)

type listFunc func(ctx context.Context, sess auth.Session, f sales.Filter) (sales.Page, error)

func (fn listFunc) ListSales(ctx context.Context, sess auth.Session, f sales.Filter) (sales.Page, error) {
	return fn(ctx, sess, f)
}

type loadFunc func(ctx context.Context, sess auth.Session, id int64) (sales.Sale, error)

func (fn loadFunc) Sale(ctx context.Context, sess auth.Session, id int64) (sales.Sale, error) {
	return fn(ctx, sess, id)
}

var sess = auth.Session{Token: "t", EmployeeID: 2}

func sale(id int64, date string, method enums.PaymentMethod) sales.Sale {
	ts, err := sales.ParseTimestamp(date)
	if err != nil {
		panic(err)
	}
	return sales.Sale{ID: id, ReceiptNumber: "RCP" + date[:10], SaleDate: ts, PaymentMethod: method, Status: enums.SaleStatusCompleted}
}

func TestLoadFollowsNewestSale(t *testing.T) {
	var got sales.Filter
	b := NewBrowser(Params{
		PerPage: 10,
		Lister: listFunc(func(_ context.Context, _ auth.Session, f sales.Filter) (sales.Page, error) {
			got = f
			return sales.Page{Sales: []sales.Sale{
				sale(3, "2025-05-01T10:00:00", enums.PaymentMethodCash),
				sale(9, "2025-05-02T10:00:00", enums.PaymentMethodCard),
				sale(4, "2025-04-30T10:00:00", enums.PaymentMethodCash),
			}, Page: 1, Pages: 1, Total: 3}, nil
		}),
	})

	view := b.Load(context.Background(), sess, sales.Filter{Search: "  RCP "})
	assert.Equal(t, 10, got.PerPage)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, "RCP", got.Search)
	assert.Equal(t, ModeFollowLatest, view.Mode)
	assert.Equal(t, int64(9), view.SelectedID)
	assert.Len(t, view.Sales, 3)
	assert.False(t, view.Loading)
}

func TestManualSelectionSurvivesReload(t *testing.T) {
	b := NewBrowser(Params{Lister: listFunc(func(context.Context, auth.Session, sales.Filter) (sales.Page, error) {
		return sales.Page{Sales: []sales.Sale{sale(1, "2025-05-01T10:00:00", ""), sale(2, "2025-05-02T10:00:00", "")}}, nil
	})})

	b.Load(context.Background(), sess, sales.Filter{})
	view, err := b.Select(1)
	require.NoError(t, err)
	assert.Equal(t, ModeManual, view.Mode)

	view = b.Load(context.Background(), sess, sales.Filter{})
	assert.Equal(t, int64(1), view.SelectedID)

	view = b.FollowLatest()
	assert.Equal(t, ModeFollowLatest, view.Mode)
	assert.Equal(t, int64(2), view.SelectedID)

	_, err = b.Select(0)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestFailedLoadKeepsList(t *testing.T) {
	fail := false
	b := NewBrowser(Params{Lister: listFunc(func(context.Context, auth.Session, sales.Filter) (sales.Page, error) {
		if fail {
			return sales.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial"), "back office unreachable")
		}
		return sales.Page{Sales: []sales.Sale{sale(1, "2025-05-01T10:00:00", "")}, Total: 1}, nil
	})})

	b.Load(context.Background(), sess, sales.Filter{})
	fail = true
	view := b.Load(context.Background(), sess, sales.Filter{Page: 2})
	assert.Len(t, view.Sales, 1)
	assert.Equal(t, "back office unreachable", view.Error)
	assert.Equal(t, 2, view.Filter.Page)
}

func TestCompletedSaleJoinsFirstPage(t *testing.T) {
	b := NewBrowser(Params{PerPage: 2, Lister: listFunc(func(context.Context, auth.Session, sales.Filter) (sales.Page, error) {
		return sales.Page{Sales: []sales.Sale{sale(5, "2025-05-01T10:00:00", enums.PaymentMethodCash), sale(4, "2025-04-01T10:00:00", enums.PaymentMethodCash)}, Page: 1, Pages: 3, Total: 6}, nil
	})})
	b.Load(context.Background(), sess, sales.Filter{})

	fresh := sale(6, "2025-05-03T10:00:00", enums.PaymentMethodCash)
	fresh.Items = []sales.Item{{ProductID: 1, Quantity: 1}}
	b.SaleCompleted(context.Background(), sess, checkout.Completion{Sale: fresh})

	view := b.View()
	require.Len(t, view.Sales, 2)
	assert.Equal(t, int64(6), view.Sales[0].ID)
	assert.Equal(t, 7, view.Total)
	assert.Equal(t, int64(6), view.SelectedID)

	detail, err := b.Detail(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1, "detail comes from the completion without a fetch")

	b.SaleCompleted(context.Background(), sess, checkout.Completion{Sale: fresh})
	assert.Equal(t, 7, b.View().Total, "duplicates are ignored")
}

func TestCompletedSaleOutsideFilterIsIgnored(t *testing.T) {
	b := NewBrowser(Params{Lister: listFunc(func(context.Context, auth.Session, sales.Filter) (sales.Page, error) {
		return sales.Page{}, nil
	})})
	b.Load(context.Background(), sess, sales.Filter{PaymentMethod: enums.PaymentMethodCard})
	b.SaleCompleted(context.Background(), sess, checkout.Completion{Sale: sale(1, "2025-05-01T10:00:00", enums.PaymentMethodCash)})
	assert.Empty(t, b.View().Sales)
}

func TestDetailLoadsSelectedSaleOnce(t *testing.T) {
	calls := 0
	b := NewBrowser(Params{
		Lister: listFunc(func(context.Context, auth.Session, sales.Filter) (sales.Page, error) {
			return sales.Page{Sales: []sales.Sale{sale(8, "2025-05-01T10:00:00", "")}}, nil
		}),
		Loader: loadFunc(func(_ context.Context, _ auth.Session, id int64) (sales.Sale, error) {
			calls++
			s := sale(id, "2025-05-01T10:00:00", "")
			s.Items = []sales.Item{{ProductID: 1, ProductName: "Gilbeys", Quantity: 1}}
			return s, nil
		}),
	})

	_, err := b.Detail(context.Background(), sess)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	b.Load(context.Background(), sess, sales.Filter{})
	for i := 0; i < 2; i++ {
		detail, err := b.Detail(context.Background(), sess)
		require.NoError(t, err)
		assert.Equal(t, "Gilbeys", detail.Items[0].ProductName)
	}
	assert.Equal(t, 1, calls)
}

func TestMatchesDateBounds(t *testing.T) {
	from, _ := sales.ParseDate("2025-05-01")
	to, _ := sales.ParseDate("2025-05-01")
	f := sales.Filter{From: from, To: to}
	assert.True(t, matches(f, sale(1, "2025-05-01T23:00:00", "")))
	assert.False(t, matches(f, sale(1, "2025-05-02T01:00:00", "")))
	assert.False(t, matches(f, sale(1, "2025-04-30T23:00:00", "")))
}
