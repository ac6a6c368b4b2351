package register

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevault/register/internal/cart"
	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

type fakeBackoffice struct {
	mu       sync.Mutex
	searches int
	release  chan struct{}
}

func (f *fakeBackoffice) Search(context.Context, auth.Session, catalog.Query) (catalog.Page, error) {
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	return catalog.Page{Items: []catalog.Product{{ID: 1, Name: "Jameson 750ml", Price: 3500, Active: true}}, Page: 1, PageCount: 1, TotalCount: 1}, nil
}

func (f *fakeBackoffice) CreateSale(_ context.Context, _ auth.Session, req sales.Request, _ string) (sales.Sale, error) {
	if f.release != nil {
		<-f.release
	}
	return sales.Sale{ID: 501, PaymentMethod: req.PaymentMethod, TotalAmount: req.Total}, nil
}

func (f *fakeBackoffice) ListSales(context.Context, auth.Session, sales.Filter) (sales.Page, error) {
	return sales.Page{}, nil
}

func (f *fakeBackoffice) Sale(_ context.Context, _ auth.Session, id int64) (sales.Sale, error) {
	return sales.Sale{ID: id}, nil
}

func (f *fakeBackoffice) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var sess = auth.Session{Token: "t", EmployeeID: 3}

func newManager(t *testing.T, bo *fakeBackoffice, clk *clock, observers ...checkout.Observer) *Manager {
	t.Helper()
	m, err := NewManager(Params{
		Backoffice: bo,
		TaxRate:    cart.DefaultTaxRate,
		Observers:  observers,
		Now:        clk.now,
	})
	require.NoError(t, err)
	return m
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("till-01_A"))
	for _, bad := range []string{"", "till 1", "till/1", string(make([]byte, 65))} {
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(ValidateID(bad)), bad)
	}
}

func TestGetReusesSessionPerRegister(t *testing.T) {
	clk := &clock{t: time.Now()}
	m := newManager(t, &fakeBackoffice{}, clk)

	a, err := m.Get("till-1")
	require.NoError(t, err)
	b, err := m.Get("till-1")
	require.NoError(t, err)
	c, err := m.Get("till-2")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, m.Len())

	_, err = m.Get("bad id")
	assert.Error(t, err)

	require.NoError(t, m.Close("till-1"))
	assert.Equal(t, 1, m.Len())
	d, err := m.Get("till-1")
	require.NoError(t, err)
	assert.NotSame(t, a, d)
	d.Checkout.Read(func(c *cart.Cart) { assert.True(t, c.IsEmpty()) })
}

func TestSaleNotifiesSessionObservers(t *testing.T) {
	clk := &clock{t: time.Now()}
	bo := &fakeBackoffice{}
	var journaled []int64
	m := newManager(t, bo, clk, checkout.ObserverFunc(func(_ context.Context, _ auth.Session, c checkout.Completion) {
		journaled = append(journaled, c.Sale.ID)
		assert.Equal(t, "till-1", c.RegisterID)
	}))

	s, err := m.Get("till-1")
	require.NoError(t, err)
	_, err = s.Checkout.Mutate(func(c *cart.Cart) error {
		_, err := c.AddItem(catalog.Product{ID: 1, Name: "Jameson 750ml", Price: 3500})
		return err
	})
	require.NoError(t, err)
	_, err = s.Checkout.Open()
	require.NoError(t, err)

	view, err := s.Checkout.Submit(context.Background(), sess, "cash")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(4060), view.LastSale.TotalAmount)
	s.WaitRefresh()

	assert.Equal(t, []int64{501}, journaled)
	assert.Equal(t, int64(501), s.History.View().SelectedID)
	assert.Equal(t, 1, bo.searchCount(), "catalog refreshed after the sale")
}

func TestReapIdleSkipsBusyAndRecentSessions(t *testing.T) {
	clk := &clock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	bo := &fakeBackoffice{release: make(chan struct{})}
	m := newManager(t, bo, clk)

	_, err := m.Get("idle")
	require.NoError(t, err)
	busy, err := m.Get("busy")
	require.NoError(t, err)
	_, err = busy.Checkout.Mutate(func(c *cart.Cart) error {
		_, err := c.AddItem(catalog.Product{ID: 1, Price: 100})
		return err
	})
	require.NoError(t, err)
	_, err = busy.Checkout.Open()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = busy.Checkout.Submit(context.Background(), sess, "card")
	}()
	require.Eventually(t, busy.Checkout.Busy, time.Second, 5*time.Millisecond)

	clk.advance(13 * time.Hour)
	_, err = m.Get("fresh")
	require.NoError(t, err)

	reaped, err := m.ReapIdle(context.Background(), 12*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, reaped)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(m.Close("busy")))

	close(bo.release)
	<-done
	busy.WaitRefresh()
	reaped, err = m.ReapIdle(context.Background(), 12*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"busy"}, reaped)

	_, err = m.ReapIdle(context.Background(), 0)
	assert.Error(t, err)
}
