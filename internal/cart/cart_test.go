package cart

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevault/register/internal/catalog"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/money"
)

var (
	jameson = catalog.Product{ID: 1, Name: "Jameson 750ml", Price: money.MustParse("3500")}
	tusker  = catalog.Product{ID: 2, Name: "Tusker Lager 500ml", Price: money.MustParse("260")}
	gilbeys = catalog.Product{ID: 3, Name: "Gilbeys Gin 750ml", Price: money.MustParse("1450.50")}
)

func TestAddItemIncrementsExistingLine(t *testing.T) {
	c := New(DefaultTaxRate)

	_, err := c.AddItem(jameson)
	require.NoError(t, err)
	line, err := c.AddItem(jameson)
	require.NoError(t, err)

	assert.Equal(t, 2, line.Quantity)
	assert.Len(t, c.Lines(), 1)
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	c := New(DefaultTaxRate)
	_, err := c.AddItem(jameson)
	require.NoError(t, err)

	repriced := jameson
	repriced.Price = money.MustParse("3900")
	_, err = c.AddItem(repriced)
	require.NoError(t, err)

	line, ok := c.Line(jameson.ID)
	require.True(t, ok)
	assert.Equal(t, money.MustParse("3500"), line.UnitPrice)
}

func TestAddItemValidates(t *testing.T) {
	c := New(DefaultTaxRate)
	_, err := c.AddItem(catalog.Product{Name: "no id"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = c.AddItem(catalog.Product{ID: 9, Price: -1})
	require.Error(t, err)
	assert.True(t, c.IsEmpty())
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	c := New(DefaultTaxRate)
	_, _ = c.AddItem(jameson)
	_, _ = c.AddItem(tusker)
	_, _ = c.AddItem(gilbeys)

	assert.True(t, c.SetQuantity(tusker.ID, 0))
	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, jameson.ID, lines[0].ProductID)
	assert.Equal(t, gilbeys.ID, lines[1].ProductID)

	assert.True(t, c.SetQuantity(gilbeys.ID, 4))
	line, _ := c.Line(gilbeys.ID)
	assert.Equal(t, 4, line.Quantity)

	assert.False(t, c.SetQuantity(99, 3), "unknown product is a no-op")
	assert.True(t, c.SetQuantity(jameson.ID, -2))
	assert.Len(t, c.Lines(), 1)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	c := New(DefaultTaxRate)
	_, _ = c.AddItem(jameson)
	c.RemoveItem(jameson.ID)
	c.RemoveItem(jameson.ID)
	assert.True(t, c.IsEmpty())

	_, _ = c.AddItem(tusker)
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestClearResetsCustomer(t *testing.T) {
	c := New(DefaultTaxRate)
	_, _ = c.AddItem(jameson)
	c.SetCustomer(CustomerInfo{Name: " Amina ", Phone: "0712345678"})
	assert.Equal(t, "Amina", c.Customer().Name)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Equal(t, CustomerInfo{}, c.Customer())
	assert.Equal(t, "Walk-in Customer", c.Customer().OrWalkIn().Name)
}

func TestTotalsMatchReferenceScenario(t *testing.T) {
	c := New(DefaultTaxRate)
	for i := 0; i < 2; i++ {
		_, _ = c.AddItem(jameson)
	}
	for i := 0; i < 20; i++ {
		_, _ = c.AddItem(tusker)
	}

	totals := c.Totals()
	assert.Equal(t, money.MustParse("12200"), totals.Subtotal)
	assert.Equal(t, money.MustParse("1952"), totals.Tax)
	assert.Equal(t, money.MustParse("14152"), totals.Total)
	assert.Equal(t, 2, totals.Lines)
	assert.Equal(t, 22, totals.Units)
	assert.Equal(t, "KSh 14,152.00", totals.Total.Format("KSh"))
}

func TestTotalsInvariantUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	products := []catalog.Product{jameson, tusker, gilbeys, {ID: 4, Name: "Mini", Price: 315}}
	c := New(DefaultTaxRate)

	for step := 0; step < 500; step++ {
		p := products[rng.Intn(len(products))]
		switch rng.Intn(3) {
		case 0:
			_, _ = c.AddItem(p)
		case 1:
			c.SetQuantity(p.ID, rng.Intn(6)-1)
		case 2:
			c.RemoveItem(p.ID)
		}

		var want money.Cents
		seen := map[int64]bool{}
		for _, l := range c.Lines() {
			require.False(t, seen[l.ProductID], "one line per product")
			seen[l.ProductID] = true
			require.Positive(t, l.Quantity)
			want += l.UnitPrice.Mul(l.Quantity)
		}
		totals := c.Totals()
		require.Equal(t, want, totals.Subtotal)
		wantTotal := money.FromDecimal(want.Decimal().Mul(decimal.RequireFromString("1.16")))
		require.InDelta(t, int64(wantTotal), int64(totals.Total), 1)
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	c := New(DefaultTaxRate)
	_, _ = c.AddItem(jameson)
	first := c.Fingerprint()
	assert.Equal(t, first, c.Fingerprint())

	_, _ = c.AddItem(jameson)
	second := c.Fingerprint()
	assert.NotEqual(t, first, second)

	c.SetCustomer(CustomerInfo{Name: "Amina"})
	assert.NotEqual(t, second, c.Fingerprint())
}

func TestSnapshotIsDetached(t *testing.T) {
	c := New(DefaultTaxRate)
	_, _ = c.AddItem(jameson)
	snap := c.Snapshot()
	snap.Lines[0].Quantity = 50
	line, _ := c.Line(jameson.ID)
	assert.Equal(t, 1, line.Quantity)
}
