// Package saleshistory is the paginated, filterable view over recorded sales
// shown next to the till.
package saleshistory

import (
	"context"
	"strings"
	"sync"

	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

type Mode string

const (
	// ModeFollowLatest keeps the newest sale selected as pages load and sales complete.
	ModeFollowLatest Mode = "follow_latest"
	// ModeManual keeps the operator's selection.
	ModeManual Mode = "manual"
)

type Lister interface {
	ListSales(ctx context.Context, sess auth.Session, filter sales.Filter) (sales.Page, error)
}

type Loader interface {
	Sale(ctx context.Context, sess auth.Session, id int64) (sales.Sale, error)
}

type View struct {
	Filter     sales.Filter `json:"filter"`
	Sales      []sales.Sale `json:"sales"`
	Page       int          `json:"page"`
	Pages      int          `json:"pages"`
	Total      int          `json:"total"`
	Mode       Mode         `json:"mode"`
	SelectedID int64        `json:"selected_id,omitempty"`
	Loading    bool         `json:"loading"`
	Error      string       `json:"error,omitempty"`
}

type Params struct {
	Lister  Lister
	Loader  Loader
	Logger  *logger.Logger
	PerPage int
}

type Browser struct {
	lister  Lister
	loader  Loader
	logg    *logger.Logger
	perPage int

	mu       sync.Mutex
	filter   sales.Filter
	page     sales.Page
	mode     Mode
	selected int64
	detail   *sales.Sale
	issued   uint64
	applied  uint64
	lastErr  string
}

func NewBrowser(params Params) *Browser {
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = sales.DefaultPerPage
	}
	return &Browser{
		lister:  params.Lister,
		loader:  params.Loader,
		logg:    params.Logger,
		perPage: perPage,
		filter:  sales.Filter{Page: 1, PerPage: perPage},
		mode:    ModeFollowLatest,
	}
}

// Load fetches one page for filter. A failed load keeps the previous list
// and sets View.Error; responses to superseded loads are dropped.
func (b *Browser) Load(ctx context.Context, sess auth.Session, filter sales.Filter) View {
	if filter.PerPage <= 0 {
		filter.PerPage = b.perPage
	}
	filter = filter.Normalize()

	b.mu.Lock()
	b.filter = filter
	b.issued++
	seq := b.issued
	b.mu.Unlock()

	var (
		page sales.Page
		err  error
	)
	if b.lister == nil {
		err = pkgerrors.New(pkgerrors.CodeDependency, "sales history unavailable")
	} else {
		page, err = b.lister.ListSales(ctx, sess, filter)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < b.applied {
		return b.viewLocked()
	}
	b.applied = seq
	if err != nil {
		b.lastErr = message(err)
		if b.logg != nil {
			b.logg.Warn(ctx, "sales history load failed: "+err.Error())
		}
		return b.viewLocked()
	}
	b.lastErr = ""
	b.page = page
	if b.mode == ModeFollowLatest {
		b.selectNewestLocked()
	}
	return b.viewLocked()
}

// Select pins the operator's choice and leaves follow mode.
func (b *Browser) Select(saleID int64) (View, error) {
	if saleID <= 0 {
		return b.View(), pkgerrors.New(pkgerrors.CodeValidation, "sale id must be positive")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = ModeManual
	b.setSelectedLocked(saleID)
	return b.viewLocked(), nil
}

// FollowLatest returns to following the newest sale.
func (b *Browser) FollowLatest() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = ModeFollowLatest
	b.selectNewestLocked()
	return b.viewLocked()
}

// Detail returns the selected sale with its items, loading it on first use.
func (b *Browser) Detail(ctx context.Context, sess auth.Session) (sales.Sale, error) {
	b.mu.Lock()
	selected := b.selected
	if b.detail != nil && b.detail.ID == selected {
		sale := *b.detail
		b.mu.Unlock()
		return sale, nil
	}
	b.mu.Unlock()

	if selected == 0 {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeNotFound, "no sale selected")
	}
	if b.loader == nil {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeDependency, "sales history unavailable")
	}
	sale, err := b.loader.Sale(ctx, sess, selected)
	if err != nil {
		return sales.Sale{}, err
	}

	b.mu.Lock()
	if b.selected == selected {
		b.detail = &sale
	}
	b.mu.Unlock()
	return sale, nil
}

// SaleCompleted puts a sale this register just rang up at the top of the
// first page and selects it when following.
func (b *Browser) SaleCompleted(_ context.Context, _ auth.Session, c checkout.Completion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.filter.Page != 1 || !matches(b.filter, c.Sale) {
		return
	}
	for _, existing := range b.page.Sales {
		if existing.ID == c.Sale.ID {
			return
		}
	}
	rows := make([]sales.Sale, 0, len(b.page.Sales)+1)
	rows = append(rows, c.Sale)
	rows = append(rows, b.page.Sales...)
	if len(rows) > b.filter.PerPage {
		rows = rows[:b.filter.PerPage]
	}
	b.page.Sales = rows
	b.page.Total++
	if b.page.Pages < 1 {
		b.page.Pages = 1
	}
	if b.mode == ModeFollowLatest {
		b.setSelectedLocked(c.Sale.ID)
		sale := c.Sale
		b.detail = &sale
	}
}

func (b *Browser) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Browser) viewLocked() View {
	rows := make([]sales.Sale, len(b.page.Sales))
	copy(rows, b.page.Sales)
	page := b.page.Page
	if page < 1 {
		page = b.filter.Page
	}
	return View{
		Filter:     b.filter,
		Sales:      rows,
		Page:       page,
		Pages:      b.page.Pages,
		Total:      b.page.Total,
		Mode:       b.mode,
		SelectedID: b.selected,
		Loading:    b.applied < b.issued,
		Error:      b.lastErr,
	}
}

func (b *Browser) setSelectedLocked(id int64) {
	if b.selected != id {
		b.detail = nil
	}
	b.selected = id
}

// selectNewestLocked picks the most recent sale on the page, by date then id.
func (b *Browser) selectNewestLocked() {
	if len(b.page.Sales) == 0 {
		return
	}
	newest := b.page.Sales[0]
	for _, s := range b.page.Sales[1:] {
		if s.SaleDate.After(newest.SaleDate.Time) || (s.SaleDate.Equal(newest.SaleDate.Time) && s.ID > newest.ID) {
			newest = s
		}
	}
	b.setSelectedLocked(newest.ID)
}

// matches applies the listing filter locally to a freshly completed sale.
func matches(f sales.Filter, s sales.Sale) bool {
	if f.PaymentMethod != "" && f.PaymentMethod != s.PaymentMethod {
		return false
	}
	if f.Status != "" && s.Status != "" && f.Status != s.Status {
		return false
	}
	if !f.From.IsZero() && s.SaleDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.SaleDate.IsZero() && s.SaleDate.After(f.To.AddDate(0, 0, 1)) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(s.ReceiptNumber), needle) &&
			!strings.Contains(strings.ToLower(s.CustomerDisplayName()), needle) {
			return false
		}
	}
	return true
}

func message(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
