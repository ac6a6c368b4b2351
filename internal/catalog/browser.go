package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
)

const (
	DefaultPageSize = 30
	DefaultDebounce = 300 * time.Millisecond
	queryTimeout    = 10 * time.Second
)

// Scheduler runs f after d and returns a function that cancels it if it has
// not fired yet.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// View is what the product pane renders.
type View struct {
	Query      Query     `json:"query"`
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	PageCount  int       `json:"page_count"`
	TotalCount int       `json:"total_count"`
	Loading    bool      `json:"loading"`
	Error      string    `json:"error,omitempty"`
}

// BrowserParams configure a Browser.
type BrowserParams struct {
	Searcher  Searcher
	Logger    *logger.Logger
	Metrics   *metrics.RegisterMetrics
	PageSize  int
	Debounce  time.Duration
	Scheduler Scheduler
}

// Browser is the view model behind the POS product pane. Every query gets a
// sequence number at issue time and a response is only applied when no newer
// response has been applied already, so results land in issue order.
type Browser struct {
	searcher   Searcher
	logg       *logger.Logger
	metrics    *metrics.RegisterMetrics
	pageSize   int
	debounce   time.Duration
	schedule   Scheduler
	mu         sync.Mutex
	query      Query
	issued     uint64
	applied    uint64
	page       Page
	lastErr    string
	cancelDue  func() bool
	pendingGen uint64
}

func NewBrowser(params BrowserParams) *Browser {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	debounce := params.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	schedule := params.Scheduler
	if schedule == nil {
		schedule = afterFunc
	}
	return &Browser{
		searcher: params.Searcher,
		logg:     params.Logger,
		metrics:  params.Metrics,
		pageSize: pageSize,
		debounce: debounce,
		schedule: schedule,
		query:    Query{Category: AllCategories, Page: 1, PageSize: pageSize},
		page:     Page{Page: 1},
	}
}

// SetText changes the free-text filter, resets to page 1 and schedules a
// debounced query. A later keystroke replaces the pending query.
func (b *Browser) SetText(ctx context.Context, sess auth.Session, text string) View {
	b.mu.Lock()
	b.stopPendingLocked()
	b.query.Text = strings.TrimSpace(text)
	b.query.Page = 1
	b.pendingGen++
	gen := b.pendingGen
	detached := context.WithoutCancel(ctx)
	b.cancelDue = b.schedule(b.debounce, func() {
		b.fireDebounced(detached, sess, gen)
	})
	b.mu.Unlock()
	return b.View()
}

func (b *Browser) fireDebounced(ctx context.Context, sess auth.Session, gen uint64) {
	b.mu.Lock()
	if gen != b.pendingGen || b.cancelDue == nil {
		b.mu.Unlock()
		return
	}
	b.cancelDue = nil
	q := b.query
	b.mu.Unlock()
	b.run(ctx, sess, q)
}

// SetCategory switches category and queries immediately from page 1. An
// unchanged category is a no-op unless the last query failed, in which case
// it is retried.
func (b *Browser) SetCategory(ctx context.Context, sess auth.Session, category string) View {
	category = strings.TrimSpace(category)
	if category == "" {
		category = AllCategories
	}
	b.mu.Lock()
	if strings.EqualFold(category, b.query.Category) && b.issued > 0 && b.lastErr == "" {
		b.mu.Unlock()
		return b.View()
	}
	b.stopPendingLocked()
	b.query.Category = category
	b.query.Page = 1
	q := b.query
	b.mu.Unlock()
	return b.run(ctx, sess, q)
}

// SetPage queries the requested page immediately. Pages outside the known
// range leave the view unchanged.
func (b *Browser) SetPage(ctx context.Context, sess auth.Session, page int) View {
	b.mu.Lock()
	maxPage := b.page.PageCount
	if maxPage < 1 {
		maxPage = 1
	}
	if page < 1 || page > maxPage {
		b.mu.Unlock()
		return b.View()
	}
	b.stopPendingLocked()
	b.query.Page = page
	q := b.query
	b.mu.Unlock()
	return b.run(ctx, sess, q)
}

// Refresh re-issues the current query without debounce.
func (b *Browser) Refresh(ctx context.Context, sess auth.Session) View {
	b.mu.Lock()
	b.stopPendingLocked()
	q := b.query
	b.mu.Unlock()
	return b.run(ctx, sess, q)
}

// Close cancels any pending debounced query.
func (b *Browser) Close() {
	b.mu.Lock()
	b.stopPendingLocked()
	b.mu.Unlock()
}

func (b *Browser) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]Product, len(b.page.Items))
	copy(items, b.page.Items)
	return View{
		Query:      b.query,
		Items:      items,
		Page:       b.page.Page,
		PageCount:  b.page.PageCount,
		TotalCount: b.page.TotalCount,
		Loading:    b.applied < b.issued || b.cancelDue != nil,
		Error:      b.lastErr,
	}
}

func (b *Browser) stopPendingLocked() {
	if b.cancelDue != nil {
		b.cancelDue()
		b.cancelDue = nil
	}
}

func (b *Browser) run(ctx context.Context, sess auth.Session, q Query) View {
	b.mu.Lock()
	b.issued++
	seq := b.issued
	b.mu.Unlock()

	if b.searcher == nil {
		b.apply(ctx, seq, Page{}, errNoSearcher)
		return b.View()
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	page, err := b.searcher.Search(queryCtx, sess, q)
	b.apply(ctx, seq, page, err)
	return b.View()
}

func (b *Browser) apply(ctx context.Context, seq uint64, page Page, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq < b.applied {
		b.metrics.IncCatalogQuery(metrics.OutcomeStale)
		if b.logg != nil {
			b.logg.Debug(b.logg.WithField(ctx, "seq", seq), "stale catalog response dropped")
		}
		return
	}
	b.applied = seq

	if err != nil {
		// previous items stay on screen
		b.lastErr = errorMessage(err)
		b.metrics.IncCatalogQuery(metrics.OutcomeError)
		if b.logg != nil {
			b.logg.Warn(b.logg.WithField(ctx, "seq", seq), "catalog search failed: "+err.Error())
		}
		return
	}
	if page.Page < 1 {
		page.Page = 1
	}
	b.page = page
	b.lastErr = ""
	b.metrics.IncCatalogQuery(metrics.OutcomeSuccess)
}
