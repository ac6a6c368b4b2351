// Package register keeps one POS session per till.
package register

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thevault/register/internal/cart"
	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/saleshistory"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
)

var registerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID checks a register id taken from a URL.
func ValidateID(id string) error {
	if !registerIDPattern.MatchString(id) {
		return pkgerrors.New(pkgerrors.CodeValidation, "register id must be 1-64 letters, digits, '-' or '_'").
			WithDetails(map[string]any{"register_id": id})
	}
	return nil
}

// Backoffice is everything a session needs from the back office.
type Backoffice interface {
	catalog.Searcher
	checkout.SaleCreator
	saleshistory.Lister
	saleshistory.Loader
}

type Params struct {
	Backoffice         Backoffice
	TaxRate            decimal.Decimal
	CatalogPageSize    int
	CatalogDebounce    time.Duration
	CheckoutTimeout    time.Duration
	SendIdempotencyKey bool
	HistoryPerPage     int
	// Observers are attached to every session's checkout, ahead of the
	// session's own history and catalog observers.
	Observers []checkout.Observer
	Logger    *logger.Logger
	Metrics   *metrics.RegisterMetrics
	Now       func() time.Time
}

type Manager struct {
	params Params
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(params Params) (*Manager, error) {
	if params.Backoffice == nil {
		return nil, fmt.Errorf("back office client required")
	}
	if params.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		params:   params,
		now:      now,
		sessions: map[string]*Session{},
	}, nil
}

// Get returns the session for registerID, creating it on first use.
func (m *Manager) Get(registerID string) (*Session, error) {
	if err := ValidateID(registerID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[registerID]; ok {
		s.touch(m.now())
		return s, nil
	}
	s, err := m.newSession(registerID)
	if err != nil {
		return nil, err
	}
	m.sessions[registerID] = s
	m.params.Metrics.SetSessions(len(m.sessions))
	if m.params.Logger != nil {
		m.params.Logger.Info(m.params.Logger.WithRegisterID(context.Background(), registerID), "register session opened")
	}
	return s, nil
}

func (m *Manager) newSession(registerID string) (*Session, error) {
	p := m.params
	s := &Session{
		ID: registerID,
		Catalog: catalog.NewBrowser(catalog.BrowserParams{
			Searcher: p.Backoffice,
			Logger:   p.Logger,
			Metrics:  p.Metrics,
			PageSize: p.CatalogPageSize,
			Debounce: p.CatalogDebounce,
		}),
		History: saleshistory.NewBrowser(saleshistory.Params{
			Lister:  p.Backoffice,
			Loader:  p.Backoffice,
			Logger:  p.Logger,
			PerPage: p.HistoryPerPage,
		}),
		lastUsed: m.now(),
	}
	observers := append([]checkout.Observer(nil), p.Observers...)
	observers = append(observers, s.History, s)
	orch, err := checkout.New(checkout.Params{
		RegisterID:         registerID,
		Cart:               cart.New(p.TaxRate),
		Creator:            p.Backoffice,
		Logger:             p.Logger,
		Metrics:            p.Metrics,
		Timeout:            p.CheckoutTimeout,
		SendIdempotencyKey: p.SendIdempotencyKey,
		Observers:          observers,
		Now:                m.now,
	})
	if err != nil {
		return nil, err
	}
	s.Checkout = orch
	return s, nil
}

// Close drops a session. A till mid-checkout cannot be closed.
func (m *Manager) Close(registerID string) error {
	if err := ValidateID(registerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[registerID]
	if !ok {
		return nil
	}
	if s.Checkout.Busy() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout in progress")
	}
	delete(m.sessions, registerID)
	s.close()
	m.params.Metrics.SetSessions(len(m.sessions))
	return nil
}

// ReapIdle evicts sessions unused for longer than maxIdle, skipping any with
// a submission in flight. It returns the evicted register ids.
func (m *Manager) ReapIdle(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	if maxIdle <= 0 {
		return nil, fmt.Errorf("max idle must be positive")
	}
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()
	var reaped []string
	for id, s := range m.sessions {
		if err := ctx.Err(); err != nil {
			return reaped, err
		}
		if !s.LastUsed().Before(cutoff) || s.Checkout.Busy() {
			continue
		}
		delete(m.sessions, id)
		s.close()
		reaped = append(reaped, id)
	}
	sort.Strings(reaped)
	m.params.Metrics.SetSessions(len(m.sessions))
	if len(reaped) > 0 && m.params.Logger != nil {
		m.params.Logger.Info(m.params.Logger.WithField(ctx, "reaped", reaped), "idle register sessions closed")
	}
	return reaped, nil
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
