package register

import (
	"context"
	"sync"
	"time"

	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/saleshistory"
	"github.com/thevault/register/pkg/auth"
)

// Session is the in-memory state of one till. Carts live only here and are
// lost when the session is closed or reaped.
type Session struct {
	ID       string
	Checkout *checkout.Orchestrator
	Catalog  *catalog.Browser
	History  *saleshistory.Browser

	mu       sync.Mutex
	lastUsed time.Time
	refresh  sync.WaitGroup
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// LastUsed is when the session was last handed out.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) close() {
	s.Catalog.Close()
}

// SaleCompleted refreshes the product pane so stock figures follow the sale.
func (s *Session) SaleCompleted(ctx context.Context, sess auth.Session, _ checkout.Completion) {
	s.refresh.Add(1)
	go func() {
		defer s.refresh.Done()
		s.Catalog.Refresh(ctx, sess)
	}()
}

// WaitRefresh blocks until background catalog refreshes finish.
func (s *Session) WaitRefresh() {
	s.refresh.Wait()
}
