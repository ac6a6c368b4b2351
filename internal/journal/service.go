package journal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/db"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/pagination"
)

// Service records completed sales and serves them back.
type Service struct {
	db   *db.Client
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(client *db.Client, logg *logger.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New("journal db client required")
	}
	return &Service{
		db:   client,
		repo: NewRepository(client.DB()),
		logg: logg,
		now:  time.Now,
	}, nil
}

// Record stores a completion. Recording the same sale twice is a no-op that
// returns the stored entry.
func (s *Service) Record(ctx context.Context, c checkout.Completion) (*Entry, error) {
	if c.Sale.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	if strings.TrimSpace(c.RegisterID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "register id is required")
	}
	entry, err := s.entryFor(c)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, entry)
	})
	if db.IsUniqueViolation(err, "") {
		existing, findErr := s.repo.FindBySaleID(ctx, c.Sale.ID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "journal lookup failed")
		}
		return existing, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal write failed")
	}
	return entry, nil
}

func (s *Service) entryFor(c checkout.Completion) (*Entry, error) {
	raw, err := json.Marshal(c.Sale)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sale")
	}
	employeeID := c.Request.EmployeeID
	if c.Sale.Employee != nil && c.Sale.Employee.ID > 0 {
		employeeID = c.Sale.Employee.ID
	}
	entry := &Entry{
		ID:                  uuid.New(),
		RegisterID:          c.RegisterID,
		SaleID:              c.Sale.ID,
		ReceiptNumber:       c.Sale.ReceiptNumber,
		EmployeeID:          employeeID,
		PaymentMethod:       string(c.Sale.PaymentMethod),
		SubtotalCents:       c.Sale.Subtotal,
		TaxCents:            c.Sale.TaxAmount,
		DiscountCents:       c.Sale.DiscountAmount,
		TotalCents:          c.Sale.TotalAmount,
		PredictedTotalCents: c.Predicted.Total,
		IdempotencyKey:      c.IdempotencyKey,
		SaleJSON:            string(raw),
		CreatedAt:           s.now().UTC(),
	}
	if entry.PaymentMethod == "" {
		entry.PaymentMethod = string(c.Request.PaymentMethod)
	}
	for i, item := range c.Sale.Items {
		entry.Lines = append(entry.Lines, Line{
			EntryID:        entry.ID,
			LineNo:         i + 1,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPrice,
			LineTotalCents: item.LineTotal(),
		})
	}
	return entry, nil
}

// SaleCompleted journals every accepted sale. A journal failure is logged
// and never reaches the cashier.
func (s *Service) SaleCompleted(ctx context.Context, _ auth.Session, c checkout.Completion) {
	if _, err := s.Record(ctx, c); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithSaleID(ctx, c.Sale.ID), "journal record failed", err)
	}
}

// SaleSnapshot returns the sale as it was when the register completed it.
func (s *Service) SaleSnapshot(ctx context.Context, saleID int64) (sales.Sale, error) {
	entry, err := s.repo.FindBySaleID(ctx, saleID)
	if errors.Is(err, ErrNotFound) {
		return sales.Sale{}, pkgerrors.New(pkgerrors.CodeNotFound, "sale not in local journal")
	}
	if err != nil {
		return sales.Sale{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal lookup failed")
	}
	var sale sales.Sale
	if err := json.Unmarshal([]byte(entry.SaleJSON), &sale); err != nil {
		return sales.Sale{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode journaled sale")
	}
	return sale, nil
}

// List pages through a register's entries, newest first.
func (s *Service) List(ctx context.Context, registerID string, params pagination.Params) (pagination.Page[Entry], error) {
	if strings.TrimSpace(registerID) == "" {
		return pagination.Page[Entry]{}, pkgerrors.New(pkgerrors.CodeValidation, "register id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[Entry]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByRegister(ctx, registerID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[Entry]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal list failed")
	}
	if rows == nil {
		rows = []Entry{}
	}
	return pagination.Trim(rows, params.Limit, func(e Entry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

// PruneBefore deletes entries older than cutoff and returns how many went.
func (s *Service) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).DeleteBefore(ctx, cutoff.UTC())
		removed = n
		return err
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal prune failed")
	}
	return removed, nil
}
