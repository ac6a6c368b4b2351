package receipt

import (
	"context"

	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
)

// SaleLoader reads recorded sales from the back office.
type SaleLoader interface {
	Sale(ctx context.Context, sess auth.Session, id int64) (sales.Sale, error)
	SaleByReceiptNumber(ctx context.Context, sess auth.Session, number string) (sales.Sale, error)
}

// Archive is the register's local copy of sales it completed.
type Archive interface {
	SaleSnapshot(ctx context.Context, saleID int64) (sales.Sale, error)
}

// Service loads sales and renders them. When the back office cannot be
// reached it falls back to the local archive for sales this register rang up.
type Service struct {
	loader   SaleLoader
	archive  Archive
	renderer *Renderer
	logg     *logger.Logger
}

func NewService(loader SaleLoader, archive Archive, renderer *Renderer, logg *logger.Logger) *Service {
	if renderer == nil {
		renderer = NewRenderer(RendererParams{Logger: logg})
	}
	return &Service{loader: loader, archive: archive, renderer: renderer, logg: logg}
}

func (s *Service) Renderer() *Renderer {
	return s.renderer
}

func (s *Service) ForSale(ctx context.Context, sess auth.Session, saleID int64) (Receipt, error) {
	if saleID <= 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "sale id must be positive")
	}
	if s.loader == nil {
		return s.fromArchive(ctx, saleID, pkgerrors.New(pkgerrors.CodeDependency, "back office unavailable"))
	}
	sale, err := s.loader.Sale(ctx, sess, saleID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeDependency {
			return s.fromArchive(ctx, saleID, err)
		}
		return Receipt{}, err
	}
	return s.renderer.Render(ctx, sale), nil
}

func (s *Service) ForReceiptNumber(ctx context.Context, sess auth.Session, number string) (Receipt, error) {
	if s.loader == nil {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeDependency, "back office unavailable")
	}
	sale, err := s.loader.SaleByReceiptNumber(ctx, sess, number)
	if err != nil {
		return Receipt{}, err
	}
	return s.renderer.Render(ctx, sale), nil
}

func (s *Service) fromArchive(ctx context.Context, saleID int64, cause error) (Receipt, error) {
	if s.archive == nil {
		return Receipt{}, cause
	}
	sale, err := s.archive.SaleSnapshot(ctx, saleID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return Receipt{}, cause
		}
		return Receipt{}, err
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithSaleID(ctx, saleID), "receipt served from local journal: "+cause.Error())
	}
	return s.renderer.Render(ctx, sale), nil
}
