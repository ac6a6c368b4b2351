package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/thevault/register/api/controllers"
	"github.com/thevault/register/api/middleware"
	"github.com/thevault/register/internal/catalog"
	"github.com/thevault/register/pkg/config"
	"github.com/thevault/register/pkg/logger"
	pkgredis "github.com/thevault/register/pkg/redis"
)

// Backoffice is the slice of the back-office client the HTTP layer calls
// directly; everything else goes through register sessions.
type Backoffice interface {
	catalog.CategoryLister
	catalog.ProductLoader
}

// Deps are the collaborators of the register HTTP API. Optional entries may
// be nil: Idempotency disables replay, Gatherer hides /metrics, and nil
// pingers are skipped by the readiness probe.
type Deps struct {
	Sessions    controllers.Sessions
	Backoffice  Backoffice
	Receipts    controllers.ReceiptService
	Journal     controllers.JournalLister
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Pingers     map[string]controllers.Pinger
	Now         func() time.Time
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Auth, logg, deps.Now))

		r.Route("/v1/registers/{registerID}", func(r chi.Router) {
			r.Use(middleware.RegisterContext(logg))

			r.Delete("/", controllers.RegisterClose(deps.Sessions, logg))

			r.Get("/catalog", controllers.CatalogView(deps.Sessions, logg))
			r.Post("/catalog/query", controllers.CatalogQuery(deps.Sessions, logg))
			r.Get("/categories", controllers.CatalogCategories(deps.Backoffice, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Sessions, logg))
				r.Delete("/", controllers.CartClear(deps.Sessions, logg))
				r.Post("/items", controllers.CartAddItem(deps.Sessions, deps.Backoffice, logg))
				r.Put("/items/{productID}", controllers.CartSetQuantity(deps.Sessions, logg))
				r.Delete("/items/{productID}", controllers.CartRemoveItem(deps.Sessions, logg))
				r.Put("/customer", controllers.CartSetCustomer(deps.Sessions, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CheckoutFetch(deps.Sessions, logg))
				r.Post("/open", controllers.CheckoutOpen(deps.Sessions, logg))
				r.Post("/cancel", controllers.CheckoutCancel(deps.Sessions, logg))
				r.With(middleware.Idempotency(deps.Idempotency, cfg.Redis.ReplayTTL, logg)).
					Post("/submit", controllers.CheckoutSubmit(deps.Sessions, logg))
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", controllers.SalesList(deps.Sessions, logg))
				r.Post("/follow-latest", controllers.SalesFollowLatest(deps.Sessions, logg))
				r.Get("/selected", controllers.SalesSelected(deps.Sessions, logg))
				r.Post("/{saleID}/select", controllers.SalesSelect(deps.Sessions, logg))
			})

			r.Get("/journal", controllers.JournalList(deps.Journal, logg))
		})

		r.Route("/v1/receipts", func(r chi.Router) {
			r.Get("/by-number/{receiptNumber}", controllers.ReceiptByNumber(deps.Receipts, logg))
			r.Get("/{saleID}", controllers.ReceiptFetch(deps.Receipts, logg))
			r.Get("/{saleID}/text", controllers.ReceiptText(deps.Receipts, logg))
			r.Get("/{saleID}/qr.png", controllers.ReceiptQR(deps.Receipts, logg))
		})
	})

	return otelhttp.NewHandler(r, "register-api")
}
