// Package checkout drives a register session's cart through payment selection
// and sale submission to the back office.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thevault/register/internal/cart"
	"github.com/thevault/register/internal/sales"
	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/enums"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
)

const DefaultTimeout = 15 * time.Second

type State string

const (
	StateIdle           State = "idle"
	StateAwaitingMethod State = "awaiting_method"
	StateSubmitting     State = "submitting"
	StateSuccess        State = "success"
	StateFailed         State = "failed"
)

// SaleCreator records a sale with the back office. idempotencyKey is empty
// when the register is configured not to send one.
type SaleCreator interface {
	CreateSale(ctx context.Context, sess auth.Session, req sales.Request, idempotencyKey string) (sales.Sale, error)
}

// Completion describes a sale the back office accepted.
type Completion struct {
	RegisterID     string
	Sale           sales.Sale
	Request        sales.Request
	Predicted      cart.Totals
	IdempotencyKey string
}

// Observer is told about every accepted sale, after the cart has been cleared.
type Observer interface {
	SaleCompleted(ctx context.Context, sess auth.Session, c Completion)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, sess auth.Session, c Completion)

func (f ObserverFunc) SaleCompleted(ctx context.Context, sess auth.Session, c Completion) {
	f(ctx, sess, c)
}

// Failure is the last submission error as shown to the cashier.
type Failure struct {
	Code      pkgerrors.Code `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
}

type View struct {
	State         State               `json:"state"`
	AttemptKey    string              `json:"attempt_key,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method,omitempty"`
	LastError     *Failure            `json:"last_error,omitempty"`
	LastSale      *sales.Sale         `json:"last_sale,omitempty"`
	Cart          cart.Snapshot       `json:"cart"`
}

type Params struct {
	RegisterID         string
	Cart               *cart.Cart
	Creator            SaleCreator
	Logger             *logger.Logger
	Metrics            *metrics.RegisterMetrics
	Timeout            time.Duration
	SendIdempotencyKey bool
	Observers          []Observer
	NewKey             func() string
	Now                func() time.Time
}

// attempt is one logical sale. Its key survives retries while the cart and
// payment method are unchanged.
type attempt struct {
	key         string
	fingerprint string
	method      enums.PaymentMethod
}

// Orchestrator owns the session cart. Cart edits go through Mutate so they
// can be refused while a submission is in flight.
type Orchestrator struct {
	registerID string
	creator    SaleCreator
	logg       *logger.Logger
	metrics    *metrics.RegisterMetrics
	timeout    time.Duration
	sendKey    bool
	newKey     func() string
	now        func() time.Time

	mu        sync.Mutex
	cart      *cart.Cart
	state     State
	attempt   *attempt
	lastErr   *Failure
	lastSale  *sales.Sale
	observers []Observer
}

func New(params Params) (*Orchestrator, error) {
	if params.Creator == nil {
		return nil, fmt.Errorf("sale creator required")
	}
	c := params.Cart
	if c == nil {
		c = cart.New(cart.DefaultTaxRate)
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	newKey := params.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		registerID: params.RegisterID,
		creator:    params.Creator,
		logg:       params.Logger,
		metrics:    params.Metrics,
		timeout:    timeout,
		sendKey:    params.SendIdempotencyKey,
		newKey:     newKey,
		now:        now,
		cart:       c,
		state:      StateIdle,
		observers:  append([]Observer(nil), params.Observers...),
	}, nil
}

// Observe registers an observer for accepted sales.
func (o *Orchestrator) Observe(obs Observer) {
	if obs == nil {
		return
	}
	o.mu.Lock()
	o.observers = append(o.observers, obs)
	o.mu.Unlock()
}

var (
	errSubmitting      = pkgerrors.New(pkgerrors.CodeStateConflict, "checkout in progress")
	errSelectionClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "payment method selection not open")
)

// Mutate applies fn to the cart unless a submission is in flight.
func (o *Orchestrator) Mutate(fn func(c *cart.Cart) error) (View, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting {
		return o.viewLocked(), errSubmitting
	}
	if err := fn(o.cart); err != nil {
		return o.viewLocked(), err
	}
	switch {
	case o.state == StateSuccess:
		o.state = StateIdle
	case o.state == StateAwaitingMethod && o.cart.IsEmpty():
		o.state = StateIdle
	}
	return o.viewLocked(), nil
}

// Read gives fn a consistent view of the cart.
func (o *Orchestrator) Read(fn func(c *cart.Cart)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.cart)
}

// Open moves to payment selection.
func (o *Orchestrator) Open() (View, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting {
		return o.viewLocked(), errSubmitting
	}
	if o.cart.IsEmpty() {
		return o.viewLocked(), pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	o.state = StateAwaitingMethod
	return o.viewLocked(), nil
}

// Cancel abandons payment selection and leaves the cart as it was.
func (o *Orchestrator) Cancel() (View, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting {
		return o.viewLocked(), errSubmitting
	}
	o.state = StateIdle
	o.lastErr = nil
	return o.viewLocked(), nil
}

// Submit records the cart as a sale. It is accepted from StateAwaitingMethod
// and, as a retry, from StateFailed. Exactly one back-office call is made per
// accepted Submit; the cart is cleared only when that call succeeds, leaving
// the orchestrator in StateSuccess until the next cart edit or Cancel.
func (o *Orchestrator) Submit(ctx context.Context, sess auth.Session, method string) (View, error) {
	o.mu.Lock()
	if o.state == StateSubmitting {
		view := o.viewLocked()
		o.mu.Unlock()
		return view, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already in progress")
	}
	if o.cart.IsEmpty() {
		view := o.viewLocked()
		o.mu.Unlock()
		return view, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if o.state != StateAwaitingMethod && o.state != StateFailed {
		view := o.viewLocked()
		o.mu.Unlock()
		return view, errSelectionClosed
	}
	pm, err := enums.ParsePaymentMethod(method)
	if err != nil {
		view := o.viewLocked()
		o.mu.Unlock()
		return view, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
			WithDetails(map[string]any{"payment_method": method})
	}
	if !sess.Valid(o.now()) {
		o.failLocked(auth.ErrSessionExpired)
		view := o.viewLocked()
		o.mu.Unlock()
		return view, auth.ErrSessionExpired
	}

	fingerprint := o.cart.Fingerprint()
	if o.attempt == nil || o.attempt.fingerprint != fingerprint || o.attempt.method != pm {
		o.attempt = &attempt{key: o.newKey(), fingerprint: fingerprint, method: pm}
	}
	current := *o.attempt
	req := o.buildRequestLocked(sess, pm, current.key)
	predicted := o.cart.Totals()
	o.state = StateSubmitting
	o.lastErr = nil
	o.mu.Unlock()

	logCtx := o.logContext(ctx, sess, current.key)
	if o.logg != nil {
		o.logg.Info(logCtx, "checkout.submit")
	}

	key := ""
	if o.sendKey {
		key = current.key
	}
	// a cashier closing the page must not abort a sale mid-flight
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	start := o.now()
	sale, err := o.creator.CreateSale(callCtx, sess, req, key)
	cancel()
	elapsed := o.now().Sub(start)

	if err != nil {
		err = normalizeSubmitError(err)
		o.mu.Lock()
		o.failLocked(err)
		view := o.viewLocked()
		o.mu.Unlock()
		o.metrics.ObserveCheckout(outcomeFor(err), string(pm), elapsed)
		if o.logg != nil {
			o.logg.Error(logCtx, "checkout.failed", err)
		}
		return view, err
	}

	o.mu.Lock()
	nameItemsLocked(&sale, o.cart)
	o.cart.Clear()
	o.attempt = nil
	o.lastErr = nil
	o.lastSale = &sale
	o.state = StateSuccess
	observers := append([]Observer(nil), o.observers...)
	view := o.viewLocked()
	o.mu.Unlock()

	o.metrics.ObserveCheckout(metrics.OutcomeSuccess, string(pm), elapsed)
	if o.logg != nil {
		doneCtx := o.logg.WithSaleID(logCtx, sale.ID)
		if sale.TotalAmount != 0 && sale.TotalAmount != predicted.Total {
			doneCtx = o.logg.WithFields(doneCtx, map[string]any{
				"predicted_total": predicted.Total.String(),
				"server_total":    sale.TotalAmount.String(),
			})
			o.logg.Warn(doneCtx, "checkout total differs from back office; using back office total")
		}
		o.logg.Info(doneCtx, "checkout.success")
	}

	completion := Completion{
		RegisterID:     o.registerID,
		Sale:           sale,
		Request:        req,
		Predicted:      predicted,
		IdempotencyKey: current.key,
	}
	notifyCtx := context.WithoutCancel(ctx)
	for _, obs := range observers {
		obs.SaleCompleted(notifyCtx, sess, completion)
	}
	return view, nil
}

// View returns the current checkout state with a cart snapshot.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked()
}

// Busy reports whether a submission is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateSubmitting
}

func (o *Orchestrator) buildRequestLocked(sess auth.Session, pm enums.PaymentMethod, key string) sales.Request {
	customer := o.cart.Customer().OrWalkIn()
	lines := o.cart.Lines()
	items := make([]sales.RequestItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, sales.RequestItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		})
	}
	totals := o.cart.Totals()
	req := sales.Request{
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		CustomerEmail: customer.Email,
		PaymentMethod: pm,
		EmployeeID:    sess.EmployeeID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
	}
	if o.sendKey {
		req.IdempotencyKey = key
	}
	return req
}

// nameItemsLocked fills product names the create response left out from the
// cart lines that produced the sale.
func nameItemsLocked(sale *sales.Sale, c *cart.Cart) {
	for i := range sale.Items {
		if sale.Items[i].ProductName != "" {
			continue
		}
		if line, ok := c.Line(sale.Items[i].ProductID); ok {
			sale.Items[i].ProductName = line.Name
		}
	}
}

func (o *Orchestrator) failLocked(err error) {
	o.state = StateFailed
	typed := pkgerrors.As(err)
	if typed == nil {
		o.lastErr = &Failure{Code: pkgerrors.CodeInternal, Message: err.Error()}
		return
	}
	o.lastErr = &Failure{
		Code:      typed.Code(),
		Message:   typed.Message(),
		Retryable: pkgerrors.MetadataFor(typed.Code()).Retryable,
	}
}

func (o *Orchestrator) viewLocked() View {
	view := View{
		State: o.state,
		Cart:  o.cart.Snapshot(),
	}
	if o.attempt != nil {
		view.AttemptKey = o.attempt.key
		view.PaymentMethod = o.attempt.method
	}
	if o.lastErr != nil {
		failure := *o.lastErr
		view.LastError = &failure
	}
	if o.lastSale != nil {
		sale := *o.lastSale
		view.LastSale = &sale
	}
	return view
}

func (o *Orchestrator) logContext(ctx context.Context, sess auth.Session, key string) context.Context {
	if o.logg == nil {
		return ctx
	}
	ctx = o.logg.WithRegisterID(ctx, o.registerID)
	ctx = o.logg.WithEmployeeID(ctx, sess.EmployeeID)
	return o.logg.WithField(ctx, "idempotency_key", key)
}

func normalizeSubmitError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "back office unreachable")
}

func outcomeFor(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeUpstream, pkgerrors.CodeValidation, pkgerrors.CodeConflict:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}
