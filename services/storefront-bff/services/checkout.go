package services

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jewelrybyluna/storefront/services/common/auth"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"go.uber.org/zap"
)

// CheckoutRedirectedEvent names the event published once the shopper has the deep link.
const CheckoutRedirectedEvent = "checkout.redirected"

const genericCheckoutFailure = "Could not place your order. Please try again"

// OrderAPI is the upstream order-request endpoint.
type OrderAPI interface {
	RequestOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error)
}

// CartReader exposes the current cart lines.
type CartReader interface {
	Items() []models.CartLineItem
}

// IdempotencyStore remembers the result of a checkout by user and idempotency key.
// Keys are scoped to the user; the same client key from another user is a different entry.
type IdempotencyStore interface {
	GetCheckoutResult(ctx context.Context, userID, key string) (*models.CheckoutResult, error)
	SaveCheckoutResult(ctx context.Context, userID, key string, result *models.CheckoutResult) error
}

// EventPublisher sends checkout events to the configured sink.
type EventPublisher interface {
	PublishCheckout(ctx context.Context, event models.CheckoutEvent) error
}

var fieldLabels = map[string]string{
	"street":       "Street",
	"city":         "City",
	"state":        "State",
	"zipCode":      "Zip code",
	"country":      "Country",
	"mobileNumber": "Mobile number",
}

// CheckoutOrchestrator validates the shipping address, submits the order request and turns
// the server's deep link into a redirect instruction.
type CheckoutOrchestrator struct {
	mu    sync.Mutex
	state models.CheckoutState

	orders      OrderAPI
	cart        CartReader
	pricing     *PricingEngine
	payments    *PaymentCatalog
	session     auth.Session
	notifier    Notifier
	opener      LinkOpener
	idempotency IdempotencyStore
	events      EventPublisher
	logger      *zap.Logger
	validate    *validator.Validate
	loginPath   string
	now         func() time.Time
}

type CheckoutOption func(*CheckoutOrchestrator)

func WithIdempotency(store IdempotencyStore) CheckoutOption {
	return func(o *CheckoutOrchestrator) { o.idempotency = store }
}

func WithEventPublisher(events EventPublisher) CheckoutOption {
	return func(o *CheckoutOrchestrator) { o.events = events }
}

func WithLoginPath(path string) CheckoutOption {
	return func(o *CheckoutOrchestrator) { o.loginPath = path }
}

func NewCheckoutOrchestrator(
	orders OrderAPI,
	cart CartReader,
	pricing *PricingEngine,
	payments *PaymentCatalog,
	session auth.Session,
	notifier Notifier,
	opener LinkOpener,
	logger *zap.Logger,
	opts ...CheckoutOption,
) *CheckoutOrchestrator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	o := &CheckoutOrchestrator{
		state:     models.CheckoutIdle,
		orders:    orders,
		cart:      cart,
		pricing:   pricing,
		payments:  payments,
		session:   session,
		notifier:  notifier,
		opener:    opener,
		logger:    logger,
		validate:  validate,
		loginPath: "/login",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current checkout state.
func (o *CheckoutOrchestrator) State() models.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Edit acknowledges a failed submission; the form is editable again.
func (o *CheckoutOrchestrator) Edit() models.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == models.CheckoutFailed {
		o.state = models.CheckoutIdle
	}
	return o.state
}

// Validate checks the address field by field. An empty map means the address is valid.
func (o *CheckoutOrchestrator) Validate(address models.ShippingAddress) map[string]string {
	fields := map[string]string{}
	address = normalizeAddress(address)

	err := o.validate.Struct(address)
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := fields[field]; seen {
			continue
		}
		switch field {
		case "zipCode":
			fields[field] = "Zip code must be exactly 6 digits"
		case "mobileNumber":
			fields[field] = "Mobile number must be exactly 10 digits"
		default:
			fields[field] = fieldLabels[field] + " is required"
		}
	}
	return fields
}

// Submit runs one checkout attempt. When the shopper is signed out it returns
// ErrAuthRequired together with a result carrying the login redirect.
func (o *CheckoutOrchestrator) Submit(ctx context.Context, form models.CheckoutForm) (*models.CheckoutResult, error) {
	o.mu.Lock()
	if o.state == models.CheckoutValidating || o.state == models.CheckoutSubmitting {
		o.mu.Unlock()
		return nil, apperrors.ErrCheckoutInProgress
	}
	o.state = models.CheckoutValidating
	o.mu.Unlock()

	if !o.session.IsAuthenticated() {
		o.setState(models.CheckoutIdle)
		return &models.CheckoutResult{
			State:    models.CheckoutIdle,
			Redirect: models.Redirect{Mode: models.RedirectLogin, URL: o.loginPath},
		}, apperrors.ErrAuthRequired
	}

	fields := o.Validate(form.Address)
	if !o.payments.Supports(form.PaymentMethod) {
		fields["paymentMethod"] = "Select a payment method"
	}
	if len(fields) > 0 {
		o.setState(models.CheckoutIdle)
		return nil, apperrors.Validation(fields)
	}

	items := o.cart.Items()
	if len(items) == 0 {
		o.setState(models.CheckoutIdle)
		return nil, apperrors.ErrEmptyCart
	}

	if replay, ok := o.replay(ctx, form.IdempotencyKey); ok {
		o.setState(models.CheckoutRedirecting)
		return replay, nil
	}

	o.setState(models.CheckoutSubmitting)
	summary := o.pricing.Summarize(items, form.CouponCode)
	req := models.OrderRequest{
		ShippingAddress: normalizeAddress(form.Address),
		PaymentMethod:   form.PaymentMethod,
		CouponCode:      summary.CouponCode,
	}

	resp, err := o.orders.RequestOrder(ctx, req)
	if err == nil && resp.RedirectURL == "" {
		err = stderrors.New("order response carried no redirect url")
	}
	if err != nil {
		return nil, o.fail(err)
	}

	result := &models.CheckoutResult{
		State:       models.CheckoutRedirecting,
		OrderID:     resp.OrderID,
		Summary:     summary,
		ServerTotal: summary.Total,
	}
	if resp.Total.Valid {
		result.ServerTotal = resp.Total.Decimal
		// the server charges in paise
		if !resp.Total.Decimal.Round(2).Equal(summary.Total.Round(2)) {
			result.TotalMismatch = true
			o.logger.Warn("order total differs from local summary",
				zap.String("order_id", resp.OrderID),
				zap.String("local_total", summary.Total.StringFixed(2)),
				zap.String("server_total", resp.Total.Decimal.StringFixed(2)),
			)
		}
	}

	result.Redirect = o.opener.Open(ctx, resp.RedirectURL)
	o.setState(models.CheckoutRedirecting)

	if result.Redirect.Blocked {
		o.notifier.Notify(models.SeverityWarning, apperrors.ErrRedirectBlocked.Message)
	} else {
		o.notifier.Notify(models.SeveritySuccess, "Order request sent. Continue in the opened chat")
	}

	o.remember(ctx, form.IdempotencyKey, result)
	o.publish(ctx, form.PaymentMethod, items, result)
	return result, nil
}

func (o *CheckoutOrchestrator) fail(err error) error {
	o.setState(models.CheckoutFailed)

	msg := genericCheckoutFailure
	code := apperrors.ErrCheckoutSubmission.Code
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) && appErr.Kind == apperrors.ErrUpstream.Kind {
		if appErr.Message != "" && appErr.Message != apperrors.ErrUpstream.Message {
			msg = appErr.Message
		}
		if appErr.Code >= 400 && appErr.Code < 500 {
			code = appErr.Code
		}
	}

	o.logger.Warn("checkout submission failed", zap.Error(err))
	o.notifier.Notify(models.SeverityError, msg)

	failure := apperrors.WithMessage(apperrors.ErrCheckoutSubmission, msg, err)
	failure.Code = code
	return failure
}

func (o *CheckoutOrchestrator) replay(ctx context.Context, key string) (*models.CheckoutResult, bool) {
	if key == "" || o.idempotency == nil {
		return nil, false
	}
	user, ok := o.session.CurrentUser()
	if !ok || user.ID == "" {
		return nil, false
	}
	stored, err := o.idempotency.GetCheckoutResult(ctx, user.ID, key)
	if err != nil {
		o.logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if stored == nil {
		return nil, false
	}
	stored.Replayed = true
	o.logger.Info("checkout replayed", zap.String("key", key), zap.String("order_id", stored.OrderID))
	return stored, true
}

func (o *CheckoutOrchestrator) remember(ctx context.Context, key string, result *models.CheckoutResult) {
	if key == "" || o.idempotency == nil {
		return
	}
	user, ok := o.session.CurrentUser()
	if !ok || user.ID == "" {
		return
	}
	if err := o.idempotency.SaveCheckoutResult(ctx, user.ID, key, result); err != nil {
		o.logger.Warn("idempotency save failed", zap.String("key", key), zap.Error(err))
	}
}

func (o *CheckoutOrchestrator) publish(ctx context.Context, method models.PaymentMethod, items []models.CartLineItem, result *models.CheckoutResult) {
	if o.events == nil {
		return
	}
	user, _ := o.session.CurrentUser()
	event := models.CheckoutEvent{
		Event:         CheckoutRedirectedEvent,
		EventID:       uuid.NewString(),
		UserID:        user.ID,
		OrderID:       result.OrderID,
		PaymentMethod: method,
		CouponCode:    result.Summary.CouponCode,
		Items:         items,
		Summary:       result.Summary,
		Timestamp:     o.now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.events.PublishCheckout(pubCtx, event); err != nil {
		o.logger.Warn("checkout event publish failed",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
}

func (o *CheckoutOrchestrator) setState(state models.CheckoutState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func normalizeAddress(a models.ShippingAddress) models.ShippingAddress {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Country = strings.TrimSpace(a.Country)
	a.Landmark = strings.TrimSpace(a.Landmark)
	a.MobileNumber = strings.TrimSpace(a.MobileNumber)
	if a.Country == "" {
		a.Country = models.DefaultCountry
	}
	return a
}
