package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jewelrybyluna/storefront/services/common/auth"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/jewelrybyluna/storefront/services/storefront-bff/services")

// CartAPI is the remote cart resource. Every call is authorised by the session token the
// implementation was built with.
type CartAPI interface {
	FetchCart(ctx context.Context) (*models.Cart, error)
	AddItem(ctx context.Context, productID string, quantity int) error
	RemoveItem(ctx context.Context, productID string) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	ClearCart(ctx context.Context) error
}

// SnapshotStore keeps the last cart seen per user so a fresh store can warm-start.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, userID string) (*models.Cart, error)
	SaveSnapshot(ctx context.Context, cart *models.Cart) error
	DeleteSnapshot(ctx context.Context, userID string) error
}

type cartLine struct {
	item  models.CartLineItem
	state models.LineState
}

// CartStore is the single in-memory cart of one shopper, reconciled with the remote cart
// resource. All cart mutation goes through its methods.
type CartStore struct {
	mu     sync.RWMutex
	lines  []*cartLine
	loaded bool

	// quantities written but not yet acknowledged, by product id
	inflight map[string]int

	writeMu    sync.Mutex
	writeLocks map[string]*sync.Mutex

	api          CartAPI
	session      auth.Session
	notifier     Notifier
	snapshots    SnapshotStore
	debouncer    *Debouncer
	logger       *zap.Logger
	writeTimeout time.Duration
	closed       atomic.Bool
}

type CartStoreOption func(*CartStore)

// WithSnapshots enables snapshot save on load and warm start on a failed first load.
func WithSnapshots(snapshots SnapshotStore) CartStoreOption {
	return func(s *CartStore) { s.snapshots = snapshots }
}

// WithQuantityDebounce overrides the idle window for quantity writes.
func WithQuantityDebounce(delay time.Duration) CartStoreOption {
	return func(s *CartStore) { s.debouncer = NewDebouncer(delay, s.flushQuantity) }
}

// WithWriteTimeout bounds each debounced quantity write.
func WithWriteTimeout(timeout time.Duration) CartStoreOption {
	return func(s *CartStore) { s.writeTimeout = timeout }
}

func NewCartStore(api CartAPI, session auth.Session, notifier Notifier, logger *zap.Logger, opts ...CartStoreOption) *CartStore {
	s := &CartStore{
		inflight:     make(map[string]int),
		writeLocks:   make(map[string]*sync.Mutex),
		api:          api,
		session:      session,
		notifier:     notifier,
		logger:       logger,
		writeTimeout: 15 * time.Second,
	}
	s.debouncer = NewDebouncer(DefaultQuantityDebounce, s.flushQuantity)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces local state wholesale with the server's cart. On failure the previous
// state is kept (or warm-started from the snapshot if nothing was ever loaded).
func (s *CartStore) Load(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrAuthRequired
	}

	ctx, span := tracer.Start(ctx, "cart.load")
	defer span.End()

	cart, err := s.api.FetchCart(ctx)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("cart load failed", zap.Error(err))
		s.warmStart(ctx)
		s.notifier.Notify(models.SeverityError, "Could not load your cart. Please try again.")
		return apperrors.Wrap(apperrors.ErrSyncFailure, err)
	}

	s.replace(cart)
	s.saveSnapshot(ctx, cart)
	return nil
}

// AddItem asks the server to add the product and then reloads. Nothing is added locally
// before the server accepts it, since stock is validated remotely.
func (s *CartStore) AddItem(ctx context.Context, productID string, quantity int) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrAuthRequired
	}
	if quantity < 1 {
		s.notifier.Notify(models.SeverityWarning, apperrors.ErrInvalidQuantity.Message)
		return apperrors.ErrInvalidQuantity
	}

	ctx, span := tracer.Start(ctx, "cart.add_item")
	defer span.End()

	if err := s.api.AddItem(ctx, productID, quantity); err != nil {
		span.RecordError(err)
		msg := apperrors.Message(err, "Could not add this item to your cart")
		s.logger.Warn("cart add failed", zap.String("product_id", productID), zap.Error(err))
		s.notifier.Notify(models.SeverityError, msg)
		return apperrors.WithMessage(apperrors.ErrSyncFailure, msg, err)
	}

	if err := s.Load(ctx); err != nil {
		return err
	}
	s.notifier.Notify(models.SeveritySuccess, "Added to cart")
	return nil
}

// RemoveItem drops the line locally right away, then deletes it remotely. If the remote
// delete fails the line is put back exactly as it was and the shopper is told; the
// removal is not retried.
func (s *CartStore) RemoveItem(ctx context.Context, productID string) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrAuthRequired
	}

	s.mu.Lock()
	idx := s.indexOf(productID)
	if idx < 0 {
		s.mu.Unlock()
		return apperrors.ErrItemNotFound
	}
	removed := cartLine{item: s.lines[idx].item.Clone(), state: s.lines[idx].state}
	pendingQty, hadPending := s.debouncer.Pending(productID)
	s.debouncer.Cancel(productID)
	s.lines = append(s.lines[:idx:idx], s.lines[idx+1:]...)
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "cart.remove_item")
	defer span.End()

	if err := s.api.RemoveItem(ctx, productID); err != nil {
		span.RecordError(err)
		s.logger.Warn("cart remove failed, restoring line",
			zap.String("product_id", productID), zap.Error(err))
		s.restore(idx, removed)
		if hadPending {
			s.debouncer.Schedule(productID, pendingQty)
		}
		s.notifier.Notify(models.SeverityError, "Could not remove this item. Please try again.")
		return apperrors.Wrap(apperrors.ErrSyncFailure, err)
	}

	s.patchSnapshot(ctx, func(cart *models.Cart) {
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
	})
	s.notifier.Notify(models.SeveritySuccess, "Removed from cart")
	return nil
}

// SetQuantity applies a quantity change locally and hands it to the debouncer. Values
// outside 1..stock are rejected before any network activity.
func (s *CartStore) SetQuantity(productID string, quantity int) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrAuthRequired
	}

	s.mu.Lock()
	line := s.find(productID)
	if line == nil {
		s.mu.Unlock()
		return apperrors.ErrItemNotFound
	}

	var rejected *apperrors.Error
	switch {
	case quantity < 1:
		rejected = apperrors.ErrInvalidQuantity
	case quantity > line.item.Stock:
		rejected = apperrors.WithMessage(apperrors.ErrStockExceeded,
			fmt.Sprintf("Only %d left in stock", line.item.Stock), nil)
	case quantity == line.item.Quantity && line.state != models.LinePending:
		s.mu.Unlock()
		return nil
	default:
		line.item.Quantity = quantity
		line.state = models.LinePending
		s.debouncer.Schedule(productID, quantity)
	}
	s.mu.Unlock()

	if rejected != nil {
		s.notifier.Notify(models.SeverityWarning, rejected.Message)
		return rejected
	}
	return nil
}

// Clear empties the cart locally, cancels every pending write and clears it remotely.
// A failed clear resyncs from the server.
func (s *CartStore) Clear(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrAuthRequired
	}

	s.mu.Lock()
	previous := s.lines
	s.lines = nil
	s.debouncer.CancelAll()
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "cart.clear")
	defer span.End()

	if err := s.api.ClearCart(ctx); err != nil {
		span.RecordError(err)
		s.logger.Warn("cart clear failed", zap.Error(err))
		if resyncErr := s.resync(ctx); resyncErr != nil {
			s.mu.Lock()
			if len(s.lines) == 0 {
				s.lines = previous
				// CancelAll dropped their timers; restored pending lines must still be written.
				for _, line := range s.lines {
					if line.state == models.LinePending {
						s.debouncer.Schedule(line.item.ProductID, line.item.Quantity)
					}
				}
			}
			s.mu.Unlock()
		}
		s.notifier.Notify(models.SeverityError, "Could not clear your cart. Please try again.")
		return apperrors.Wrap(apperrors.ErrSyncFailure, err)
	}

	s.dropSnapshot(ctx)
	s.notifier.Notify(models.SeverityInfo, "Cart cleared")
	return nil
}

// Items returns a copy of the current line items in cart order.
func (s *CartStore) Items() []models.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.CartLineItem, 0, len(s.lines))
	for _, line := range s.lines {
		items = append(items, line.item.Clone())
	}
	return items
}

// State returns the sync state of a line item.
func (s *CartStore) State(productID string) (models.LineState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if line := s.find(productID); line != nil {
		return line.state, true
	}
	return "", false
}

// ItemCount is the total quantity across lines.
func (s *CartStore) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, line := range s.lines {
		count += line.item.Quantity
	}
	return count
}

// Loaded reports whether the store holds a server (or snapshot) cart.
func (s *CartStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// View renders the cart with prices for the given coupon.
func (s *CartStore) View(pricing *PricingEngine, couponCode string) models.CartView {
	s.mu.RLock()
	items := make([]models.CartLineItem, 0, len(s.lines))
	views := make([]models.CartLineView, 0, len(s.lines))
	count := 0
	for _, line := range s.lines {
		item := line.item.Clone()
		items = append(items, item)
		count += item.Quantity
		views = append(views, models.CartLineView{
			CartLineItem:    item,
			State:           line.state,
			LineTotal:       item.LineTotal(),
			DiscountPercent: item.DiscountPercent(),
		})
	}
	s.mu.RUnlock()

	return models.CartView{
		Items:     views,
		ItemCount: count,
		Summary:   pricing.Summarize(items, couponCode),
	}
}

// Close cancels pending quantity writes. Writes already in flight finish but their
// results are ignored.
func (s *CartStore) Close() {
	s.closed.Store(true)
	s.debouncer.Close()
}

func (s *CartStore) flushQuantity(productID string, quantity int) {
	lock := s.writeLock(productID)
	lock.Lock()
	defer lock.Unlock()

	if s.closed.Load() {
		return
	}
	// A newer value was scheduled while we waited; it will flush on its own.
	if _, pending := s.debouncer.Pending(productID); pending {
		return
	}

	s.mu.Lock()
	if s.find(productID) == nil {
		s.mu.Unlock()
		return
	}
	s.inflight[productID] = quantity
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "cart.update_quantity")
	err := s.api.UpdateQuantity(ctx, productID, quantity)
	span.End()

	s.mu.Lock()
	delete(s.inflight, productID)
	exists := s.find(productID) != nil
	s.mu.Unlock()

	if s.closed.Load() || !exists {
		return
	}

	if err != nil {
		s.logger.Warn("quantity sync failed, reloading cart",
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		s.notifier.Notify(models.SeverityError, "Could not update quantity. Your cart has been refreshed.")
		if resyncErr := s.resync(ctx); resyncErr != nil {
			s.logger.Warn("cart resync failed", zap.Error(resyncErr))
		}
		s.markRolledBack(productID)
		return
	}

	s.markSynced(productID, quantity)
	s.patchSnapshot(ctx, func(cart *models.Cart) {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Quantity = quantity
			}
		}
	})
}

// resync reloads from the server without notifying; callers have already told the shopper.
func (s *CartStore) resync(ctx context.Context) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
	}
	cart, err := s.api.FetchCart(ctx)
	if err != nil {
		return err
	}
	s.replace(cart)
	s.saveSnapshot(ctx, cart)
	return nil
}

// replace swaps in the server cart. Lines with a pending or in-flight quantity keep the
// local value so a reload does not clobber a write the shopper is still making.
func (s *CartStore) replace(cart *models.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(cart.Items))
	lines := make([]*cartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := &cartLine{item: item.Clone(), state: models.LineSynced}
		if q, ok := s.debouncer.Pending(item.ProductID); ok {
			line.item.Quantity = q
			line.state = models.LinePending
		} else if q, ok := s.inflight[item.ProductID]; ok {
			line.item.Quantity = q
			line.state = models.LinePending
		}
		present[item.ProductID] = struct{}{}
		lines = append(lines, line)
	}

	for _, old := range s.lines {
		if _, ok := present[old.item.ProductID]; !ok {
			s.debouncer.Cancel(old.item.ProductID)
		}
	}

	s.lines = lines
	s.loaded = true
}

func (s *CartStore) warmStart(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}

	user, ok := s.session.CurrentUser()
	if !ok {
		return
	}
	snapshot, err := s.snapshots.GetSnapshot(ctx, user.ID)
	if err != nil {
		s.logger.Warn("cart snapshot read failed", zap.Error(err))
		return
	}
	if snapshot == nil {
		return
	}
	s.logger.Info("cart warm-started from snapshot", zap.Int("items", len(snapshot.Items)))
	s.replace(snapshot)
}

func (s *CartStore) saveSnapshot(ctx context.Context, cart *models.Cart) {
	if s.snapshots == nil {
		return
	}
	user, ok := s.session.CurrentUser()
	if !ok {
		return
	}
	snapshot := *cart
	snapshot.UserID = user.ID
	if err := s.snapshots.SaveSnapshot(ctx, &snapshot); err != nil {
		s.logger.Warn("cart snapshot save failed", zap.Error(err))
	}
}

// patchSnapshot applies a server-acknowledged change to the stored snapshot, if any.
func (s *CartStore) patchSnapshot(ctx context.Context, apply func(cart *models.Cart)) {
	if s.snapshots == nil {
		return
	}
	user, ok := s.session.CurrentUser()
	if !ok {
		return
	}
	snapshot, err := s.snapshots.GetSnapshot(ctx, user.ID)
	if err != nil {
		s.logger.Warn("cart snapshot read failed", zap.Error(err))
		return
	}
	if snapshot == nil {
		return
	}
	apply(snapshot)
	snapshot.UserID = user.ID
	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn("cart snapshot save failed", zap.Error(err))
	}
}

func (s *CartStore) dropSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	user, ok := s.session.CurrentUser()
	if !ok {
		return
	}
	if err := s.snapshots.DeleteSnapshot(ctx, user.ID); err != nil {
		s.logger.Warn("cart snapshot delete failed", zap.Error(err))
	}
}

func (s *CartStore) restore(idx int, line cartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.find(line.item.ProductID); existing != nil {
		existing.state = models.LineRolledBack
		return
	}
	line.state = models.LineRolledBack
	idx = min(idx, len(s.lines))
	lines := make([]*cartLine, 0, len(s.lines)+1)
	lines = append(lines, s.lines[:idx]...)
	lines = append(lines, &line)
	lines = append(lines, s.lines[idx:]...)
	s.lines = lines
}

func (s *CartStore) markSynced(productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := s.find(productID)
	if line == nil {
		return
	}
	if _, pending := s.debouncer.Pending(productID); pending {
		return
	}
	line.item.Quantity = quantity
	line.state = models.LineSynced
}

func (s *CartStore) markRolledBack(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line := s.find(productID); line != nil && line.state != models.LinePending {
		line.state = models.LineRolledBack
	}
}

func (s *CartStore) writeLock(productID string) *sync.Mutex {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	lock, ok := s.writeLocks[productID]
	if !ok {
		lock = &sync.Mutex{}
		s.writeLocks[productID] = lock
	}
	return lock
}

func (s *CartStore) indexOf(productID string) int {
	for i, line := range s.lines {
		if line.item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *CartStore) find(productID string) *cartLine {
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i]
	}
	return nil
}
