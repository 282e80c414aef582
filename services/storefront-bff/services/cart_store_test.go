package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jewelrybyluna/storefront/services/common/auth"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- fakes ---

type fakeSession struct {
	mu    sync.Mutex
	user  auth.User
	token string
}

func signedIn(id string) *fakeSession {
	return &fakeSession{user: auth.User{ID: id}, token: "token-" + id}
}

func (s *fakeSession) CurrentUser() (auth.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.token != ""
}

func (s *fakeSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) signOut() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (n *recordingNotifier) Notify(severity models.Severity, message string) models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	note := models.Notification{Severity: severity, Message: message}
	n.notes = append(n.notes, note)
	return note
}

func (n *recordingNotifier) last() (models.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notes) == 0 {
		return models.Notification{}, false
	}
	return n.notes[len(n.notes)-1], true
}

func (n *recordingNotifier) count(severity models.Severity) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, note := range n.notes {
		if note.Severity == severity {
			c++
		}
	}
	return c
}

type quantityCall struct {
	productID string
	quantity  int
}

type fakeCartAPI struct {
	mu        sync.Mutex
	items     []models.CartLineItem
	fetchErr  error
	addErr    error
	removeErr error
	updateErr error
	clearErr  error
	fetches   int
	updates   []quantityCall
	removes   []string
	// blocks UpdateQuantity until closed, when set
	updateGate chan struct{}
}

func (f *fakeCartAPI) FetchCart(ctx context.Context) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	items := make([]models.CartLineItem, 0, len(f.items))
	for _, it := range f.items {
		items = append(items, it.Clone())
	}
	return &models.Cart{Items: items}, nil
}

func (f *fakeCartAPI) AddItem(ctx context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for i := range f.items {
		if f.items[i].ProductID == productID {
			f.items[i].Quantity += quantity
			return nil
		}
	}
	f.items = append(f.items, item(productID, 100, 0, quantity))
	return nil
}

func (f *fakeCartAPI) RemoveItem(ctx context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, productID)
	if f.removeErr != nil {
		return f.removeErr
	}
	for i := range f.items {
		if f.items[i].ProductID == productID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeCartAPI) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	f.mu.Lock()
	gate := f.updateGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, quantityCall{productID, quantity})
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.items {
		if f.items[i].ProductID == productID {
			f.items[i].Quantity = quantity
		}
	}
	return nil
}

func (f *fakeCartAPI) ClearCart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.items = nil
	return nil
}

func (f *fakeCartAPI) updateCalls() []quantityCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]quantityCall(nil), f.updates...)
}

func (f *fakeCartAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeCartAPI) set(fn func(f *fakeCartAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type memorySnapshots struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
}

func (m *memorySnapshots) GetSnapshot(ctx context.Context, userID string) (*models.Cart, error) {
	return m.get(userID), nil
}

func (m *memorySnapshots) SaveSnapshot(ctx context.Context, cart *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carts == nil {
		m.carts = map[string]*models.Cart{}
	}
	m.carts[cart.UserID] = cart
	return nil
}

func (m *memorySnapshots) DeleteSnapshot(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *memorySnapshots) get(userID string) *models.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil
	}
	copied := *cart
	copied.Items = append([]models.CartLineItem(nil), cart.Items...)
	return &copied
}

// --- helpers ---

const testDebounce = 20 * time.Millisecond

func newTestStore(t *testing.T, api *fakeCartAPI, opts ...CartStoreOption) (*CartStore, *recordingNotifier, *fakeSession) {
	t.Helper()
	notifier := &recordingNotifier{}
	session := signedIn("u1")
	opts = append([]CartStoreOption{WithQuantityDebounce(testDebounce)}, opts...)
	store := NewCartStore(api, session, notifier, zap.NewNop(), opts...)
	t.Cleanup(store.Close)
	return store, notifier, session
}

func seededAPI() *fakeCartAPI {
	return &fakeCartAPI{items: []models.CartLineItem{
		item("ring", 1200, 999, 1),
		item("chain", 800, 0, 2),
		item("studs", 500, 450, 1),
	}}
}

func productIDs(items []models.CartLineItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// --- tests ---

func TestCartStore_LoadReplacesState(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)

	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, []string{"ring", "chain", "studs"}, productIDs(store.Items()))
	assert.Equal(t, 4, store.ItemCount())
	assert.True(t, store.Loaded())

	api.set(func(f *fakeCartAPI) { f.items = f.items[:1] })
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, []string{"ring"}, productIDs(store.Items()))
}

func TestCartStore_LoadFailureKeepsPreviousState(t *testing.T) {
	api := seededAPI()
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	api.set(func(f *fakeCartAPI) { f.fetchErr = errors.New("boom") })
	err := store.Load(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrSyncFailure)
	assert.Equal(t, []string{"ring", "chain", "studs"}, productIDs(store.Items()))
	note, _ := notifier.last()
	assert.Equal(t, models.SeverityError, note.Severity)
}

func TestCartStore_WarmStartFromSnapshot(t *testing.T) {
	snapshots := &memorySnapshots{}
	first, _, _ := newTestStore(t, seededAPI(), WithSnapshots(snapshots))
	require.NoError(t, first.Load(context.Background()))

	down := &fakeCartAPI{fetchErr: errors.New("unavailable")}
	second, _, _ := newTestStore(t, down, WithSnapshots(snapshots))
	err := second.Load(context.Background())

	assert.Error(t, err)
	assert.Equal(t, []string{"ring", "chain", "studs"}, productIDs(second.Items()))
}

func TestCartStore_SnapshotFollowsAcknowledgedWrites(t *testing.T) {
	snapshots := &memorySnapshots{}
	store, _, _ := newTestStore(t, seededAPI(), WithSnapshots(snapshots))
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.RemoveItem(context.Background(), "studs"))
	assert.Equal(t, []string{"ring", "chain"}, productIDs(snapshots.get("u1").Items))

	require.NoError(t, store.SetQuantity("ring", 3))
	require.Eventually(t, func() bool {
		snap := snapshots.get("u1")
		return snap != nil && snap.Items[0].Quantity == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Clear(context.Background()))
	assert.Nil(t, snapshots.get("u1"))

	down := &fakeCartAPI{fetchErr: errors.New("unavailable")}
	fresh, _, _ := newTestStore(t, down, WithSnapshots(snapshots))
	assert.Error(t, fresh.Load(context.Background()))
	assert.Empty(t, fresh.Items())
}

func TestCartStore_RequiresAuthentication(t *testing.T) {
	api := seededAPI()
	store, _, session := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))
	session.signOut()

	assert.ErrorIs(t, store.Load(context.Background()), apperrors.ErrAuthRequired)
	assert.ErrorIs(t, store.AddItem(context.Background(), "ring", 1), apperrors.ErrAuthRequired)
	assert.ErrorIs(t, store.RemoveItem(context.Background(), "ring"), apperrors.ErrAuthRequired)
	assert.ErrorIs(t, store.SetQuantity("ring", 2), apperrors.ErrAuthRequired)
	assert.ErrorIs(t, store.Clear(context.Background()), apperrors.ErrAuthRequired)
	assert.Equal(t, 1, api.fetchCount())
}

func TestCartStore_SetQuantityBounds(t *testing.T) {
	api := seededAPI()
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	for _, q := range []int{0, -1, 11, 100} {
		err := store.SetQuantity("ring", q)
		assert.Error(t, err, "quantity %d", q)
		assert.Equal(t, 1, store.Items()[0].Quantity, "quantity %d leaves the line unchanged", q)
	}
	assert.ErrorIs(t, store.SetQuantity("ring", 0), apperrors.ErrInvalidQuantity)
	assert.ErrorIs(t, store.SetQuantity("ring", 11), apperrors.ErrStockExceeded)
	assert.ErrorIs(t, store.SetQuantity("missing", 1), apperrors.ErrItemNotFound)

	note, _ := notifier.last()
	assert.Equal(t, models.SeverityWarning, note.Severity)
	assert.Equal(t, "Only 10 left in stock", note.Message)

	time.Sleep(3 * testDebounce)
	assert.Empty(t, api.updateCalls())
}

func TestCartStore_SetQuantityCoalescesWrites(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	for q := 2; q <= 5; q++ {
		require.NoError(t, store.SetQuantity("ring", q))
	}

	state, _ := store.State("ring")
	assert.Equal(t, models.LinePending, state)
	assert.Equal(t, 5, store.Items()[0].Quantity)

	assert.Eventually(t, func() bool {
		state, _ := store.State("ring")
		return state == models.LineSynced
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []quantityCall{{"ring", 5}}, api.updateCalls())
}

func TestCartStore_QuantitySyncFailureReloads(t *testing.T) {
	api := seededAPI()
	api.updateErr = errors.New("conflict")
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.SetQuantity("chain", 4))

	assert.Eventually(t, func() bool {
		state, _ := store.State("chain")
		return state == models.LineRolledBack
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, store.Items()[1].Quantity, "server quantity wins after reload")
	assert.Equal(t, 2, api.fetchCount())
	assert.Equal(t, 1, notifier.count(models.SeverityError))
}

func TestCartStore_LoadKeepsPendingQuantity(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api, WithQuantityDebounce(time.Hour))
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.SetQuantity("chain", 3))
	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, 3, store.Items()[1].Quantity)
	state, _ := store.State("chain")
	assert.Equal(t, models.LinePending, state)
}

func TestCartStore_RemoveIsOptimistic(t *testing.T) {
	api := seededAPI()
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.RemoveItem(context.Background(), "chain"))
	assert.Equal(t, []string{"ring", "studs"}, productIDs(store.Items()))
	note, _ := notifier.last()
	assert.Equal(t, models.SeveritySuccess, note.Severity)

	assert.ErrorIs(t, store.RemoveItem(context.Background(), "chain"), apperrors.ErrItemNotFound)
}

func TestCartStore_RemoveFailureRestoresLine(t *testing.T) {
	api := seededAPI()
	api.removeErr = errors.New("gateway timeout")
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))
	before := store.Items()

	err := store.RemoveItem(context.Background(), "chain")

	assert.ErrorIs(t, err, apperrors.ErrSyncFailure)
	assert.Equal(t, before, store.Items())
	state, _ := store.State("chain")
	assert.Equal(t, models.LineRolledBack, state)
	note, _ := notifier.last()
	assert.Equal(t, models.SeverityError, note.Severity)
	assert.Len(t, api.removes, 1, "removal is not retried")
}

func TestCartStore_RemoveDiscardsPendingWrite(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.SetQuantity("ring", 3))
	require.NoError(t, store.RemoveItem(context.Background(), "ring"))

	time.Sleep(3 * testDebounce)
	assert.Empty(t, api.updateCalls())
	assert.Equal(t, []string{"chain", "studs"}, productIDs(store.Items()))
}

func TestCartStore_InFlightWriteForRemovedItemIsDiscarded(t *testing.T) {
	api := seededAPI()
	gate := make(chan struct{})
	api.updateGate = gate
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.SetQuantity("ring", 2))
	time.Sleep(3 * testDebounce)
	require.NoError(t, store.RemoveItem(context.Background(), "ring"))
	close(gate)

	assert.Eventually(t, func() bool { return len(api.updateCalls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testDebounce)
	assert.Equal(t, []string{"chain", "studs"}, productIDs(store.Items()))
}

func TestCartStore_DifferentLinesDoNotInterfere(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.SetQuantity("ring", 2))
	require.NoError(t, store.SetQuantity("chain", 5))

	assert.Eventually(t, func() bool { return len(api.updateCalls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []quantityCall{{"ring", 2}, {"chain", 5}}, api.updateCalls())
}

func TestCartStore_AddItemReloads(t *testing.T) {
	api := seededAPI()
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.AddItem(context.Background(), "anklet", 2))
	assert.Equal(t, []string{"ring", "chain", "studs", "anklet"}, productIDs(store.Items()))
	note, _ := notifier.last()
	assert.Equal(t, models.SeveritySuccess, note.Severity)

	assert.ErrorIs(t, store.AddItem(context.Background(), "anklet", 0), apperrors.ErrInvalidQuantity)
}

func TestCartStore_AddItemFailureUsesServerMessage(t *testing.T) {
	api := seededAPI()
	api.addErr = apperrors.WithMessage(apperrors.ErrUpstream, "Only 2 left in stock", nil)
	store, notifier, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	err := store.AddItem(context.Background(), "ring", 5)

	assert.ErrorIs(t, err, apperrors.ErrSyncFailure)
	note, _ := notifier.last()
	assert.Equal(t, "Only 2 left in stock", note.Message)
	assert.Len(t, store.Items(), 3)
}

func TestCartStore_Clear(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.SetQuantity("ring", 4))

	require.NoError(t, store.Clear(context.Background()))
	assert.Empty(t, store.Items())

	time.Sleep(3 * testDebounce)
	assert.Empty(t, api.updateCalls())
}

func TestCartStore_ClearFailureResyncs(t *testing.T) {
	api := seededAPI()
	api.clearErr = errors.New("nope")
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	assert.ErrorIs(t, store.Clear(context.Background()), apperrors.ErrSyncFailure)
	assert.Len(t, store.Items(), 3)
}

func TestCartStore_ClearAndReloadFailureKeepsPendingWrite(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.SetQuantity("ring", 4))

	api.set(func(f *fakeCartAPI) {
		f.clearErr = errors.New("nope")
		f.fetchErr = errors.New("down")
	})
	assert.ErrorIs(t, store.Clear(context.Background()), apperrors.ErrSyncFailure)
	require.Len(t, store.Items(), 3)
	api.set(func(f *fakeCartAPI) { f.fetchErr = nil })

	require.Eventually(t, func() bool { return len(api.updateCalls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, quantityCall{productID: "ring", quantity: 4}, api.updateCalls()[0])
	require.Eventually(t, func() bool {
		state, _ := store.State("ring")
		return state == models.LineSynced
	}, time.Second, 5*time.Millisecond)
}

func TestCartStore_ViewPricesLines(t *testing.T) {
	store, _, _ := newTestStore(t, seededAPI())
	require.NoError(t, store.Load(context.Background()))

	view := store.View(newTestPricing(), "welcome10")

	require.Len(t, view.Items, 3)
	assert.Equal(t, 4, view.ItemCount)
	assertDecimal(t, 999, view.Items[0].LineTotal, "ring line total")
	assert.Equal(t, int64(17), view.Items[0].DiscountPercent)
	assertDecimal(t, 999+1600+450, view.Summary.Subtotal, "subtotal")
	assert.Equal(t, "WELCOME10", view.Summary.CouponCode)
}

func TestCartStore_CloseStopsPendingWrites(t *testing.T) {
	api := seededAPI()
	store, _, _ := newTestStore(t, api)
	require.NoError(t, store.Load(context.Background()))

	require.NoError(t, store.SetQuantity("ring", 2))
	store.Close()

	time.Sleep(3 * testDebounce)
	assert.Empty(t, api.updateCalls())
}
