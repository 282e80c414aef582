package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jewelrybyluna/storefront/services/common/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newTestRegistry(api *fakeCartAPI) *Registry {
	return NewRegistry(Dependencies{
		NewCartAPI:       func(auth.Session) CartAPI { return api },
		NewOrderAPI:      func(auth.Session) OrderAPI { return &fakeOrderAPI{} },
		Pricing:          newTestPricing(),
		Payments:         NewPaymentCatalog(DefaultPaymentOptions),
		Opener:           fixedOpener{},
		QuantityDebounce: testDebounce,
		Logger:           zap.NewNop(),
	}, time.Minute)
}

func TestRegistry_AcquireReusesStorefront(t *testing.T) {
	r := newTestRegistry(seededAPI())
	t.Cleanup(r.Close)

	first := r.Acquire(auth.User{ID: "u1"}, testToken(t, "u1"))
	second := r.Acquire(auth.User{ID: "u1"}, testToken(t, "u1"))
	other := r.Acquire(auth.User{ID: "u2"}, testToken(t, "u2"))

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, r.Len())
	assert.True(t, first.Session.IsAuthenticated())

	require.NoError(t, first.Cart.Load(context.Background()))
	assert.Len(t, first.Cart.Items(), 3)
}

func TestRegistry_AcquireRefreshesToken(t *testing.T) {
	r := newTestRegistry(seededAPI())
	t.Cleanup(r.Close)

	sf := r.Acquire(auth.User{ID: "u1"}, testToken(t, "u1"))
	sf.Session.Clear()
	assert.False(t, sf.Session.IsAuthenticated())

	fresh := testToken(t, "u1")
	r.Acquire(auth.User{ID: "u1"}, fresh)
	assert.Equal(t, fresh, sf.Session.Token())
	assert.True(t, sf.Session.IsAuthenticated())
}

func TestRegistry_EvictIdleCancelsPendingWrites(t *testing.T) {
	api := seededAPI()
	r := newTestRegistry(api)
	start := time.Now()
	r.now = func() time.Time { return start }

	sf := r.Acquire(auth.User{ID: "u1"}, testToken(t, "u1"))
	require.NoError(t, sf.Cart.Load(context.Background()))
	require.NoError(t, sf.Cart.SetQuantity("ring", 3))

	assert.Equal(t, 0, r.EvictIdle(start.Add(30*time.Second)))
	assert.Equal(t, 1, r.EvictIdle(start.Add(2*time.Minute)))

	_, ok := r.Get("u1")
	assert.False(t, ok)
	time.Sleep(3 * testDebounce)
	assert.Empty(t, api.updateCalls())
}
