package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"github.com/redis/go-redis/v9"
)

// CartRepository keeps the last loaded cart per user and checkout results by
// idempotency key.
type CartRepository struct {
	client  redis.Cmdable
	ttl     time.Duration
	idemTTL time.Duration
}

func NewCartRepository(client redis.Cmdable, ttl, idemTTL time.Duration) *CartRepository {
	return &CartRepository{
		client:  client,
		ttl:     ttl,
		idemTTL: idemTTL,
	}
}

func (r *CartRepository) getKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

func (r *CartRepository) getIdemKey(userID, key string) string {
	return fmt.Sprintf("idem:checkout:%s:%s", userID, key)
}

// GetSnapshot returns nil, nil when no snapshot exists.
func (r *CartRepository) GetSnapshot(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, r.getKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return &cart, nil
}

func (r *CartRepository) SaveSnapshot(ctx context.Context, cart *models.Cart) error {
	if cart.UserID == "" {
		return errors.New("cart snapshot without user id")
	}
	snapshot := *cart
	snapshot.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(cart.UserID), data, r.ttl).Err()
}

func (r *CartRepository) DeleteSnapshot(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.getKey(userID)).Err()
}

// GetCheckoutResult returns nil, nil for a key the user has not used.
func (r *CartRepository) GetCheckoutResult(ctx context.Context, userID, key string) (*models.CheckoutResult, error) {
	data, err := r.client.Get(ctx, r.getIdemKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result models.CheckoutResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode checkout result: %w", err)
	}
	return &result, nil
}

// SaveCheckoutResult stores result unless the key was already answered; the first answer wins.
func (r *CartRepository) SaveCheckoutResult(ctx context.Context, userID, key string, result *models.CheckoutResult) error {
	if userID == "" {
		return errors.New("checkout result without user id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.SetNX(ctx, r.getIdemKey(userID, key), data, r.idemTTL).Err()
}
