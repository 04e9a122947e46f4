package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hardline-backend/models"

	"github.com/redis/go-redis/v9"
)

// ErrCartContention is returned when concurrent writers kept changing the
// cart for every optimistic attempt.
var ErrCartContention = errors.New("cart changed concurrently")

const cartUpdateAttempts = 8

type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *CartRepository) getKey(ownerID string) string {
	return fmt.Sprintf("cart:user:%s", ownerID)
}

// GetCart returns nil, nil when the owner has no stored cart.
func (r *CartRepository) GetCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	return decodeCart(r.client.Get(ctx, r.getKey(ownerID)), ownerID)
}

// SaveCart writes the cart and refreshes its TTL.
func (r *CartRepository) SaveCart(ctx context.Context, cart *models.Cart) error {
	data, err := encodeCart(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(cart.OwnerID), data, r.ttl).Err()
}

// UpdateCart loads the cart (or a new empty one), applies fn and writes it
// back inside WATCH/MULTI. fn runs again on a fresh copy whenever another
// writer changed the cart in between.
func (r *CartRepository) UpdateCart(ctx context.Context, ownerID string, fn func(*models.Cart)) (*models.Cart, error) {
	key := r.getKey(ownerID)
	var updated *models.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := decodeCart(tx.Get(ctx, key), ownerID)
		if err != nil {
			return err
		}
		if cart == nil {
			cart = models.NewCart(ownerID)
		}
		fn(cart)

		data, err := encodeCart(cart)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		}); err != nil {
			return err
		}
		updated = cart
		return nil
	}

	for attempt := 0; attempt < cartUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, ErrCartContention
}

func (r *CartRepository) DeleteCart(ctx context.Context, ownerID string) error {
	return r.client.Del(ctx, r.getKey(ownerID)).Err()
}

func decodeCart(cmd *redis.StringCmd, ownerID string) (*models.Cart, error) {
	data, err := cmd.Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", ownerID, err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func encodeCart(cart *models.Cart) ([]byte, error) {
	cart.UpdatedAt = time.Now().UTC()
	return json.Marshal(cart)
}
