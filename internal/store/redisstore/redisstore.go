package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
)

// maxRetries bounds the optimistic-transaction retry loop; past this the
// update surfaces ErrConflict instead of spinning.
const maxRetries = 5

// Store backs the Vendor/Settlement store contract with Redis. Entities are
// JSON values under typed keys; atomic updates use WATCH so a concurrent
// writer aborts the transaction rather than being overwritten.
type Store struct {
	client *redis.Client
}

func New(addr string, password string, db int) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func quoteKey(id string) string   { return "quote:" + id }
func cartKey(id string) string    { return "cart:" + id }
func mandateKey(id string) string { return "mandate:" + id }
func paymentKey(id string) string { return "payment:" + id }

func (s *Store) put(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, 0).Err()
}

func (s *Store) get(ctx context.Context, key string, dest any) error {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// update runs fn inside a WATCH-guarded transaction. decode/encode bridge the
// stored JSON to the caller's typed closure.
func (s *Store) update(ctx context.Context, key string, apply func(raw []byte) ([]byte, error)) error {
	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := apply([]byte(val))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s lost %d optimistic transactions", store.ErrConflict, key, maxRetries)
}

func (s *Store) PutQuote(ctx context.Context, quote domain.Quote) error {
	if quote.ID == "" {
		return store.ErrInvalidRequest
	}
	return s.put(ctx, quoteKey(quote.ID), quote)
}

func (s *Store) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	var quote domain.Quote
	if err := s.get(ctx, quoteKey(id), &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Store) UpdateQuote(ctx context.Context, id string, fn func(domain.Quote) (domain.Quote, error)) (*domain.Quote, error) {
	var result domain.Quote
	err := s.update(ctx, quoteKey(id), func(raw []byte) ([]byte, error) {
		var quote domain.Quote
		if err := json.Unmarshal(raw, &quote); err != nil {
			return nil, err
		}
		updated, err := fn(quote)
		if err != nil {
			return nil, err
		}
		updated.ID = id
		result = updated
		return json.Marshal(updated)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) PutCart(ctx context.Context, cart domain.Cart) error {
	if cart.ID == "" {
		return store.ErrInvalidRequest
	}
	return s.put(ctx, cartKey(cart.ID), cart)
}

func (s *Store) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := s.get(ctx, cartKey(id), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) UpdateCart(ctx context.Context, id string, fn func(domain.Cart) (domain.Cart, error)) (*domain.Cart, error) {
	var result domain.Cart
	err := s.update(ctx, cartKey(id), func(raw []byte) ([]byte, error) {
		var cart domain.Cart
		if err := json.Unmarshal(raw, &cart); err != nil {
			return nil, err
		}
		updated, err := fn(cart)
		if err != nil {
			return nil, err
		}
		updated.ID = id
		result = updated
		return json.Marshal(updated)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) PutMandate(ctx context.Context, mandate domain.Mandate) error {
	if mandate.ID == "" {
		return store.ErrInvalidRequest
	}
	return s.put(ctx, mandateKey(mandate.ID), mandate)
}

func (s *Store) GetMandate(ctx context.Context, id string) (*domain.Mandate, error) {
	var mandate domain.Mandate
	if err := s.get(ctx, mandateKey(id), &mandate); err != nil {
		return nil, err
	}
	return &mandate, nil
}

func (s *Store) UpdateMandate(ctx context.Context, id string, fn func(domain.Mandate) (domain.Mandate, error)) (*domain.Mandate, error) {
	var result domain.Mandate
	err := s.update(ctx, mandateKey(id), func(raw []byte) ([]byte, error) {
		var mandate domain.Mandate
		if err := json.Unmarshal(raw, &mandate); err != nil {
			return nil, err
		}
		updated, err := fn(mandate)
		if err != nil {
			return nil, err
		}
		updated.ID = id
		result = updated
		return json.Marshal(updated)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) PutPayment(ctx context.Context, payment domain.Payment) error {
	if payment.ID == "" {
		return store.ErrInvalidRequest
	}
	return s.put(ctx, paymentKey(payment.ID), payment)
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := s.get(ctx, paymentKey(id), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) UpdatePayment(ctx context.Context, id string, fn func(domain.Payment) (domain.Payment, error)) (*domain.Payment, error) {
	var result domain.Payment
	err := s.update(ctx, paymentKey(id), func(raw []byte) ([]byte, error) {
		var payment domain.Payment
		if err := json.Unmarshal(raw, &payment); err != nil {
			return nil, err
		}
		updated, err := fn(payment)
		if err != nil {
			return nil, err
		}
		updated.ID = id
		result = updated
		return json.Marshal(updated)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
