package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
)

// Store backs the Vendor/Settlement store contract with Postgres. Each entity
// lives in its own table as (id, jsonb payload); atomic updates take a row
// lock with SELECT ... FOR UPDATE so the read-modify-write closure runs
// against the latest committed state.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const (
	tableQuotes   = "quotes"
	tableCarts    = "carts"
	tableMandates = "mandates"
	tablePayments = "payments"
)

// EnsureSchema creates the payload tables when they do not exist yet. Safe to
// run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{tableQuotes, tableCarts, tableMandates, tablePayments} {
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS `+table+` (
				id TEXT PRIMARY KEY,
				payload JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) put(ctx context.Context, table string, id string, value any) error {
	if id == "" {
		return store.ErrInvalidRequest
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, id, payload)
	return err
}

func (s *Store) get(ctx context.Context, table string, id string, dest any) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM `+table+` WHERE id = $1
	`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(payload, dest)
}

func (s *Store) update(ctx context.Context, table string, id string, apply func(raw []byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var payload []byte
	err = tx.QueryRowContext(ctx, `
		SELECT payload FROM `+table+` WHERE id = $1 FOR UPDATE
	`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	next, err := apply(payload)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE `+table+` SET payload = $2, updated_at = now() WHERE id = $1
	`, id, next)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) PutQuote(ctx context.Context, quote domain.Quote) error {
	return s.put(ctx, tableQuotes, quote.ID, quote)
}

func (s *Store) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	var quote domain.Quote
	if err := s.get(ctx, tableQuotes, id, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Store) UpdateQuote(ctx context.Context, id string, fn func(domain.Quote) (domain.Quote, error)) (*domain.Quote, error) {
	var result domain.Quote
	err := s.update(ctx, tableQuotes, id, func(raw []byte) ([]byte, error) {
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
	return s.put(ctx, tableCarts, cart.ID, cart)
}

func (s *Store) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := s.get(ctx, tableCarts, id, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) UpdateCart(ctx context.Context, id string, fn func(domain.Cart) (domain.Cart, error)) (*domain.Cart, error) {
	var result domain.Cart
	err := s.update(ctx, tableCarts, id, func(raw []byte) ([]byte, error) {
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
	return s.put(ctx, tableMandates, mandate.ID, mandate)
}

func (s *Store) GetMandate(ctx context.Context, id string) (*domain.Mandate, error) {
	var mandate domain.Mandate
	if err := s.get(ctx, tableMandates, id, &mandate); err != nil {
		return nil, err
	}
	return &mandate, nil
}

func (s *Store) UpdateMandate(ctx context.Context, id string, fn func(domain.Mandate) (domain.Mandate, error)) (*domain.Mandate, error) {
	var result domain.Mandate
	err := s.update(ctx, tableMandates, id, func(raw []byte) ([]byte, error) {
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
	return s.put(ctx, tablePayments, payment.ID, payment)
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := s.get(ctx, tablePayments, id, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Store) UpdatePayment(ctx context.Context, id string, fn func(domain.Payment) (domain.Payment, error)) (*domain.Payment, error) {
	var result domain.Payment
	err := s.update(ctx, tablePayments, id, func(raw []byte) ([]byte, error) {
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
