package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snackpay/backend/internal/domain"
)

var (
	ErrPaymentFailed = errors.New("payment failed")
	ErrWaitTimeout   = errors.New("timed out waiting for settlement")
)

// Waiter polls a payment until it settles. The wall-clock timeout is
// independent of the settlement rail's own delay: a slow rail surfaces as a
// timeout here, never as an unbounded loop.
type Waiter struct {
	client   *SettlementClient
	interval time.Duration
	timeout  time.Duration
}

func NewWaiter(client *SettlementClient, interval time.Duration, timeout time.Duration) *Waiter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Waiter{client: client, interval: interval, timeout: timeout}
}

// Wait resolves once the payment is completed, returns ErrPaymentFailed with
// the stated reason on failure, and ErrWaitTimeout when the deadline passes
// first. Transient status-poll errors are retried until the deadline.
func (w *Waiter) Wait(ctx context.Context, paymentID string) (*domain.PaymentStatusResponse, error) {
	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := w.client.PaymentStatus(ctx, paymentID)
		if err != nil {
			lastErr = err
		} else {
			switch status.Status {
			case domain.PaymentStatusCompleted:
				return status, nil
			case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
				reason := status.FailureReason
				if reason == "" {
					reason = status.Status
				}
				return status, fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if lastErr != nil {
				return nil, fmt.Errorf("%w: last poll error: %v", ErrWaitTimeout, lastErr)
			}
			return nil, fmt.Errorf("%w: payment %s still pending after %s", ErrWaitTimeout, paymentID, w.timeout)
		case <-ticker.C:
		}
	}
}
