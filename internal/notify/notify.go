package notify

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	EventSnackOptions        = "snack_options"
	EventApprovalRequest     = "approval_request"
	EventPaymentConfirmation = "payment_confirmation"
	EventError               = "error"
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Notifier delivers flow events. Delivery failure must never abort the flow;
// callers log the returned error and move on.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// LogNotifier is the default sink: events land in the process log.
type LogNotifier struct{}

func (LogNotifier) Publish(ctx context.Context, event Event) error {
	logger.Info().
		Str("event", event.Type).
		Time("at", event.Timestamp).
		Interface("payload", event.Payload).
		Msg("notification")
	return nil
}
