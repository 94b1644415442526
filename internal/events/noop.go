package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

// LogPublisher writes transitions to the log when no broker is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) PublishTransition(ctx context.Context, event models.TransitionEvent) error {
	p.Logger.Info("Transaction finalized",
		zap.String("transaction_id", event.TransactionID),
		zap.String("state", string(event.State)),
		zap.String("previous_state", string(event.PreviousState)),
	)
	return nil
}

// LogAlerter only logs mismatches; the notification handler already logs at error level.
type LogAlerter struct {
	Logger *zap.Logger
}

func (a LogAlerter) AlertAmountMismatch(ctx context.Context, alert models.AmountMismatchAlert) error {
	a.Logger.Error("MANUAL REVIEW REQUIRED",
		zap.String("transaction_id", alert.TransactionID),
		zap.Int64("expected_amount", alert.ExpectedAmount),
		zap.Int64("reported_amount", alert.ReportedAmount),
	)
	return nil
}
