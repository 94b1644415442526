package interfaces

import (
	"context"
	"time"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

// Locker serializes work on one key across instances. Release is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type EventPublisher interface {
	PublishTransition(ctx context.Context, event models.TransitionEvent) error
}

type Alerter interface {
	AlertAmountMismatch(ctx context.Context, alert models.AmountMismatchAlert) error
}
