package interfaces

import (
	"context"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionID string) (*models.StatusResult, error)
}

// PaymentLookup also resolves a payment from the checkout token the gateway issued.
type PaymentLookup interface {
	StatusChecker
	CheckStatusByToken(ctx context.Context, token string) (*models.StatusResult, error)
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentLink, error)
}
