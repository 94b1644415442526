package interfaces

import (
	"context"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	Get(ctx context.Context, transactionID string) (*models.Transaction, error)
}

// Ledger defines the contract for transaction persistence.
//
// Transition is an atomic compare-and-set on status: it applies `to` only if the
// stored status still equals `from`, and reports whether it did. A false result with
// a nil error means another writer got there first.
type Ledger interface {
	LedgerReader
	Create(ctx context.Context, tx *models.Transaction) error
	SetPaymentToken(ctx context.Context, transactionID, token string) error
	Transition(ctx context.Context, transactionID string, from, to models.TransactionStatus, outcome models.GatewayOutcome) (bool, error)
}
