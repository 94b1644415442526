package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

// MemoryLedger keeps transactions in process memory. State is lost on restart.
type MemoryLedger struct {
	mu  sync.Mutex
	txs map[string]models.Transaction
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{txs: make(map[string]models.Transaction)}
}

func (l *MemoryLedger) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.Status == "" {
		tx.Status = models.StatusPending
	}
	if !tx.Status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrUnknownStatus, tx.Status)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.txs[tx.TransactionID]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.TransactionID)
	}
	l.txs[tx.TransactionID] = *tx
	return nil
}

func (l *MemoryLedger) SetPaymentToken(ctx context.Context, transactionID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[transactionID]
	if !ok {
		return models.ErrTransactionNotFound
	}
	tx.PaymentToken = token
	l.txs[transactionID] = tx
	return nil
}

func (l *MemoryLedger) Transition(ctx context.Context, transactionID string, from, to models.TransactionStatus, outcome models.GatewayOutcome) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[transactionID]
	if !ok || tx.Status != from {
		return false, nil
	}

	at := outcome.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	tx.Status = to
	tx.GatewayStatusCode = outcome.Code
	tx.GatewayMessage = outcome.Message
	tx.FinalizedAt = &at
	l.txs[transactionID] = tx
	return true, nil
}

func (l *MemoryLedger) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[transactionID]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	return &tx, nil
}
