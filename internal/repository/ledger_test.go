package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

func newSQLiteLedger(t *testing.T) interfaces.Ledger {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	l, err := NewSQLLedger(db, DialectSQLite)
	if err != nil {
		t.Fatalf("NewSQLLedger: %v", err)
	}
	if err := l.InitDB(); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return l
}

func newMemLedger(t *testing.T) interfaces.Ledger {
	return NewMemoryLedger()
}

var ledgers = map[string]func(t *testing.T) interfaces.Ledger{
	"memory": newMemLedger,
	"sqlite": newSQLiteLedger,
}

func pending(id string) *models.Transaction {
	return &models.Transaction{
		TransactionID: id,
		Status:        models.StatusPending,
		Amount:        1000,
		Currency:      "XOF",
		Description:   "Logo design",
	}
}

func TestLedger_CreateAndGet(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()

			if err := l.Create(ctx, pending("T1")); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			tx, err := l.Get(ctx, "T1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if tx.Status != models.StatusPending || tx.Amount != 1000 || tx.Currency != "XOF" {
				t.Errorf("Unexpected transaction %+v", tx)
			}
			if tx.CreatedAt.IsZero() {
				t.Error("Expected created_at to be set")
			}
			if tx.FinalizedAt != nil {
				t.Error("Pending transaction must not have finalized_at")
			}
		})
	}
}

func TestLedger_CreateDuplicate(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()

			if err := l.Create(ctx, pending("T1")); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if err := l.Create(ctx, pending("T1")); !errors.Is(err, models.ErrDuplicateTransaction) {
				t.Errorf("Expected ErrDuplicateTransaction, got %v", err)
			}
		})
	}
}

func TestLedger_GetMissing(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			if _, err := l.Get(context.Background(), "nope"); !errors.Is(err, models.ErrTransactionNotFound) {
				t.Errorf("Expected ErrTransactionNotFound, got %v", err)
			}
		})
	}
}

func TestLedger_TransitionIsCompareAndSet(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()
			l.Create(ctx, pending("T1"))

			at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			ok, err := l.Transition(ctx, "T1", models.StatusPending, models.StatusSuccess,
				models.GatewayOutcome{Code: "00", Message: "SUCCES", At: at})
			if err != nil || !ok {
				t.Fatalf("Expected first transition to apply, got ok=%v err=%v", ok, err)
			}

			ok, err = l.Transition(ctx, "T1", models.StatusPending, models.StatusFailed, models.GatewayOutcome{})
			if err != nil {
				t.Fatalf("Second transition errored: %v", err)
			}
			if ok {
				t.Error("Second transition from PENDING must not apply")
			}

			tx, _ := l.Get(ctx, "T1")
			if tx.Status != models.StatusSuccess {
				t.Errorf("Expected SUCCESS, got %s", tx.Status)
			}
			if tx.GatewayStatusCode != "00" || tx.GatewayMessage != "SUCCES" {
				t.Errorf("Gateway outcome not stored: %+v", tx)
			}
			if tx.FinalizedAt == nil || !tx.FinalizedAt.Equal(at) {
				t.Errorf("Expected finalized_at %v, got %v", at, tx.FinalizedAt)
			}
		})
	}
}

func TestLedger_TransitionRejectsIllegalEdges(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()
			l.Create(ctx, pending("T1"))

			_, err := l.Transition(ctx, "T1", models.StatusSuccess, models.StatusFailed, models.GatewayOutcome{})
			if !errors.Is(err, models.ErrInvalidTransition) {
				t.Errorf("Expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestLedger_TransitionUnknownTransaction(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ok, err := l.Transition(context.Background(), "ghost", models.StatusPending, models.StatusFailed, models.GatewayOutcome{})
			if err != nil || ok {
				t.Errorf("Expected no-op, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestLedger_ConcurrentTransitionsApplyOnce(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()
			l.Create(ctx, pending("T1"))

			var applied int32
			var wg sync.WaitGroup
			targets := []models.TransactionStatus{models.StatusSuccess, models.StatusFailed, models.StatusManualReview}
			for i := 0; i < 30; i++ {
				wg.Add(1)
				go func(to models.TransactionStatus) {
					defer wg.Done()
					ok, err := l.Transition(ctx, "T1", models.StatusPending, to, models.GatewayOutcome{})
					if err != nil {
						t.Errorf("Transition errored: %v", err)
						return
					}
					if ok {
						atomic.AddInt32(&applied, 1)
					}
				}(targets[i%len(targets)])
			}
			wg.Wait()

			if applied != 1 {
				t.Errorf("Expected exactly one applied transition, got %d", applied)
			}
		})
	}
}

func TestLedger_SetPaymentToken(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()
			l.Create(ctx, pending("T1"))

			if err := l.SetPaymentToken(ctx, "T1", "tok"); err != nil {
				t.Fatalf("SetPaymentToken failed: %v", err)
			}
			tx, _ := l.Get(ctx, "T1")
			if tx.PaymentToken != "tok" {
				t.Errorf("Expected token to be stored, got %q", tx.PaymentToken)
			}
			if err := l.SetPaymentToken(ctx, "ghost", "tok"); !errors.Is(err, models.ErrTransactionNotFound) {
				t.Errorf("Expected ErrTransactionNotFound, got %v", err)
			}
		})
	}
}

func TestSQLLedger_PlaceholderRewrite(t *testing.T) {
	pg := &SQLLedger{dialect: DialectPostgres}
	lite := &SQLLedger{dialect: DialectSQLite}
	query := `UPDATE t SET a = $1 WHERE b = $2 AND c = $10`

	if got := pg.q(query); got != query {
		t.Errorf("Postgres query must be unchanged, got %s", got)
	}
	if got := lite.q(query); got != `UPDATE t SET a = ?1 WHERE b = ?2 AND c = ?10` {
		t.Errorf("Unexpected sqlite query %s", got)
	}
}

func TestNewSQLLedger_UnknownDialect(t *testing.T) {
	if _, err := NewSQLLedger(nil, "oracle"); err == nil {
		t.Error("Expected error for unknown dialect")
	}
}

func TestLedger_CreateRejectsUnknownStatus(t *testing.T) {
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			l := newLedger(t)
			tx := pending("T1")
			tx.Status = "REFUNDED"

			if err := l.Create(context.Background(), tx); !errors.Is(err, models.ErrUnknownStatus) {
				t.Errorf("Expected ErrUnknownStatus, got %v", err)
			}
			if _, err := l.Get(context.Background(), "T1"); !errors.Is(err, models.ErrTransactionNotFound) {
				t.Errorf("Rejected transaction must not be stored, got %v", err)
			}
		})
	}
}

func TestSQLLedger_GetRejectsCorruptStatus(t *testing.T) {
	l := newSQLiteLedger(t).(*SQLLedger)
	ctx := context.Background()
	l.Create(ctx, pending("T1"))

	if _, err := l.db.ExecContext(ctx, `UPDATE transactions SET status = 'PAID' WHERE transaction_id = 'T1'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := l.Get(ctx, "T1"); !errors.Is(err, models.ErrUnknownStatus) {
		t.Errorf("Expected ErrUnknownStatus, got %v", err)
	}
}
