package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// SQLLedger stores transactions in Postgres or SQLite. Timestamps are kept as
// RFC3339 text so both dialects share one schema.
type SQLLedger struct {
	db      *sql.DB
	dialect string
}

func NewSQLLedger(db *sql.DB, dialect string) (*SQLLedger, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported ledger dialect %q", dialect)
	}
	return &SQLLedger{db: db, dialect: dialect}, nil
}

// q rewrites $N placeholders into SQLite's ?N form.
func (r *SQLLedger) q(query string) string {
	if r.dialect == DialectSQLite {
		return placeholder.ReplaceAllString(query, "?$1")
	}
	return query
}

func (r *SQLLedger) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			transaction_id VARCHAR(255) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			payment_token TEXT NOT NULL DEFAULT '',
			gateway_status_code VARCHAR(32) NOT NULL DEFAULT '',
			gateway_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			finalized_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *SQLLedger) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.Status == "" {
		tx.Status = models.StatusPending
	}
	if !tx.Status.Valid() {
		return fmt.Errorf("%w: %s", models.ErrUnknownStatus, tx.Status)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO transactions (transaction_id, status, amount, currency, description, payment_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), tx.TransactionID, string(tx.Status), tx.Amount, tx.Currency, tx.Description, tx.PaymentToken,
		formatTime(tx.CreatedAt))
	if err != nil {
		if r.isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.TransactionID)
		}
		return err
	}
	return nil
}

func (r *SQLLedger) SetPaymentToken(ctx context.Context, transactionID, token string) error {
	res, err := r.db.ExecContext(ctx, r.q(
		`UPDATE transactions SET payment_token = $1 WHERE transaction_id = $2`), token, transactionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTransactionNotFound
	}
	return nil
}

// Transition applies from -> to only if the row still holds `from`.
func (r *SQLLedger) Transition(ctx context.Context, transactionID string, from, to models.TransactionStatus, outcome models.GatewayOutcome) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	at := outcome.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, r.q(`
		UPDATE transactions
		SET status = $1, gateway_status_code = $2, gateway_message = $3, finalized_at = $4
		WHERE transaction_id = $5 AND status = $6
	`), string(to), outcome.Code, outcome.Message, formatTime(at), transactionID, string(from))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *SQLLedger) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT transaction_id, status, amount, currency, description, payment_token,
			gateway_status_code, gateway_message, created_at, finalized_at
		FROM transactions WHERE transaction_id = $1
	`), transactionID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	return tx, err
}

func (r *SQLLedger) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// modernc reports constraint failures only through the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanTransaction(scanner interface {
	Scan(dest ...any) error
}) (*models.Transaction, error) {
	var (
		tx          models.Transaction
		status      string
		createdAt   string
		finalizedAt sql.NullString
	)

	if err := scanner.Scan(
		&tx.TransactionID,
		&status,
		&tx.Amount,
		&tx.Currency,
		&tx.Description,
		&tx.PaymentToken,
		&tx.GatewayStatusCode,
		&tx.GatewayMessage,
		&createdAt,
		&finalizedAt,
	); err != nil {
		return nil, err
	}

	tx.Status = models.TransactionStatus(status)
	if !tx.Status.Valid() {
		return nil, fmt.Errorf("%w: %q for %s", models.ErrUnknownStatus, status, tx.TransactionID)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	tx.CreatedAt = created

	if finalizedAt.Valid {
		fin, err := time.Parse(time.RFC3339Nano, finalizedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finalized_at: %w", err)
		}
		tx.FinalizedAt = &fin
	}

	return &tx, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
