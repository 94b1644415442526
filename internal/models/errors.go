package models

import "errors"

var (
	ErrTransactionNotFound  = errors.New("ledger: transaction not found")
	ErrDuplicateTransaction = errors.New("ledger: transaction already exists")
	ErrInvalidTransition    = errors.New("ledger: invalid status transition")
	ErrUnknownStatus        = errors.New("ledger: unknown transaction status")
)
