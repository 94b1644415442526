package models

import "time"

type TransactionStatus string

const (
	StatusPending      TransactionStatus = "PENDING"
	StatusSuccess      TransactionStatus = "SUCCESS"
	StatusFailed       TransactionStatus = "FAILED"
	StatusManualReview TransactionStatus = "MANUAL_REVIEW"
)

// allowedTransitions lists every status change the ledger accepts.
// SUCCESS and FAILED are terminal; MANUAL_REVIEW is left for an operator.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:      {StatusSuccess, StatusFailed, StatusManualReview},
	StatusSuccess:      {},
	StatusFailed:       {},
	StatusManualReview: {},
}

func CanTransition(from, to TransactionStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Transaction is the only persisted entity. Amount is in minor units.
type Transaction struct {
	TransactionID     string            `json:"transaction_id"`
	Status            TransactionStatus `json:"status"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Description       string            `json:"description,omitempty"`
	PaymentToken      string            `json:"payment_token,omitempty"`
	GatewayStatusCode string            `json:"gateway_status_code,omitempty"`
	GatewayMessage    string            `json:"gateway_message,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	FinalizedAt       *time.Time        `json:"finalized_at,omitempty"`
}

// GatewayOutcome is the informational gateway answer stored alongside a transition.
type GatewayOutcome struct {
	Code    string
	Message string
	At      time.Time
}

// TransitionEvent is published after the ledger applies a transition.
type TransitionEvent struct {
	TransactionID  string            `json:"transaction_id"`
	State          TransactionStatus `json:"state"`
	PreviousState  TransactionStatus `json:"previous_state"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	GatewayCode    string            `json:"gateway_code,omitempty"`
	GatewayMessage string            `json:"gateway_message,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// AmountMismatchAlert is raised when the gateway reports a different amount or currency.
type AmountMismatchAlert struct {
	TransactionID    string    `json:"transaction_id"`
	ExpectedAmount   int64     `json:"expected_amount"`
	ExpectedCurrency string    `json:"expected_currency"`
	ReportedAmount   int64     `json:"reported_amount"`
	ReportedCurrency string    `json:"reported_currency"`
	AmountReported   bool      `json:"amount_reported"`
	DetectedAt       time.Time `json:"detected_at"`
}
