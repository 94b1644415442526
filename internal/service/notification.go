package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/lock"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/signature"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

type Outcome string

const (
	OutcomeApplied            Outcome = "applied"
	OutcomeManualReview       Outcome = "manual_review"
	OutcomeAlreadyProcessed   Outcome = "already_processed"
	OutcomeAlreadyProcessing  Outcome = "already_processing"
	OutcomeGatewayPending     Outcome = "gateway_pending"
	OutcomeUnknownTransaction Outcome = "unknown_transaction"
)

// Metric labels for notifications that end in an error.
const (
	outcomeRejectedSignature = "rejected_signature"
	outcomeRejectedPayload   = "rejected_payload"
	outcomeReconcileFailed   = "reconciliation_failed"
	outcomeInternalError     = "internal_error"
)

var (
	ErrMissingTransactionID = errors.New("notification: missing transaction id")
	ErrMalformedPayload     = errors.New("notification: malformed payload")
)

// NotificationResult describes an authenticated notification the gateway should stop retrying.
type NotificationResult struct {
	Outcome       Outcome
	TransactionID string
	Status        models.TransactionStatus
}

type NotificationService struct {
	verifier  *signature.Verifier
	ledger    interfaces.Ledger
	checker   interfaces.StatusChecker
	locker    interfaces.Locker
	publisher interfaces.EventPublisher
	alerter   interfaces.Alerter
	lockTTL   time.Duration
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

type NotificationDeps struct {
	Verifier  *signature.Verifier
	Ledger    interfaces.Ledger
	Checker   interfaces.StatusChecker
	Locker    interfaces.Locker
	Publisher interfaces.EventPublisher
	Alerter   interfaces.Alerter
	LockTTL   time.Duration
	Logger    *zap.Logger
	Metrics   *telemetry.Metrics
}

func NewNotificationService(d NotificationDeps) *NotificationService {
	if d.LockTTL <= 0 {
		d.LockTTL = 30 * time.Second
	}
	logger := d.Logger.Named("notification")
	s := &NotificationService{
		verifier:  d.Verifier,
		ledger:    d.Ledger,
		checker:   d.Checker,
		locker:    d.Locker,
		publisher: d.Publisher,
		alerter:   d.Alerter,
		lockTTL:   d.LockTTL,
		logger:    logger,
		metrics:   d.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.alerter == nil {
		s.alerter = noopAlerter{}
	}
	if s.locker == nil {
		s.locker = lock.NoopLocker{}
	}
	return s
}

// HandleNotification authenticates one webhook call and, the first time a pending
// transaction is reported on, moves it to its final status.
//
// Errors wrapping signature.ErrMissingSignature or signature.ErrInvalidSignature are
// authentication failures; ErrMissingTransactionID and ErrMalformedPayload are
// validation failures. Any other error happened after authentication and leaves the
// ledger untouched, so the gateway's re-delivery is safe.
func (s *NotificationService) HandleNotification(ctx context.Context, rawBody []byte, sig string, headers http.Header) (*NotificationResult, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "service.HandleNotification")
	defer span.End()

	if err := s.verifier.Check(rawBody, sig); err != nil {
		s.metrics.RecordNotification(outcomeRejectedSignature)
		s.logger.Warn("Notification rejected", zap.Error(err), zap.Int("body_bytes", len(rawBody)))
		span.SetStatus(codes.Error, "signature")
		return nil, err
	}

	transactionID, err := parseTransactionID(rawBody, headers.Get("Content-Type"))
	if err != nil {
		s.metrics.RecordNotification(outcomeRejectedPayload)
		s.logger.Warn("Notification payload rejected", zap.Error(err))
		span.SetStatus(codes.Error, "payload")
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction_id", transactionID))
	logger := s.logger.With(zap.String("transaction_id", transactionID))

	release, acquired, err := s.locker.Acquire(ctx, transactionID, s.lockTTL)
	switch {
	case err != nil:
		logger.Warn("Notification lock unavailable, relying on ledger compare-and-set", zap.Error(err))
	case !acquired:
		logger.Info("Notification already being processed")
		s.metrics.RecordNotification(string(OutcomeAlreadyProcessing))
		return &NotificationResult{Outcome: OutcomeAlreadyProcessing, TransactionID: transactionID}, nil
	default:
		defer release()
	}

	result, err := s.reconcile(ctx, logger, transactionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile")
		return nil, err
	}
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	s.metrics.RecordNotification(string(result.Outcome))
	return result, nil
}

func (s *NotificationService) reconcile(ctx context.Context, logger *zap.Logger, transactionID string) (*NotificationResult, error) {
	tx, err := s.ledger.Get(ctx, transactionID)
	if errors.Is(err, models.ErrTransactionNotFound) {
		logger.Error("Authenticated notification for unknown transaction")
		return &NotificationResult{Outcome: OutcomeUnknownTransaction, TransactionID: transactionID}, nil
	}
	if err != nil {
		s.metrics.RecordNotification(outcomeInternalError)
		return nil, fmt.Errorf("load transaction %s: %w", transactionID, err)
	}

	if tx.Status != models.StatusPending {
		logger.Info("Transaction already processed", zap.String("status", string(tx.Status)))
		return &NotificationResult{Outcome: OutcomeAlreadyProcessed, TransactionID: transactionID, Status: tx.Status}, nil
	}

	// The payload's own status and amount fields are never read; the gateway is asked directly.
	res, err := s.checker.CheckStatus(ctx, transactionID)
	if err != nil {
		s.metrics.RecordNotification(outcomeReconcileFailed)
		logger.Error("Status reconciliation failed, leaving transaction pending", zap.Error(err))
		return nil, err
	}

	logger.Info("Gateway status reconciled",
		zap.String("gateway_code", res.Code),
		zap.String("gateway_status", string(res.Status)),
		zap.String("gateway_message", res.Message),
	)

	to, mismatch := decide(tx, res)
	if to == "" {
		logger.Info("Gateway still reports the payment in progress")
		return &NotificationResult{Outcome: OutcomeGatewayPending, TransactionID: transactionID, Status: tx.Status}, nil
	}

	if mismatch {
		logger.Error("AMOUNT MISMATCH, transaction sent to manual review",
			zap.Int64("expected_amount", tx.Amount),
			zap.String("expected_currency", tx.Currency),
			zap.Int64("reported_amount", res.Amount),
			zap.String("reported_currency", res.Currency),
			zap.Bool("amount_reported", res.AmountReported),
		)
	}

	outcome := models.GatewayOutcome{Code: res.Code, Message: res.Message, At: s.now()}
	applied, err := s.ledger.Transition(ctx, transactionID, models.StatusPending, to, outcome)
	if err != nil {
		s.metrics.RecordNotification(outcomeInternalError)
		return nil, fmt.Errorf("transition %s to %s: %w", transactionID, to, err)
	}

	if !applied {
		// A concurrent delivery won the compare-and-set.
		current, err := s.ledger.Get(ctx, transactionID)
		if err != nil {
			return nil, fmt.Errorf("reload transaction %s: %w", transactionID, err)
		}
		logger.Info("Lost transition race, transaction already processed", zap.String("status", string(current.Status)))
		return &NotificationResult{Outcome: OutcomeAlreadyProcessed, TransactionID: transactionID, Status: current.Status}, nil
	}

	s.metrics.RecordTransition(string(to))
	logger.Info("Transaction state transition",
		zap.String("from_state", string(models.StatusPending)),
		zap.String("to_state", string(to)),
	)
	s.afterTransition(ctx, logger, tx, res, to, outcome)

	resultOutcome := OutcomeApplied
	if to == models.StatusManualReview {
		resultOutcome = OutcomeManualReview
	}
	return &NotificationResult{Outcome: resultOutcome, TransactionID: transactionID, Status: to}, nil
}

// decide returns the target status, or "" while the gateway still reports the
// payment as in progress. SUCCESS requires an accepted status and matching amount.
func decide(tx *models.Transaction, res *models.StatusResult) (models.TransactionStatus, bool) {
	if res.Status == models.GatewayPending {
		return "", false
	}
	if amountMismatch(tx, res) {
		return models.StatusManualReview, true
	}
	if res.Status == models.GatewayAccepted {
		return models.StatusSuccess, false
	}
	return models.StatusFailed, false
}

func amountMismatch(tx *models.Transaction, res *models.StatusResult) bool {
	if !res.AmountReported {
		// Nothing to compare; an accepted payment of unknown amount is not trusted.
		return res.Status == models.GatewayAccepted
	}
	return res.Amount != tx.Amount || !strings.EqualFold(res.Currency, tx.Currency)
}

// afterTransition runs side effects. They never change the notification's outcome.
func (s *NotificationService) afterTransition(ctx context.Context, logger *zap.Logger, tx *models.Transaction, res *models.StatusResult, to models.TransactionStatus, outcome models.GatewayOutcome) {
	event := models.TransitionEvent{
		TransactionID:  tx.TransactionID,
		State:          to,
		PreviousState:  models.StatusPending,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		GatewayCode:    outcome.Code,
		GatewayMessage: outcome.Message,
		Timestamp:      outcome.At,
	}
	if err := s.publisher.PublishTransition(ctx, event); err != nil {
		s.metrics.RecordSideEffectFailure("event")
		logger.Error("Failed to publish transition event", zap.Error(err))
	}

	if to != models.StatusManualReview {
		return
	}
	alert := models.AmountMismatchAlert{
		TransactionID:    tx.TransactionID,
		ExpectedAmount:   tx.Amount,
		ExpectedCurrency: tx.Currency,
		ReportedAmount:   res.Amount,
		ReportedCurrency: res.Currency,
		AmountReported:   res.AmountReported,
		DetectedAt:       outcome.At,
	}
	if err := s.alerter.AlertAmountMismatch(ctx, alert); err != nil {
		s.metrics.RecordSideEffectFailure("alert")
		logger.Error("Failed to raise manual review alert", zap.Error(err))
	}
}

type notificationPayload struct {
	TransactionID string `json:"transaction_id"`
	CpmTransID    string `json:"cpm_trans_id"`
}

// parseTransactionID reads the id from a JSON or form-encoded body.
// The gateway names the field cpm_trans_id; transaction_id is accepted too.
func parseTransactionID(rawBody []byte, contentType string) (string, error) {
	var p notificationPayload

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(rawBody))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		p.TransactionID = values.Get("transaction_id")
		p.CpmTransID = values.Get("cpm_trans_id")
	} else if err := json.Unmarshal(rawBody, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id := strings.TrimSpace(p.TransactionID)
	if id == "" {
		id = strings.TrimSpace(p.CpmTransID)
	}
	if id == "" {
		return "", ErrMissingTransactionID
	}
	return id, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishTransition(context.Context, models.TransitionEvent) error { return nil }

type noopAlerter struct{}

func (noopAlerter) AlertAmountMismatch(context.Context, models.AmountMismatchAlert) error {
	return nil
}
