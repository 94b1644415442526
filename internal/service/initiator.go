package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

const transactionIDPrefix = "ADASOFT"

type InitiateRequest struct {
	Amount          int64
	Currency        string
	Description     string
	CustomerName    string
	CustomerSurname string
	CustomerEmail   string
	OrderRef        string
}

type InitiateResult struct {
	TransactionID string `json:"transaction_id"`
	PaymentToken  string `json:"payment_token"`
	PaymentURL    string `json:"payment_url"`
}

// PaymentInitiator records a PENDING transaction and asks the gateway for a checkout link.
type PaymentInitiator struct {
	ledger     interfaces.Ledger
	creator    interfaces.PaymentCreator
	appBaseURL string
	logger     *zap.Logger
	now        func() time.Time
	newID      func(time.Time) string
}

func NewPaymentInitiator(ledger interfaces.Ledger, creator interfaces.PaymentCreator, appBaseURL string, logger *zap.Logger) *PaymentInitiator {
	return &PaymentInitiator{
		ledger:     ledger,
		creator:    creator,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		logger:     logger.Named("initiator"),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      NewTransactionID,
	}
}

// NewTransactionID returns ids like ADASOFT-20260102150405-1a2b3c4d.
func NewTransactionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", transactionIDPrefix, now.Format("20060102150405"), suffix)
}

func (p *PaymentInitiator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "service.InitiatePayment")
	defer span.End()

	now := p.now()
	currency := strings.ToUpper(req.Currency)
	tx := &models.Transaction{
		TransactionID: p.newID(now),
		Status:        models.StatusPending,
		Amount:        req.Amount,
		Currency:      currency,
		Description:   req.Description,
		CreatedAt:     now,
	}
	span.SetAttributes(attribute.String("transaction_id", tx.TransactionID))

	if err := p.ledger.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	var metadata string
	if req.OrderRef != "" {
		b, _ := json.Marshal(map[string]string{"order_id": req.OrderRef})
		metadata = string(b)
	}

	link, err := p.creator.CreatePayment(ctx, models.PaymentRequest{
		TransactionID:   tx.TransactionID,
		Amount:          tx.Amount,
		Currency:        currency,
		Description:     req.Description,
		CustomerName:    req.CustomerName,
		CustomerSurname: req.CustomerSurname,
		CustomerEmail:   req.CustomerEmail,
		NotifyURL:       p.appBaseURL + "/api/payment/notify",
		ReturnURL:       p.appBaseURL + "/api/payment/return",
		Channels:        "ALL",
		Metadata:        metadata,
	})
	if err != nil {
		// The row stays PENDING; without a checkout link no notification will ever arrive for it.
		p.logger.Error("Payment creation failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := p.ledger.SetPaymentToken(ctx, tx.TransactionID, link.Token); err != nil {
		p.logger.Warn("Could not store payment token",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
	}

	p.logger.Info("Payment initiated",
		zap.String("transaction_id", tx.TransactionID),
		zap.Int64("amount", tx.Amount),
		zap.String("currency", currency),
	)

	return &InitiateResult{
		TransactionID: tx.TransactionID,
		PaymentToken:  link.Token,
		PaymentURL:    link.CheckoutURL,
	}, nil
}
