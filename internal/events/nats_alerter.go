package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

const SubjectManualReview = "payments.alerts.manual_review"

// Publisher is the part of *nats.Conn the alerter needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

type NatsAlerter struct {
	conn Publisher
}

func NewNatsAlerter(conn Publisher) *NatsAlerter {
	return &NatsAlerter{conn: conn}
}

func (a *NatsAlerter) AlertAmountMismatch(ctx context.Context, alert models.AmountMismatchAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal mismatch alert: %w", err)
	}

	msg := nats.NewMsg(SubjectManualReview)
	msg.Header.Set("Transaction-Id", alert.TransactionID)
	msg.Data = payload
	return a.conn.PublishMsg(msg)
}
