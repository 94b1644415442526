package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

type fakeConn struct {
	msgs []*nats.Msg
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return nil
}

func TestKafkaPublisher_PublishTransition(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	event := models.TransitionEvent{
		TransactionID: "T1",
		State:         models.StatusSuccess,
		PreviousState: models.StatusPending,
		Amount:        1000,
		Currency:      "XOF",
		Timestamp:     time.Now(),
	}
	if err := p.PublishTransition(context.Background(), event); err != nil {
		t.Fatalf("PublishTransition failed: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "T1" {
		t.Errorf("Expected key T1, got %s", msg.Key)
	}

	var decoded models.TransitionEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("Invalid payload: %v", err)
	}
	if decoded.State != models.StatusSuccess || decoded.PreviousState != models.StatusPending {
		t.Errorf("Unexpected payload %+v", decoded)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "transaction.SUCCESS" {
		t.Errorf("Unexpected headers %+v", msg.Headers)
	}
}

func TestKafkaPublisher_PropagatesWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w)

	if err := p.PublishTransition(context.Background(), models.TransitionEvent{TransactionID: "T1"}); err == nil {
		t.Error("Expected write error")
	}
}

func TestNatsAlerter_AlertAmountMismatch(t *testing.T) {
	conn := &fakeConn{}
	a := NewNatsAlerter(conn)

	alert := models.AmountMismatchAlert{
		TransactionID:    "T1",
		ExpectedAmount:   1000,
		ExpectedCurrency: "XOF",
		ReportedAmount:   900,
		ReportedCurrency: "XOF",
		AmountReported:   true,
	}
	if err := a.AlertAmountMismatch(context.Background(), alert); err != nil {
		t.Fatalf("AlertAmountMismatch failed: %v", err)
	}

	if len(conn.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != SubjectManualReview {
		t.Errorf("Unexpected subject %s", msg.Subject)
	}
	if msg.Header.Get("Transaction-Id") != "T1" {
		t.Errorf("Missing transaction header")
	}

	var decoded models.AmountMismatchAlert
	json.Unmarshal(msg.Data, &decoded)
	if decoded.ReportedAmount != 900 {
		t.Errorf("Unexpected payload %+v", decoded)
	}
}

func TestLogFallbacks(t *testing.T) {
	logger := zap.NewNop()
	if err := (LogPublisher{Logger: logger}).PublishTransition(context.Background(), models.TransitionEvent{}); err != nil {
		t.Error(err)
	}
	if err := (LogAlerter{Logger: logger}).AlertAmountMismatch(context.Background(), models.AmountMismatchAlert{}); err != nil {
		t.Error(err)
	}
}
